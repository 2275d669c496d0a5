package defra

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"bae-0f3a5c1e-9d2b-4c7a-8e6f-1a2b3c4d5e6f", false},
		{"reader_01", false},
		{"", true},
		{`bae-1"} }`, true},
		{"has space", true},
		{strings.Repeat("a", 501), true},
	}

	for _, tt := range tests {
		if err := ValidateID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestQuery_Build(t *testing.T) {
	query, vars := NewQuery("Bookmark").
		Filter("user", "reader").
		Filter("book_id", "bae-1").
		Fields("_docID", "page", "text").
		OrderBy("seq", "ASC").
		Page(20, 10).
		Build()

	want := `query($v0: String, $v1: String) { Bookmark(filter: {user: {_eq: $v0}, book_id: {_eq: $v1}}, order: {seq: ASC}, limit: 10, offset: 20) { _docID page text } }`
	if query != want {
		t.Errorf("Build() query =\n%s\nwant\n%s", query, want)
	}
	if vars["v0"] != "reader" || vars["v1"] != "bae-1" {
		t.Errorf("Build() vars = %v", vars)
	}
}

func TestQuery_NoFilters(t *testing.T) {
	query, vars := NewQuery("Book").Fields("_docID", "title").Build()
	if query != "{ Book { _docID title } }" {
		t.Errorf("Build() query = %s", query)
	}
	if len(vars) != 0 {
		t.Errorf("Build() vars = %v, want none", vars)
	}
}

func TestQuery_PageZeroIsUnbounded(t *testing.T) {
	query, _ := NewQuery("Quote").Filter("page", 3).Page(0, 0).Build()
	want := `query($v0: Int) { Quote(filter: {page: {_eq: $v0}}) { _docID } }`
	if query != want {
		t.Errorf("Build() query = %s, want %s", query, want)
	}
	if q, _ := NewQuery("Quote").Page(-5, 2).Build(); q != "{ Quote(limit: 2) { _docID } }" {
		t.Errorf("negative offset query = %s", q)
	}
}
