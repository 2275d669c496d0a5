package localstore

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/reader"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local", "rentshelf.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestPosition_SaveAndFetch(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	ref := "/books/moby.pdf"

	pos, err := s.FetchLastPosition(ctx, ref)
	if err != nil || pos != nil {
		t.Fatalf("FetchLastPosition() = %v, %v; want nil, nil", pos, err)
	}

	for _, p := range []reader.Position{{Page: 3, ScrollOffset: 10}, {Page: 7, ScrollOffset: 812.5}} {
		if err := s.SaveLastPosition(ctx, ref, p); err != nil {
			t.Fatalf("SaveLastPosition(%+v) error = %v", p, err)
		}
	}

	// Survives reopening.
	s.Close()
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	pos, err = s2.FetchLastPosition(ctx, ref)
	if err != nil {
		t.Fatalf("FetchLastPosition() error = %v", err)
	}
	if pos == nil || *pos != (reader.Position{Page: 7, ScrollOffset: 812.5}) {
		t.Errorf("position = %+v, want page 7 offset 812.5", pos)
	}

	other, err := s2.FetchLastPosition(ctx, "/books/other.pdf")
	if err != nil || other != nil {
		t.Errorf("other ref position = %v, %v; want nil", other, err)
	}
}

func TestPosition_Invalid(t *testing.T) {
	s, _ := openTemp(t)
	tests := []reader.Position{
		{Page: 0},
		{Page: 1, ScrollOffset: -1},
		{Page: 1, ScrollOffset: math.NaN()},
		{Page: 1, ScrollOffset: math.Inf(1)},
	}
	for _, p := range tests {
		err := s.SaveLastPosition(context.Background(), "ref", p)
		if !errors.Is(err, library.ErrInvalidPosition) {
			t.Errorf("SaveLastPosition(%+v) error = %v, want ErrInvalidPosition", p, err)
		}
	}
}

func TestAnnotations_AddListDelete(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	ref := "/books/moby.pdf"

	quotes := []reader.Annotation{
		{Page: 1, Text: "Call me Ishmael.", Selection: &reader.SelectionRange{Start: 0, End: 16}},
		{Page: 4, Text: "  Whenever I find myself growing grim  "},
		{Page: 9, Text: "a damp, drizzly November"},
	}
	for _, q := range quotes {
		if err := s.SaveQuote(ctx, ref, q); err != nil {
			t.Fatalf("SaveQuote() error = %v", err)
		}
	}
	if err := s.SaveBookmark(ctx, ref, reader.Annotation{Page: 2, Text: "Loomings"}); err != nil {
		t.Fatalf("SaveBookmark() error = %v", err)
	}

	got, err := s.Annotations(ctx, library.KindQuote, ref)
	if err != nil {
		t.Fatalf("Annotations() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d quotes, want 3", len(got))
	}
	if got[0].Selection == nil || *got[0].Selection != (reader.SelectionRange{Start: 0, End: 16}) {
		t.Errorf("quote 0 selection = %+v", got[0].Selection)
	}
	if got[1].Text != "Whenever I find myself growing grim" || got[1].Selection != nil {
		t.Errorf("quote 1 = %+v, want trimmed text and no selection", got[1])
	}

	bookmarks, err := s.Annotations(ctx, library.KindBookmark, ref)
	if err != nil {
		t.Fatalf("Annotations() error = %v", err)
	}
	if len(bookmarks) != 1 || bookmarks[0].Page != 2 {
		t.Errorf("bookmarks = %+v, want one on page 2", bookmarks)
	}

	if err := s.DeleteAnnotation(ctx, library.KindQuote, ref, 1); err != nil {
		t.Fatalf("DeleteAnnotation() error = %v", err)
	}
	got, _ = s.Annotations(ctx, library.KindQuote, ref)
	if len(got) != 2 || got[0].Page != 1 || got[1].Page != 9 {
		t.Errorf("after delete = %+v, want pages 1 and 9", got)
	}

	for _, idx := range []int{-1, 2, 10} {
		err := s.DeleteAnnotation(ctx, library.KindQuote, ref, idx)
		if !errors.Is(err, library.ErrIndexOutOfRange) {
			t.Errorf("DeleteAnnotation(%d) error = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
}

func TestAnnotations_Invalid(t *testing.T) {
	s, _ := openTemp(t)
	tests := []struct {
		name string
		a    reader.Annotation
	}{
		{"blank text", reader.Annotation{Page: 1, Text: "   "}},
		{"no page", reader.Annotation{Page: 0, Text: "x"}},
		{"reversed selection", reader.Annotation{Page: 1, Text: "x", Selection: &reader.SelectionRange{Start: 5, End: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SaveBookmark(context.Background(), "ref", tt.a)
			if !errors.Is(err, library.ErrInvalidAnnotation) {
				t.Errorf("error = %v, want ErrInvalidAnnotation", err)
			}
		})
	}
}
