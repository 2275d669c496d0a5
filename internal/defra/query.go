package defra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,500}$`)

// ValidateID rejects IDs that are not safe to place inside a GraphQL
// document: book IDs arrive in URLs and reach mutations by docID.
func ValidateID(id string) error {
	switch {
	case id == "":
		return errors.New("empty ID")
	case !idPattern.MatchString(id):
		return fmt.Errorf("invalid ID %.40q", id)
	}
	return nil
}

// Query builds a single-collection GraphQL read. Filter values travel as
// variables, never inside the document.
type Query struct {
	collection string
	where      []string
	varDefs    []string
	vars       map[string]any
	fields     []string
	order      string
	limit      int
	offset     int
}

// NewQuery starts a query returning _docID from collection.
func NewQuery(collection string) *Query {
	return &Query{
		collection: collection,
		vars:       make(map[string]any),
		fields:     []string{"_docID"},
	}
}

// Filter matches documents whose field equals value.
func (q *Query) Filter(field string, value any) *Query {
	name := fmt.Sprintf("v%d", len(q.vars))
	q.vars[name] = value
	q.varDefs = append(q.varDefs, "$"+name+": "+graphQLType(value))
	q.where = append(q.where, fmt.Sprintf("%s: {_eq: $%s}", field, name))
	return q
}

// Fields replaces the returned fields.
func (q *Query) Fields(fields ...string) *Query {
	q.fields = fields
	return q
}

// OrderBy sorts by field; direction is ASC or DESC.
func (q *Query) OrderBy(field, direction string) *Query {
	q.order = fmt.Sprintf("{%s: %s}", field, direction)
	return q
}

// Page skips offset documents and returns at most limit. Zero values leave
// the query unbounded.
func (q *Query) Page(offset, limit int) *Query {
	q.offset, q.limit = max(offset, 0), max(limit, 0)
	return q
}

// Build renders the query document and its variables.
func (q *Query) Build() (string, map[string]any) {
	var args []string
	if len(q.where) > 0 {
		args = append(args, "filter: {"+strings.Join(q.where, ", ")+"}")
	}
	if q.order != "" {
		args = append(args, "order: "+q.order)
	}
	if q.limit > 0 {
		args = append(args, fmt.Sprintf("limit: %d", q.limit))
	}
	if q.offset > 0 {
		args = append(args, fmt.Sprintf("offset: %d", q.offset))
	}

	var b strings.Builder
	if len(q.varDefs) > 0 {
		fmt.Fprintf(&b, "query(%s) ", strings.Join(q.varDefs, ", "))
	}
	b.WriteString("{ " + q.collection)
	if len(args) > 0 {
		b.WriteString("(" + strings.Join(args, ", ") + ")")
	}
	b.WriteString(" { " + strings.Join(q.fields, " ") + " } }")
	return b.String(), q.vars
}

// Execute runs the query on client.
func (q *Query) Execute(ctx context.Context, client *Client) (*GQLResponse, error) {
	query, vars := q.Build()
	return client.Execute(ctx, query, vars)
}

func graphQLType(v any) string {
	switch v.(type) {
	case int, int32, int64:
		return "Int"
	case float32, float64:
		return "Float"
	case bool:
		return "Boolean"
	default:
		return "String"
	}
}

// SafeQuery fetches fields of the documents in collection whose field equals
// value.
func SafeQuery(ctx context.Context, client *Client, collection, field string, value any, fields ...string) (*GQLResponse, error) {
	q := NewQuery(collection).Filter(field, value)
	if len(fields) > 0 {
		q.Fields(fields...)
	}
	return q.Execute(ctx, client)
}

// SafeQueryByDocID fetches one document by ID.
func SafeQueryByDocID(ctx context.Context, client *Client, collection, docID string, fields ...string) (*GQLResponse, error) {
	return SafeQuery(ctx, client, collection, "_docID", docID, fields...)
}
