package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackzampolin/rentshelf/internal/defra"
	"github.com/jackzampolin/rentshelf/internal/reader"
)

// Kind selects the bookmark or quote list. Its value is the collection name.
type Kind string

const (
	KindBookmark Kind = "Bookmark"
	KindQuote    Kind = "Quote"
)

// ParseKind maps a URL segment ("bookmarks", "quotes") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "bookmark", "bookmarks":
		return KindBookmark, nil
	case "quote", "quotes":
		return KindQuote, nil
	}
	return "", fmt.Errorf("unknown annotation kind %q", s)
}

// Entry is a stored annotation. Index is its position in the owner's list,
// oldest first, and is how clients address it.
type Entry struct {
	Index int `json:"index"`
	reader.Annotation
	CreatedAt time.Time `json:"created_at"`

	docID string
}

// Annotations lists the user's annotations of kind in a book, oldest first.
func (l *Library) Annotations(ctx context.Context, kind Kind, user, bookID string) ([]Entry, error) {
	return l.AnnotationPage(ctx, kind, user, bookID, 0, 0)
}

// AnnotationPage lists up to limit annotations starting at index offset.
// A limit of zero returns the rest of the list.
func (l *Library) AnnotationPage(ctx context.Context, kind Kind, user, bookID string, offset, limit int) ([]Entry, error) {
	if err := defra.ValidateID(bookID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: offset %d limit %d", ErrIndexOutOfRange, offset, limit)
	}
	coll := string(kind)
	resp, err := defra.NewQuery(coll).
		Filter("user", user).
		Filter("book_id", bookID).
		Fields("_docID", "page", "text", "sel_start", "sel_end", "created_at").
		OrderBy("seq", "ASC").
		Page(offset, limit).
		Execute(ctx, l.client)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", strings.ToLower(coll), err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("failed to list %s: %s", strings.ToLower(coll), errMsg)
	}

	docs := resp.Docs(coll)
	entries := make([]Entry, 0, len(docs))
	for i, doc := range docs {
		e := Entry{
			Index: offset + i,
			Annotation: reader.Annotation{
				Page: docInt(doc, "page"),
				Text: docString(doc, "text"),
			},
			CreatedAt: docTime(doc, "created_at"),
			docID:     docString(doc, "_docID"),
		}
		sel := reader.SelectionRange{Start: docInt(doc, "sel_start"), End: docInt(doc, "sel_end")}
		if sel.Valid() {
			e.Selection = &sel
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// AddAnnotation appends an annotation to the user's list. The user must hold
// an active rental.
func (l *Library) AddAnnotation(ctx context.Context, kind Kind, user, bookID string, a reader.Annotation) (*Entry, error) {
	a.Text = strings.TrimSpace(a.Text)
	if a.Text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidAnnotation)
	}
	if a.Selection != nil && !a.Selection.Valid() {
		return nil, fmt.Errorf("%w: selection %d-%d", ErrInvalidAnnotation, a.Selection.Start, a.Selection.End)
	}
	book, err := l.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if a.Page < 1 || a.Page > book.PageCount {
		return nil, fmt.Errorf("%w: page %d outside 1-%d", ErrInvalidAnnotation, a.Page, book.PageCount)
	}
	if err := l.RequireWritable(ctx, user, bookID); err != nil {
		return nil, err
	}

	now := l.now()
	input := map[string]any{
		"user":       user,
		"book_id":    bookID,
		"page":       a.Page,
		"text":       a.Text,
		"seq":        now.UnixNano(),
		"created_at": formatTime(now),
	}
	if a.Selection != nil {
		input["sel_start"] = a.Selection.Start
		input["sel_end"] = a.Selection.End
	}
	docID, err := l.client.Create(ctx, string(kind), input)
	if err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", strings.ToLower(string(kind)), err)
	}

	entry := &Entry{Index: -1, Annotation: a, CreatedAt: now, docID: docID}
	entries, err := l.Annotations(ctx, kind, user, bookID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.docID == docID {
			entry.Index = e.Index
			break
		}
	}
	l.logger.Debug("annotation saved", "kind", kind, "user", user, "book_id", bookID, "page", a.Page)
	return entry, nil
}

// DeleteAnnotation removes the entry at index from the user's list.
func (l *Library) DeleteAnnotation(ctx context.Context, kind Kind, user, bookID string, index int) error {
	if err := l.RequireWritable(ctx, user, bookID); err != nil {
		return err
	}
	entries, err := l.Annotations(ctx, kind, user, bookID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(entries))
	}
	if err := l.client.Delete(ctx, string(kind), entries[index].docID); err != nil {
		return fmt.Errorf("failed to delete %s: %w", strings.ToLower(string(kind)), err)
	}
	return nil
}
