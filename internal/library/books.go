package library

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackzampolin/rentshelf/internal/defra"
	"github.com/jackzampolin/rentshelf/internal/reader"
)

var bookFields = []string{
	"_docID", "title", "author", "page_count",
	"first_page_width", "first_page_height", "size_bytes", "created_at",
}

// Book is a catalog entry.
type Book struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Author    string          `json:"author,omitempty"`
	PageCount int             `json:"page_count"`
	FirstPage reader.PageSize `json:"first_page"`
	SizeBytes int64           `json:"size_bytes"`
	CreatedAt time.Time       `json:"created_at"`
}

func bookFromDoc(doc map[string]any) Book {
	return Book{
		ID:        docString(doc, "_docID"),
		Title:     docString(doc, "title"),
		Author:    docString(doc, "author"),
		PageCount: docInt(doc, "page_count"),
		FirstPage: reader.PageSize{
			Width:  docFloat(doc, "first_page_width"),
			Height: docFloat(doc, "first_page_height"),
		},
		SizeBytes: int64(docInt(doc, "size_bytes")),
		CreatedAt: docTime(doc, "created_at"),
	}
}

// ListBooks returns every book, newest first.
func (l *Library) ListBooks(ctx context.Context) ([]Book, error) {
	resp, err := defra.NewQuery(collBook).Fields(bookFields...).Execute(ctx, l.client)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("failed to list books: %s", errMsg)
	}

	docs := resp.Docs(collBook)
	books := make([]Book, 0, len(docs))
	for _, doc := range docs {
		books = append(books, bookFromDoc(doc))
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
	return books, nil
}

// GetBook returns one book or ErrNotFound.
func (l *Library) GetBook(ctx context.Context, bookID string) (*Book, error) {
	if err := defra.ValidateID(bookID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	resp, err := defra.SafeQueryByDocID(ctx, l.client, collBook, bookID, bookFields...)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("failed to get book: %s", errMsg)
	}
	docs := resp.Docs(collBook)
	if len(docs) == 0 {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	b := bookFromDoc(docs[0])
	return &b, nil
}
