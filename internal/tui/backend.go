package tui

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/localstore"
	"github.com/jackzampolin/rentshelf/internal/pdfdoc"
	"github.com/jackzampolin/rentshelf/internal/reader"
)

// Backend is everything the terminal reader needs from where a book lives.
type Backend interface {
	reader.Loader
	reader.PositionStore
	reader.AnnotationStore

	// PageText returns the plain text of 1-based page.
	PageText(ctx context.Context, ref string, page int) (string, error)
	// Bookmarks lists saved bookmarks, oldest first.
	Bookmarks(ctx context.Context, ref string) ([]reader.Annotation, error)
}

// Remote reads a rented book through the rentshelf server. Refs are book IDs.
type Remote struct {
	client *api.Client
}

var _ Backend = (*Remote)(nil)

// NewRemote creates a backend that talks to the server behind client.
func NewRemote(client *api.Client) *Remote {
	return &Remote{client: client}
}

func bookPath(bookID string, rest ...string) string {
	p := "/api/books/" + url.PathEscape(bookID)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Load implements reader.Loader using the book's layout.
func (r *Remote) Load(ctx context.Context, bookID string) (*reader.Document, error) {
	var resp struct {
		ReadOnly bool `json:"read_only"`
		pdfdoc.Layout
	}
	if err := r.client.Get(ctx, bookPath(bookID, "layout"), &resp); err != nil {
		return nil, err
	}
	doc := resp.Layout.Document()
	return &doc, nil
}

// Access reports whether the caller may read and annotate bookID.
func (r *Remote) Access(ctx context.Context, bookID string) (*library.Access, error) {
	var access library.Access
	if err := r.client.Get(ctx, bookPath(bookID, "access"), &access); err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *Remote) PageText(ctx context.Context, bookID string, page int) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	if err := r.client.Get(ctx, bookPath(bookID, "pages", fmt.Sprint(page), "text"), &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// FetchLastPosition implements reader.PositionStore.
func (r *Remote) FetchLastPosition(ctx context.Context, bookID string) (*reader.Position, error) {
	var resp struct {
		Position *reader.Position `json:"position"`
	}
	if err := r.client.Get(ctx, bookPath(bookID, "position"), &resp); err != nil {
		return nil, err
	}
	return resp.Position, nil
}

// SaveLastPosition implements reader.PositionStore.
func (r *Remote) SaveLastPosition(ctx context.Context, bookID string, pos reader.Position) error {
	return r.client.Put(ctx, bookPath(bookID, "position"), pos, nil)
}

// SaveBookmark implements reader.AnnotationStore.
func (r *Remote) SaveBookmark(ctx context.Context, bookID string, a reader.Annotation) error {
	return r.client.Post(ctx, bookPath(bookID, "bookmarks"), a, nil)
}

// SaveQuote implements reader.AnnotationStore.
func (r *Remote) SaveQuote(ctx context.Context, bookID string, a reader.Annotation) error {
	return r.client.Post(ctx, bookPath(bookID, "quotes"), a, nil)
}

func (r *Remote) Bookmarks(ctx context.Context, bookID string) ([]reader.Annotation, error) {
	var resp struct {
		Items []library.Entry `json:"items"`
	}
	if err := r.client.Get(ctx, bookPath(bookID, "bookmarks"), &resp); err != nil {
		return nil, err
	}
	out := make([]reader.Annotation, len(resp.Items))
	for i, e := range resp.Items {
		out[i] = e.Annotation
	}
	return out, nil
}

// Local reads a PDF from disk and keeps positions and annotations in a
// local SQLite store. Refs are file paths.
type Local struct {
	*localstore.Store
	loader pdfdoc.FileLoader
	text   *pdfdoc.TextLayer
}

var _ Backend = (*Local)(nil)

// OpenLocal opens the PDF at path for text extraction. The store is shared
// and not closed by Close.
func OpenLocal(path string, store *localstore.Store) (*Local, error) {
	text, err := pdfdoc.OpenText(path)
	if err != nil {
		return nil, err
	}
	return &Local{Store: store, text: text}, nil
}

func (l *Local) Load(ctx context.Context, path string) (*reader.Document, error) {
	return l.loader.Load(ctx, path)
}

func (l *Local) PageText(_ context.Context, _ string, page int) (string, error) {
	return l.text.PageText(page)
}

func (l *Local) Bookmarks(ctx context.Context, path string) ([]reader.Annotation, error) {
	return l.Store.Annotations(ctx, library.KindBookmark, path)
}

// Close releases the PDF.
func (l *Local) Close() error {
	return l.text.Close()
}
