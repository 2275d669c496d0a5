package pdfdoc

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackzampolin/rentshelf/internal/home"
	"github.com/jackzampolin/rentshelf/internal/reader"
)

// Store serves stored book PDFs from the home directory, caching layouts
// and open text layers per book.
type Store struct {
	home *home.Dir

	mu      sync.Mutex
	layouts map[string]*Layout
	texts   map[string]*TextLayer
}

// NewStore creates a store rooted at h.
func NewStore(h *home.Dir) *Store {
	return &Store{
		home:    h,
		layouts: make(map[string]*Layout),
		texts:   make(map[string]*TextLayer),
	}
}

// Path returns where the PDF for bookID lives.
func (s *Store) Path(bookID string) string {
	return s.home.BookPDFPath(bookID)
}

// Exists reports whether a PDF is stored for bookID.
func (s *Store) Exists(bookID string) bool {
	_, err := os.Stat(s.Path(bookID))
	return err == nil
}

// Layout returns the page geometry of a stored book.
func (s *Store) Layout(bookID string) (*Layout, error) {
	s.mu.Lock()
	if l, ok := s.layouts[bookID]; ok {
		s.mu.Unlock()
		return l, nil
	}
	s.mu.Unlock()

	l, err := InspectFile(s.Path(bookID))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.layouts[bookID] = l
	s.mu.Unlock()
	return l, nil
}

// PageText returns the extracted text of one page of a stored book.
func (s *Store) PageText(bookID string, page int) (string, error) {
	s.mu.Lock()
	t, ok := s.texts[bookID]
	if !ok {
		var err error
		t, err = OpenText(s.Path(bookID))
		if err != nil {
			s.mu.Unlock()
			return "", err
		}
		s.texts[bookID] = t
	}
	s.mu.Unlock()

	return t.PageText(page)
}

// Forget drops cached state for bookID.
func (s *Store) Forget(bookID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layouts, bookID)
	if t, ok := s.texts[bookID]; ok {
		t.Close()
		delete(s.texts, bookID)
	}
}

// Close closes every open text layer.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, t := range s.texts {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.texts, id)
	}
	return firstErr
}

// Load implements reader.Loader for refs that are book IDs.
func (s *Store) Load(ctx context.Context, bookID string) (*reader.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := s.Layout(bookID)
	if err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, err)
	}
	doc := l.Document()
	return &doc, nil
}

// FileLoader implements reader.Loader for refs that are file paths.
type FileLoader struct{}

// Load inspects the PDF at path.
func (FileLoader) Load(ctx context.Context, path string) (*reader.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := InspectFile(path)
	if err != nil {
		return nil, err
	}
	doc := l.Document()
	return &doc, nil
}
