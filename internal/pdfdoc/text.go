package pdfdoc

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

// TextLayer extracts plain text per page. Extracted pages are cached; the
// underlying reader is not safe for concurrent use so access is serialized.
type TextLayer struct {
	mu    sync.Mutex
	f     *os.File
	r     *pdf.Reader
	pages map[int]string
}

// OpenText opens the PDF at path for text extraction.
func OpenText(path string) (*TextLayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &TextLayer{f: f, r: r, pages: make(map[int]string)}, nil
}

// NumPage returns the number of pages the text reader sees.
func (t *TextLayer) NumPage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.r.NumPage()
}

// PageText returns the NFC-normalized plain text of 1-based page n. Pages
// with no text content (image-only scans) return "".
func (t *TextLayer) PageText(n int) (text string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// The text reader panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to extract text from page %d: %v", n, r)
		}
	}()

	if text, ok := t.pages[n]; ok {
		return text, nil
	}
	if n < 1 || n > t.r.NumPage() {
		return "", fmt.Errorf("page %d out of range 1..%d", n, t.r.NumPage())
	}

	page := t.r.Page(n)
	if page.V.IsNull() {
		t.pages[n] = ""
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", n, err)
	}
	text = norm.NFC.String(strings.TrimSpace(text))
	t.pages[n] = text
	return text, nil
}

// Close releases the file.
func (t *TextLayer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.f.Close()
}
