// Package pdfdoc inspects stored PDF documents: page geometry via pdfcpu and
// per-page plain text via ledongthuc/pdf.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/rentshelf/internal/reader"
)

// ErrNoPages is returned for documents without a single page.
var ErrNoPages = errors.New("pdf has no pages")

// Layout is the geometry of a document, in PDF points.
type Layout struct {
	PageCount int               `json:"page_count"`
	Pages     []reader.PageSize `json:"pages"`
}

// FirstPage returns the size of page 1, or the zero size for an empty layout.
func (l Layout) FirstPage() reader.PageSize {
	if len(l.Pages) == 0 {
		return reader.PageSize{}
	}
	return l.Pages[0]
}

// Document converts the layout into what a reading session needs.
func (l Layout) Document() reader.Document {
	return reader.Document{PageCount: l.PageCount, FirstPage: l.FirstPage()}
}

var (
	confOnce sync.Once
	conf     *model.Configuration
)

// configuration returns a shared relaxed-validation pdfcpu configuration.
func configuration() *model.Configuration {
	confOnce.Do(func() {
		conf = model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed
	})
	return conf
}

// Inspect reads page count and per-page media box sizes.
func Inspect(rs io.ReadSeeker) (*Layout, error) {
	dims, err := api.PageDims(rs, configuration())
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	if len(dims) == 0 {
		return nil, ErrNoPages
	}

	layout := &Layout{
		PageCount: len(dims),
		Pages:     make([]reader.PageSize, len(dims)),
	}
	for i, d := range dims {
		layout.Pages[i] = reader.PageSize{Width: d.Width, Height: d.Height}
	}
	return layout, nil
}

// InspectFile is Inspect for a file on disk.
func InspectFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()
	return Inspect(f)
}

// InspectBytes is Inspect for an in-memory document.
func InspectBytes(data []byte) (*Layout, error) {
	return Inspect(bytes.NewReader(data))
}

// PageCount counts pages without collecting dimensions.
func PageCount(rs io.ReadSeeker) (int, error) {
	n, err := api.PageCount(rs, configuration())
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}
