package reader

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// AnnotationKind distinguishes the two annotation collections.
type AnnotationKind string

const (
	KindBookmark AnnotationKind = "bookmark"
	KindQuote    AnnotationKind = "quote"
)

// CaptureSelection returns the trimmed live selection, or "" when nothing is
// selected or no selection source is attached.
func (s *Session) CaptureSelection() string {
	if s.selection == nil {
		return ""
	}
	return strings.TrimSpace(s.selection.Selection().Text)
}

// CreateBookmark saves the current selection as a bookmark on the current page.
func (s *Session) CreateBookmark(ctx context.Context) (Annotation, error) {
	return s.capture(ctx, KindBookmark)
}

// CreateQuote saves the current selection as a quote on the current page.
func (s *Session) CreateQuote(ctx context.Context) (Annotation, error) {
	return s.capture(ctx, KindQuote)
}

func (s *Session) capture(ctx context.Context, kind AnnotationKind) (Annotation, error) {
	s.mu.Lock()
	opts := s.opts
	state := s.state
	page := s.currentPage
	ref := s.ref
	pageText, haveText := s.pageText[page]
	s.mu.Unlock()

	if opts.ReadOnly {
		return Annotation{}, ErrReadOnly
	}
	enabled := opts.EnableBookmarks
	if kind == KindQuote {
		enabled = opts.EnableQuotes
	}
	if !enabled {
		return Annotation{}, fmt.Errorf("%s: %w", kind, ErrFeatureDisabled)
	}
	if state != StateReady {
		return Annotation{}, ErrNotReady
	}

	var sel Selection
	if s.selection != nil {
		sel = s.selection.Selection()
	}
	text := strings.TrimSpace(sel.Text)
	if text == "" {
		return Annotation{}, ErrEmptySelection
	}
	if s.annotations == nil {
		return Annotation{}, ErrNoStore
	}

	a := Annotation{Page: page, Text: text}
	switch {
	case sel.Range != nil && sel.Range.Valid():
		r := *sel.Range
		a.Selection = &r
	case haveText:
		a.Selection = locateSelection(pageText, text)
	}

	var err error
	if kind == KindQuote {
		err = s.annotations.SaveQuote(ctx, ref, a)
	} else {
		err = s.annotations.SaveBookmark(ctx, ref, a)
	}
	if err != nil {
		return Annotation{}, fmt.Errorf("save %s: %w", kind, err)
	}

	s.logger.Info("annotation saved", "kind", kind, "ref", ref, "page", page, "has_offsets", a.Selection != nil)
	return a, nil
}

// normalizeText puts page text into NFC so offsets are stable regardless of
// how the PDF encoded composed characters.
func normalizeText(text string) string {
	return norm.NFC.String(text)
}

// locateSelection finds text within pageText and returns its rune offsets.
// It returns nil when the text occurs nowhere or more than once, since the
// offsets would then be a guess.
func locateSelection(pageText, text string) *SelectionRange {
	needle := normalizeText(text)
	idx := strings.Index(pageText, needle)
	if idx < 0 {
		return nil
	}
	if strings.Contains(pageText[idx+len(needle):], needle) {
		return nil
	}
	start := utf8.RuneCountInString(pageText[:idx])
	return &SelectionRange{Start: start, End: start + utf8.RuneCountInString(needle)}
}
