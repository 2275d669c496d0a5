package reader

import (
	"errors"
	"fmt"
)

// Sentinel errors for the reader package.
var (
	// ErrEmptySelection is returned when a bookmark or quote is requested
	// without an active text selection.
	ErrEmptySelection = errors.New("nothing selected")

	// ErrReadOnly is returned when annotation capture is attempted on a
	// session whose rental no longer allows writes.
	ErrReadOnly = errors.New("session is read-only")

	// ErrFeatureDisabled is returned when the caller disabled the feature
	// for this session.
	ErrFeatureDisabled = errors.New("feature disabled for this session")

	// ErrNotReady is returned by operations that need a loaded document.
	ErrNotReady = errors.New("document not loaded")

	// ErrNoStore is returned when no persistence collaborator is configured.
	ErrNoStore = errors.New("no annotation store configured")
)

// LoadError reports a document that failed to open or parse. It is terminal
// for the session until a new reference is opened.
type LoadError struct {
	Ref string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Ref, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// RenderError reports a single page that failed to rasterize. It never fails
// the session.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
