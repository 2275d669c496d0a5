package reader

import (
	"context"
	"fmt"
	"time"
)

// Zoom bounds in percent.
const (
	MinZoom     = 70
	MaxZoom     = 140
	ZoomStep    = 5
	DefaultZoom = 100
)

// Generation identifies one opened document reference. It increments on
// every Open and on Close.
type Generation uint64

// LoadState is the load lifecycle of a session.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// ZoomDirection is the direction of a zoom request.
type ZoomDirection int

const (
	ZoomOut ZoomDirection = -1
	ZoomIn  ZoomDirection = 1
)

// PageSize is a page's unscaled viewport size.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Aspect returns height/width, or 0 if the size is unknown.
func (p PageSize) Aspect() float64 {
	if p.Width <= 0 || p.Height <= 0 {
		return 0
	}
	return p.Height / p.Width
}

// Document is what a Loader learns about an opened document.
type Document struct {
	PageCount int
	FirstPage PageSize
}

// Position is a persisted reading checkpoint.
type Position struct {
	Page         int     `json:"page"`
	ScrollOffset float64 `json:"scroll_offset"`
}

// SelectionRange is a character range within a single page's extracted text.
type SelectionRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the range satisfies 0 <= Start < End.
func (r SelectionRange) Valid() bool {
	return r.Start >= 0 && r.End > r.Start
}

// Annotation is a bookmark or quote payload. Stores identify annotations by
// their index in the owning list; no ID is minted here.
type Annotation struct {
	Page      int             `json:"page"`
	Text      string          `json:"text"`
	Selection *SelectionRange `json:"selection,omitempty"`
}

// Selection is the live text selection on the reading surface.
// Range is nil when the host cannot produce reliable offsets.
type Selection struct {
	Text  string
	Range *SelectionRange
}

// Visibility is one observed page's visible fraction within the scroll
// container.
type Visibility struct {
	Page  int
	Ratio float64
}

// Loader opens a document reference.
type Loader interface {
	Load(ctx context.Context, ref string) (*Document, error)
}

// PositionStore persists reading positions.
type PositionStore interface {
	FetchLastPosition(ctx context.Context, ref string) (*Position, error)
	SaveLastPosition(ctx context.Context, ref string, pos Position) error
}

// AnnotationStore persists bookmarks and quotes.
type AnnotationStore interface {
	SaveBookmark(ctx context.Context, ref string, a Annotation) error
	SaveQuote(ctx context.Context, ref string, a Annotation) error
}

// SelectionSource reads, and never mutates, the host's current selection.
type SelectionSource interface {
	Selection() Selection
}

// Viewport is the host's scroll container.
type Viewport interface {
	ScrollTo(offset float64)
}

// Config tunes a session. Zero values are replaced by DefaultConfig values,
// except TextRadius where zero means only the current page gets a text layer.
type Config struct {
	// CanvasRadius is the number of pages on each side of the current page
	// that get full rasterization.
	CanvasRadius int
	// TextRadius is the number of pages on each side of the current page
	// that get a selectable text layer. Must be smaller than CanvasRadius.
	TextRadius int

	ZoomDebounce   time.Duration
	FastScrollIdle time.Duration
	FrameInterval  time.Duration
	RestoreDelay   time.Duration

	// BaseScale is the render scale at 100% zoom.
	BaseScale float64
	// MaxPixelRatio caps the device pixel ratio handed to the rasterizer.
	MaxPixelRatio float64
	// MinVisibleRatio is the visibility a page must exceed to become current.
	MinVisibleRatio float64
	// MinPlaceholderHeight is the floor for estimated page heights.
	MinPlaceholderHeight float64
	// DefaultAspect is the height/width estimate used before page 1 is measured.
	DefaultAspect float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		CanvasRadius:         3,
		TextRadius:           1,
		ZoomDebounce:         140 * time.Millisecond,
		FastScrollIdle:       200 * time.Millisecond,
		FrameInterval:        16 * time.Millisecond,
		RestoreDelay:         120 * time.Millisecond,
		BaseScale:            1.25,
		MaxPixelRatio:        2,
		MinVisibleRatio:      0.1,
		MinPlaceholderHeight: 200,
		DefaultAspect:        1.3,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CanvasRadius <= 0 {
		c.CanvasRadius = d.CanvasRadius
	}
	if c.TextRadius < 0 {
		c.TextRadius = d.TextRadius
	}
	if c.ZoomDebounce <= 0 {
		c.ZoomDebounce = d.ZoomDebounce
	}
	if c.FastScrollIdle <= 0 {
		c.FastScrollIdle = d.FastScrollIdle
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = d.FrameInterval
	}
	if c.RestoreDelay <= 0 {
		c.RestoreDelay = d.RestoreDelay
	}
	if c.BaseScale <= 0 {
		c.BaseScale = d.BaseScale
	}
	if c.MaxPixelRatio <= 0 {
		c.MaxPixelRatio = d.MaxPixelRatio
	}
	if c.MinVisibleRatio <= 0 {
		c.MinVisibleRatio = d.MinVisibleRatio
	}
	if c.MinPlaceholderHeight <= 0 {
		c.MinPlaceholderHeight = d.MinPlaceholderHeight
	}
	if c.DefaultAspect <= 0 {
		c.DefaultAspect = d.DefaultAspect
	}
	return c
}

// Validate checks the radius relationship the windowing engine depends on.
func (c Config) Validate() error {
	if c.TextRadius >= c.CanvasRadius {
		return fmt.Errorf("text radius %d must be smaller than canvas radius %d", c.TextRadius, c.CanvasRadius)
	}
	if c.MinVisibleRatio >= 1 {
		return fmt.Errorf("min visible ratio %v must be below 1", c.MinVisibleRatio)
	}
	return nil
}
