package reader

// PageRange is an inclusive range of 1-based page numbers. A range with
// First > Last is empty.
type PageRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Empty reports whether the range holds no pages.
func (r PageRange) Empty() bool {
	return r.First > r.Last
}

// Contains reports whether page falls inside the range.
func (r PageRange) Contains(page int) bool {
	return page >= r.First && page <= r.Last
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.Last - r.First + 1
}

// RenderWindow holds the canvas and text-layer ranges around the current page.
type RenderWindow struct {
	Canvas PageRange `json:"canvas"`
	Text   PageRange `json:"text"`
}

// ComputeWindow returns the render window for current within a document of
// count pages. It depends only on its arguments. For count < 1 both ranges
// are empty. current is clamped into [1, count].
func ComputeWindow(current, count, canvasRadius, textRadius int) RenderWindow {
	if count < 1 {
		return RenderWindow{Canvas: PageRange{1, 0}, Text: PageRange{1, 0}}
	}
	current = clampInt(current, 1, count)
	if canvasRadius < 0 {
		canvasRadius = 0
	}
	if textRadius > canvasRadius {
		textRadius = canvasRadius
	}
	if textRadius < 0 {
		textRadius = 0
	}
	return RenderWindow{
		Canvas: around(current, count, canvasRadius),
		Text:   around(current, count, textRadius),
	}
}

func around(current, count, radius int) PageRange {
	return PageRange{
		First: max(1, current-radius),
		Last:  min(count, current+radius),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PageMode is how a page slot is rendered.
type PageMode int

const (
	// ModePlaceholder is a sized empty slot.
	ModePlaceholder PageMode = iota
	// ModeCanvas is a full rasterization.
	ModeCanvas
)

func (m PageMode) String() string {
	if m == ModeCanvas {
		return "canvas"
	}
	return "placeholder"
}

// PagePlan is the windowing engine's decision for one page.
type PagePlan struct {
	Page int
	Mode PageMode
	// Text is set for canvas pages that should also get a text layer.
	// It is cleared while the reader is fast-scrolling.
	Text bool
	// Height is the best known slot height in pixels at the current scale.
	Height float64
	// Measured reports whether Height comes from a real render.
	Measured bool
	// Failed marks a page whose last rasterization failed.
	Failed bool
}

// measurement is a rendered page height together with the scale it was
// rendered at, so it can be rescaled after zoom changes.
type measurement struct {
	height float64
	scale  float64
}

func (m measurement) at(scale float64) float64 {
	if m.scale == scale {
		return m.height
	}
	return m.height * (scale / m.scale)
}
