package tui

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/jackzampolin/rentshelf/internal/reader"
)

// rowPx is how many session pixels one terminal row stands for. Page heights
// and scroll offsets stay in pixels so saved positions mean the same thing
// to every host.
const rowPx = 16.0

// baseColumns is the text width of a page at 100% zoom.
const baseColumns = 72

const minColumns = 20

// collapseSpace joins the words of text with single spaces. Wrapped lines
// joined back with spaces are then substrings of the result.
func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// wrapPage word-wraps page text to width columns. Words longer than width
// are broken hard. An empty page yields no lines.
func wrapPage(text string, width int) []string {
	text = collapseSpace(text)
	if text == "" {
		return nil
	}
	if width < 1 {
		width = 1
	}
	wrapped := wrap.String(wordwrap.String(text, width), width)
	lines := strings.Split(wrapped, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines
}

// columnsFor returns the text width for a page rendered at zoom percent,
// capped to the terminal width when known.
func columnsFor(zoom, termWidth int) int {
	cols := int(math.Round(baseColumns * float64(zoom) / 100))
	if termWidth > 0 && cols > termWidth-4 {
		cols = termWidth - 4
	}
	if cols < minColumns {
		cols = minColumns
	}
	return cols
}

// slotRows converts a slot height to whole terminal rows.
func slotRows(height float64) int {
	rows := int(math.Ceil(height / rowPx))
	if rows < 1 {
		rows = 1
	}
	return rows
}

// renderedHeight is the slot height of a page showing lines of text: a
// header row, the text, and a blank separator.
func renderedHeight(lines int) float64 {
	return float64(lines+2) * rowPx
}

// slotHeights returns each planned page's height rounded to whole rows, so
// row and pixel arithmetic agree.
func slotHeights(plan []reader.PagePlan) []float64 {
	heights := make([]float64, len(plan))
	for i, p := range plan {
		heights[i] = float64(slotRows(p.Height)) * rowPx
	}
	return heights
}

// pageTop returns the offset at which 1-based page starts.
func pageTop(heights []float64, page int) float64 {
	var top float64
	for i := 0; i < page-1 && i < len(heights); i++ {
		top += heights[i]
	}
	return top
}

// anchorAt returns the page containing offset and how far into it offset
// falls. Offsets past the end anchor to the last page.
func anchorAt(heights []float64, offset float64) (int, float64) {
	var top float64
	for i, h := range heights {
		if offset < top+h || i == len(heights)-1 {
			return i + 1, math.Max(offset-top, 0)
		}
		top += h
	}
	return 1, 0
}

func totalHeight(heights []float64) float64 {
	var total float64
	for _, h := range heights {
		total += h
	}
	return total
}

// clampOffset keeps offset within the scrollable range for a viewport of
// the given height.
func clampOffset(offset float64, heights []float64, viewport float64) float64 {
	limit := totalHeight(heights) - viewport
	if offset > limit {
		offset = limit
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

// visibility reports the visible fraction of every page that intersects the
// viewport [offset, offset+viewport). Pages fully outside are omitted.
func visibility(heights []float64, offset, viewport float64) []reader.Visibility {
	var (
		out []reader.Visibility
		top float64
	)
	bottom := offset + viewport
	for i, h := range heights {
		end := top + h
		if h > 0 && end > offset && top < bottom {
			inter := math.Min(end, bottom) - math.Max(top, offset)
			out = append(out, reader.Visibility{Page: i + 1, Ratio: inter / h})
		}
		if top >= bottom {
			break
		}
		top = end
	}
	return out
}

// fitWidth pads or truncates a plain line to exactly width cells.
func fitWidth(line string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(line) > width {
		return runewidth.Truncate(line, width, "…")
	}
	return runewidth.FillRight(line, width)
}
