package tui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/jackzampolin/rentshelf/internal/reader"
)

func TestWrapPage(t *testing.T) {
	text := "Call me   Ishmael.\nSome years ago, never mind how long precisely,\thaving little money"
	lines := wrapPage(text, 20)
	if len(lines) < 3 {
		t.Fatalf("expected several lines, got %q", lines)
	}
	for _, l := range lines {
		if runewidth.StringWidth(l) > 20 {
			t.Errorf("line %q wider than 20", l)
		}
	}
	if got, want := strings.Join(lines, " "), collapseSpace(text); got != want {
		t.Errorf("joined lines = %q, want %q", got, want)
	}
}

func TestWrapPage_LongWordAndEmpty(t *testing.T) {
	lines := wrapPage(strings.Repeat("x", 25), 10)
	if len(lines) != 3 || lines[0] != strings.Repeat("x", 10) {
		t.Errorf("hard wrap = %q", lines)
	}
	if lines := wrapPage("  \n ", 10); lines != nil {
		t.Errorf("blank page = %q, want nil", lines)
	}
}

func TestColumnsFor(t *testing.T) {
	tests := []struct {
		zoom, width, want int
	}{
		{100, 0, 72},
		{100, 200, 72},
		{140, 200, 101},
		{70, 200, 50},
		{100, 60, 56},
		{100, 10, minColumns},
	}
	for _, tt := range tests {
		if got := columnsFor(tt.zoom, tt.width); got != tt.want {
			t.Errorf("columnsFor(%d, %d) = %d, want %d", tt.zoom, tt.width, got, tt.want)
		}
	}
}

func TestSlotHeights(t *testing.T) {
	plan := []reader.PagePlan{{Page: 1, Height: 990}, {Page: 2, Height: 64}, {Page: 3, Height: 1}}
	got := slotHeights(plan)
	want := []float64{992, 64, 16}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d = %v, want %v", i+1, got[i], want[i])
		}
	}
	if renderedHeight(3) != 80 {
		t.Errorf("renderedHeight(3) = %v, want 80", renderedHeight(3))
	}
}

func TestVisibility(t *testing.T) {
	heights := []float64{100, 200, 100, 400}
	tests := []struct {
		name   string
		offset float64
		want   []reader.Visibility
	}{
		{"top", 0, []reader.Visibility{{Page: 1, Ratio: 1}, {Page: 2, Ratio: 1}}},
		{"straddling", 150, []reader.Visibility{{Page: 2, Ratio: 0.75}, {Page: 3, Ratio: 1}, {Page: 4, Ratio: 0.125}}},
		{"last page", 400, []reader.Visibility{{Page: 4, Ratio: 0.75}}},
		{"past end", 900, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := visibility(heights, tt.offset, 300)
			if len(got) != len(tt.want) {
				t.Fatalf("visibility = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAnchorAndClamp(t *testing.T) {
	heights := []float64{100, 200, 100}

	tests := []struct {
		offset     float64
		wantPage   int
		wantWithin float64
	}{
		{0, 1, 0},
		{99, 1, 99},
		{100, 2, 0},
		{350, 3, 50},
		{1000, 3, 700},
	}
	for _, tt := range tests {
		page, within := anchorAt(heights, tt.offset)
		if page != tt.wantPage || within != tt.wantWithin {
			t.Errorf("anchorAt(%v) = %d, %v; want %d, %v", tt.offset, page, within, tt.wantPage, tt.wantWithin)
		}
	}

	if got := pageTop(heights, 3); got != 300 {
		t.Errorf("pageTop(3) = %v, want 300", got)
	}
	if got := clampOffset(1000, heights, 150); got != 250 {
		t.Errorf("clampOffset past end = %v, want 250", got)
	}
	if got := clampOffset(-5, heights, 150); got != 0 {
		t.Errorf("clampOffset negative = %v, want 0", got)
	}
	if got := clampOffset(50, heights, 1000); got != 0 {
		t.Errorf("clampOffset short document = %v, want 0", got)
	}
}

func TestFitWidthAndRule(t *testing.T) {
	if got := fitWidth("abc", 5); got != "abc  " {
		t.Errorf("fitWidth pad = %q", got)
	}
	if got := fitWidth("abcdefgh", 5); runewidth.StringWidth(got) != 5 || !strings.HasSuffix(got, "…") {
		t.Errorf("fitWidth truncate = %q", got)
	}
	if got := rule(" 3 ", 9); got != "─── 3 ───" {
		t.Errorf("rule = %q", got)
	}
}
