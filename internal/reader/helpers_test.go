package reader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// fakeClock runs timers only when the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer

	// lateStop makes Stop lose the race with a callback that is already
	// due, the way time.AfterFunc does when the callback waits on a lock.
	lateStop bool
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	if t.clock.lateStop {
		return false
	}
	t.stopped = true
	return active
}

// Advance moves time forward by d, firing due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// pending returns the number of timers that have not fired or been stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type savedPosition struct {
	ref string
	pos Position
}

type memPositions struct {
	mu     sync.Mutex
	last   *Position
	saves  []savedPosition
	err    error
	onSave func()
}

func (m *memPositions) FetchLastPosition(ctx context.Context, ref string) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *memPositions) SaveLastPosition(ctx context.Context, ref string, pos Position) error {
	m.mu.Lock()
	m.saves = append(m.saves, savedPosition{ref: ref, pos: pos})
	hook := m.onSave
	err := m.err
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (m *memPositions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

type memAnnotations struct {
	mu        sync.Mutex
	bookmarks []Annotation
	quotes    []Annotation
	err       error
}

func (m *memAnnotations) SaveBookmark(ctx context.Context, ref string, a Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.bookmarks = append(m.bookmarks, a)
	return nil
}

func (m *memAnnotations) SaveQuote(ctx context.Context, ref string, a Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.quotes = append(m.quotes, a)
	return nil
}

type staticSelection struct {
	sel Selection
}

func (s *staticSelection) Selection() Selection { return s.sel }

type recordingViewport struct {
	mu      sync.Mutex
	offsets []float64
}

func (v *recordingViewport) ScrollTo(offset float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offsets = append(v.offsets, offset)
}

func (v *recordingViewport) calls() []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]float64(nil), v.offsets...)
}

type fixture struct {
	clock       *fakeClock
	positions   *memPositions
	annotations *memAnnotations
	selection   *staticSelection
	viewport    *recordingViewport
	session     *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:       &fakeClock{},
		positions:   &memPositions{},
		annotations: &memAnnotations{},
		selection:   &staticSelection{},
		viewport:    &recordingViewport{},
	}
	s, err := New(DefaultConfig(), Deps{
		Positions:   f.positions,
		Annotations: f.annotations,
		Selection:   f.selection,
		Viewport:    f.viewport,
		Clock:       f.clock,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.session = s
	t.Cleanup(s.Close)
	return f
}

func allFeatures() OpenOptions {
	return OpenOptions{EnableBookmarks: true, EnableQuotes: true, EnableLastPosition: true}
}

// openReady opens ref and completes its load with a pages-page document of
// 600x800 pages.
func (f *fixture) openReady(t *testing.T, ref string, pages int, opts OpenOptions) Generation {
	t.Helper()
	gen := f.session.Open(ref, opts)
	if !f.session.OnLoaded(gen, Document{PageCount: pages, FirstPage: PageSize{Width: 600, Height: 800}}) {
		t.Fatalf("OnLoaded(%d) rejected", gen)
	}
	return gen
}
