// Package tui is the terminal reading surface. It hosts a reader.Session and
// draws the session's page plan as wrapped text, one slot per page.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jackzampolin/rentshelf/internal/reader"
)

var clipboardWrite = clipboard.WriteAll

type (
	changedMsg  struct{}
	scrollToMsg struct{ offset float64 }

	pageTextMsg struct {
		ticket reader.RenderTicket
		cols   int
		text   string
		err    error
	}

	annotationMsg struct {
		kind reader.AnnotationKind
		a    reader.Annotation
		err  error
	}

	bookmarksMsg struct {
		items []reader.Annotation
		err   error
	}
)

// events carries session callbacks, which may fire on timer goroutines,
// into the program loop. Change notifications are coalesced.
type events struct {
	ch      chan tea.Msg
	pending atomic.Bool
}

func (e *events) changed() {
	if !e.pending.CompareAndSwap(false, true) {
		return
	}
	select {
	case e.ch <- changedMsg{}:
	default:
		e.pending.Store(false)
	}
}

// ScrollTo implements reader.Viewport.
func (e *events) ScrollTo(offset float64) {
	select {
	case e.ch <- scrollToMsg{offset: offset}:
	default:
	}
}

// selectionBox is the reader.SelectionSource the session reads from.
type selectionBox struct {
	mu  sync.Mutex
	sel reader.Selection
}

func (b *selectionBox) set(text string) {
	b.mu.Lock()
	b.sel = reader.Selection{Text: text}
	b.mu.Unlock()
}

// Selection implements reader.SelectionSource.
func (b *selectionBox) Selection() reader.Selection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel
}

// pageView is a rendered page: its text wrapped at cols for scale.
type pageView struct {
	lines []string
	raw   string
	scale float64
	cols  int
	text  bool
}

// Options configure a Model.
type Options struct {
	Backend Backend
	// Ref is the book ID or file path handed to the backend.
	Ref   string
	Title string
	Open  reader.OpenOptions
	// Config tunes the session; zero fields take reader defaults.
	Config reader.Config
	Logger *slog.Logger
}

// Model implements the Bubble Tea reading UI.
type Model struct {
	backend Backend
	session *reader.Session
	ref     string
	title   string
	opts    reader.OpenOptions
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	events       *events
	manualEvents bool
	sel          *selectionBox

	keys keyMap
	help help.Model

	width  int
	height int

	plan     []reader.PagePlan
	heights  []float64
	offset   float64
	scrolled bool
	pages    map[int]pageView
	inflight map[int]bool

	selecting bool
	selPage   int
	selAnchor int
	selCursor int

	showBookmarks  bool
	bookmarks      []reader.Annotation
	bookmarkCursor int

	status    string
	statusErr bool
	quitting  bool
}

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	infoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	textStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E6E6"))
	pageRuleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E1E1E")).Background(lipgloss.Color("#C89A3A"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	panelStyle       = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#4A4A4A")).
				Padding(0, 1)
)

// New constructs a reading model. The document is opened by Init.
func New(o Options) (*Model, error) {
	if o.Backend == nil {
		return nil, errors.New("tui: backend is required")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	ev := &events{ch: make(chan tea.Msg, 64)}
	sel := &selectionBox{}
	session, err := reader.New(o.Config, reader.Deps{
		Loader:      o.Backend,
		Positions:   o.Backend,
		Annotations: o.Backend,
		Selection:   sel,
		Viewport:    ev,
		Logger:      o.Logger,
		OnChange:    ev.changed,
	})
	if err != nil {
		return nil, err
	}

	title := o.Title
	if title == "" {
		title = filepath.Base(o.Ref)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		backend:  o.Backend,
		session:  session,
		ref:      o.Ref,
		title:    title,
		opts:     o.Open,
		logger:   o.Logger,
		ctx:      ctx,
		cancel:   cancel,
		events:   ev,
		sel:      sel,
		keys:     defaultKeyMap(),
		help:     help.New(),
		pages:    make(map[int]pageView),
		inflight: make(map[int]bool),
	}, nil
}

// Close tears down the session and cancels outstanding requests.
func (m *Model) Close() {
	m.session.Close()
	m.cancel()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.session.Open(m.ref, m.opts)
	return m.listen()
}

func (m *Model) listen() tea.Cmd {
	if m.manualEvents {
		return nil
	}
	ch := m.events.ch
	return func() tea.Msg {
		return <-ch
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, m.refresh()
	case changedMsg:
		m.events.pending.Store(false)
		return m, tea.Batch(m.refresh(), m.listen())
	case scrollToMsg:
		return m, tea.Batch(m.restoreTo(msg.offset), m.listen())
	case pageTextMsg:
		m.pageLoaded(msg)
		return m, m.refresh()
	case annotationMsg:
		m.annotationSaved(msg)
		return m, nil
	case bookmarksMsg:
		if msg.err != nil {
			m.setError("could not load bookmarks: " + msg.err.Error())
			return m, nil
		}
		m.bookmarks = msg.items
		m.bookmarkCursor = 0
		m.showBookmarks = true
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

// bodyRows is the number of terminal rows available for pages.
func (m *Model) bodyRows() int {
	height := m.height
	if height <= 0 {
		height = 24
	}
	rows := height - 2 - lipgloss.Height(m.help.View(m.keys))
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) viewportPx() float64 {
	return float64(m.bodyRows()) * rowPx
}

// layout refreshes the plan and slot heights. When heights change the
// offset follows the page at the top of the viewport so reading does not
// jump as pages above it are measured.
func (m *Model) layout() {
	plan := m.session.Plan()
	heights := slotHeights(plan)
	if len(m.heights) == len(heights) && len(heights) > 0 {
		page, within := anchorAt(m.heights, m.offset)
		m.offset = pageTop(heights, page) + math.Min(within, heights[page-1])
	}
	m.plan, m.heights = plan, heights
	m.offset = clampOffset(m.offset, heights, m.viewportPx())
}

// refresh brings the view in line with the session and returns commands
// for pages that need text.
func (m *Model) refresh() tea.Cmd {
	snap := m.session.Snapshot()
	if snap.State != reader.StateReady {
		return nil
	}
	m.layout()
	// Until the first scroll the current page is whatever the session
	// restored, not what happens to sit at offset 0.
	if m.scrolled {
		if _, changed := m.session.ObserveVisibility(visibility(m.heights, m.offset, m.viewportPx())); changed {
			m.plan = m.session.Plan()
			snap = m.session.Snapshot()
		}
		m.keepSelectionOnCurrentPage()
	}

	cols := columnsFor(snap.AppliedZoom, m.width)
	var cmds []tea.Cmd
	for _, p := range m.plan {
		if p.Mode != reader.ModeCanvas {
			m.dropPage(p.Page)
			continue
		}
		if p.Failed || m.inflight[p.Page] {
			continue
		}
		if v, ok := m.pages[p.Page]; ok && v.scale == snap.Scale && v.cols == cols {
			if p.Text && !v.text {
				if t, ok := m.session.BeginRender(p.Page); ok && t.Text {
					v.text = m.session.CompleteText(t, v.raw)
					m.pages[p.Page] = v
				}
			}
			continue
		}
		t, ok := m.session.BeginRender(p.Page)
		if !ok {
			continue
		}
		m.inflight[p.Page] = true
		cmds = append(cmds, m.fetchPage(t, cols))
	}
	return tea.Batch(cmds...)
}

func (m *Model) dropPage(page int) {
	if _, ok := m.pages[page]; !ok {
		return
	}
	delete(m.pages, page)
	if m.selecting && m.selPage == page {
		m.clearSelection()
	}
}

func (m *Model) fetchPage(t reader.RenderTicket, cols int) tea.Cmd {
	ctx, backend, ref := m.ctx, m.backend, m.ref
	return func() tea.Msg {
		text, err := backend.PageText(ctx, ref, t.Page)
		return pageTextMsg{ticket: t, cols: cols, text: text, err: err}
	}
}

func (m *Model) pageLoaded(msg pageTextMsg) {
	t := msg.ticket
	delete(m.inflight, t.Page)
	if msg.err != nil {
		m.session.FailRender(t, msg.err)
		return
	}
	text := collapseSpace(msg.text)
	lines := wrapPage(text, msg.cols)
	if !m.session.CompleteRender(t, renderedHeight(len(lines))) {
		return
	}
	v := pageView{lines: lines, raw: text, scale: t.Scale, cols: msg.cols}
	if t.Text {
		v.text = m.session.CompleteText(t, text)
	}
	if m.selecting && m.selPage == t.Page {
		m.clearSelection()
	}
	m.pages[t.Page] = v
}

// scrollTo moves the viewport and reports the scroll to the session.
func (m *Model) scrollTo(offset float64) tea.Cmd {
	if m.session.Snapshot().State != reader.StateReady {
		return nil
	}
	m.layout()
	offset = clampOffset(offset, m.heights, m.viewportPx())
	if offset == m.offset && m.scrolled {
		return nil
	}
	m.offset = offset
	m.scrolled = true
	// The current page must be settled before a position save can read it.
	m.session.ObserveVisibility(visibility(m.heights, offset, m.viewportPx()))
	m.keepSelectionOnCurrentPage()
	m.session.Scroll(offset)
	return m.refresh()
}

// keepSelectionOnCurrentPage drops a selection whose page is no longer the
// current page. Annotations are filed under the current page, and its text
// is where the selection offsets are looked up.
func (m *Model) keepSelectionOnCurrentPage() {
	if m.selecting && m.session.CurrentPage() != m.selPage {
		m.clearSelection()
		m.setStatus(fmt.Sprintf("Selection cleared: now on page %d", m.session.CurrentPage()))
	}
}

// restoreTo applies a saved scroll offset. Estimated heights rarely match
// the layout the offset was saved against, so when the offset lands on a
// different page than the one the session restored, the restored page wins.
func (m *Model) restoreTo(offset float64) tea.Cmd {
	snap := m.session.Snapshot()
	if snap.State != reader.StateReady {
		return nil
	}
	m.layout()
	if page, _ := anchorAt(m.heights, offset); page != snap.CurrentPage {
		offset = pageTop(m.heights, snap.CurrentPage)
	}
	return m.scrollTo(offset)
}

func (m *Model) scrollBy(rows int) tea.Cmd {
	return m.scrollTo(m.offset + float64(rows)*rowPx)
}

func (m *Model) jumpToPage(page int) tea.Cmd {
	m.layout()
	if page < 1 || page > len(m.heights) {
		return nil
	}
	return m.scrollTo(pageTop(m.heights, page))
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return tea.Quit
	}
	if m.showBookmarks {
		return m.handleBookmarkKey(msg)
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m.refresh()
	}
	if m.session.Snapshot().State != reader.StateReady {
		return nil
	}
	m.status = ""

	if m.selecting {
		switch {
		case key.Matches(msg, m.keys.Down):
			return m.moveSelection(1)
		case key.Matches(msg, m.keys.Up):
			return m.moveSelection(-1)
		case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Select):
			m.clearSelection()
			return nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		return m.scrollBy(1)
	case key.Matches(msg, m.keys.Up):
		return m.scrollBy(-1)
	case key.Matches(msg, m.keys.PageDown):
		return m.scrollBy(m.bodyRows() - 1)
	case key.Matches(msg, m.keys.PageUp):
		return m.scrollBy(-(m.bodyRows() - 1))
	case key.Matches(msg, m.keys.NextPage):
		return m.jumpToPage(m.session.CurrentPage() + 1)
	case key.Matches(msg, m.keys.PrevPage):
		return m.jumpToPage(m.session.CurrentPage() - 1)
	case key.Matches(msg, m.keys.Top):
		return m.scrollTo(0)
	case key.Matches(msg, m.keys.Bottom):
		return m.scrollTo(totalHeight(m.heights))
	case key.Matches(msg, m.keys.ZoomIn):
		m.setStatus(fmt.Sprintf("Zoom %d%%", m.session.Zoom(reader.ZoomIn)))
	case key.Matches(msg, m.keys.ZoomOut):
		m.setStatus(fmt.Sprintf("Zoom %d%%", m.session.Zoom(reader.ZoomOut)))
	case key.Matches(msg, m.keys.Select):
		m.startSelection()
	case key.Matches(msg, m.keys.Bookmark):
		return m.capture(reader.KindBookmark)
	case key.Matches(msg, m.keys.Quote):
		return m.capture(reader.KindQuote)
	case key.Matches(msg, m.keys.Copy):
		m.copySelection()
	case key.Matches(msg, m.keys.Bookmarks):
		return m.loadBookmarks()
	case key.Matches(msg, m.keys.Cancel):
		m.clearSelection()
	}
	return nil
}

func (m *Model) handleBookmarkKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.bookmarkCursor < len(m.bookmarks)-1 {
			m.bookmarkCursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.bookmarkCursor > 0 {
			m.bookmarkCursor--
		}
	case key.Matches(msg, m.keys.Jump):
		m.showBookmarks = false
		if m.bookmarkCursor < len(m.bookmarks) {
			return m.jumpToPage(m.bookmarks[m.bookmarkCursor].Page)
		}
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Bookmarks):
		m.showBookmarks = false
	}
	return nil
}

// startSelection selects the first visible line of the current page.
func (m *Model) startSelection() {
	page := m.session.CurrentPage()
	v, ok := m.pages[page]
	if !ok || len(v.lines) == 0 {
		m.setError("nothing to select on this page yet")
		return
	}
	first := int((m.offset-pageTop(m.heights, page))/rowPx) - 1
	first = max(0, min(first, len(v.lines)-1))

	m.selecting = true
	m.selPage = page
	m.selAnchor = first
	m.selCursor = first
	m.sel.set(m.selectedText())
}

func (m *Model) moveSelection(delta int) tea.Cmd {
	v := m.pages[m.selPage]
	m.selCursor = max(0, min(m.selCursor+delta, len(v.lines)-1))
	m.sel.set(m.selectedText())

	// Keep the cursor line on screen.
	lineTop := pageTop(m.heights, m.selPage) + float64(m.selCursor+1)*rowPx
	switch {
	case lineTop < m.offset:
		return m.scrollTo(lineTop)
	case lineTop+rowPx > m.offset+m.viewportPx():
		return m.scrollTo(lineTop + rowPx - m.viewportPx())
	}
	return nil
}

func (m *Model) selectedRange() (int, int) {
	return min(m.selAnchor, m.selCursor), max(m.selAnchor, m.selCursor)
}

func (m *Model) isSelected(page, line int) bool {
	if !m.selecting || page != m.selPage {
		return false
	}
	lo, hi := m.selectedRange()
	return line >= lo && line <= hi
}

func (m *Model) selectedText() string {
	if !m.selecting {
		return ""
	}
	v := m.pages[m.selPage]
	lo, hi := m.selectedRange()
	if hi >= len(v.lines) {
		return ""
	}
	return strings.Join(v.lines[lo:hi+1], " ")
}

func (m *Model) clearSelection() {
	m.selecting = false
	m.sel.set("")
}

func (m *Model) capture(kind reader.AnnotationKind) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		var (
			a   reader.Annotation
			err error
		)
		if kind == reader.KindQuote {
			a, err = session.CreateQuote(ctx)
		} else {
			a, err = session.CreateBookmark(ctx)
		}
		return annotationMsg{kind: kind, a: a, err: err}
	}
}

func (m *Model) annotationSaved(msg annotationMsg) {
	switch {
	case errors.Is(msg.err, reader.ErrEmptySelection):
		m.setError("select some text first (v)")
	case errors.Is(msg.err, reader.ErrReadOnly):
		m.setError("rental ended: this book is read-only")
	case errors.Is(msg.err, reader.ErrFeatureDisabled):
		m.setError(string(msg.kind) + "s are turned off")
	case msg.err != nil:
		m.setError(msg.err.Error())
	default:
		m.clearSelection()
		verb := "Bookmarked"
		if msg.kind == reader.KindQuote {
			verb = "Quoted"
		}
		m.setStatus(fmt.Sprintf("%s page %d", verb, msg.a.Page))
	}
}

func (m *Model) copySelection() {
	text := m.selectedText()
	if text == "" {
		m.setError("select some text first (v)")
		return
	}
	if err := clipboardWrite(text); err != nil {
		m.setError("copy failed: " + err.Error())
		return
	}
	m.setStatus(fmt.Sprintf("Copied %d characters", len([]rune(text))))
}

func (m *Model) loadBookmarks() tea.Cmd {
	ctx, backend, ref := m.ctx, m.backend, m.ref
	return func() tea.Msg {
		items, err := backend.Bookmarks(ctx, ref)
		return bookmarksMsg{items: items, err: err}
	}
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(s string) {
	m.status, m.statusErr = s, true
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	snap := m.session.Snapshot()
	rows := m.bodyRows()

	var body string
	switch snap.State {
	case reader.StateReady:
		if m.showBookmarks {
			body = m.renderBookmarks(width, rows)
		} else {
			body = m.renderPages(snap, width, rows)
		}
	case reader.StateFailed:
		body = lipgloss.Place(width, rows, lipgloss.Center, lipgloss.Center, errorStyle.Render(snap.Err.Error()))
	default:
		body = lipgloss.Place(width, rows, lipgloss.Center, lipgloss.Center, infoStyle.Render("Opening "+m.title+"…"))
	}
	return strings.Join([]string{
		m.renderHeader(snap, width),
		body,
		m.renderStatus(width),
		m.help.View(m.keys),
	}, "\n")
}

func (m *Model) renderHeader(snap reader.Snapshot, width int) string {
	left := titleStyle.Render(runewidth.Truncate(m.title, max(width/2, 1), "…"))
	if snap.State != reader.StateReady {
		return left
	}
	info := fmt.Sprintf("page %d/%d  %d%%", snap.CurrentPage, snap.PageCount, snap.RequestedZoom)
	if snap.ReadOnly {
		info += "  read-only"
	}
	right := infoStyle.Render(info)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *Model) renderStatus(width int) string {
	switch {
	case m.status != "" && m.statusErr:
		return errorStyle.Render(fitWidth(m.status, width))
	case m.status != "":
		return statusStyle.Render(fitWidth(m.status, width))
	case m.selecting:
		lo, hi := m.selectedRange()
		return infoStyle.Render(fitWidth(fmt.Sprintf("%d lines selected  b bookmark  q quote  y copy  esc cancel", hi-lo+1), width))
	}
	return ""
}

// renderPages draws the rows of every slot that intersects the viewport.
func (m *Model) renderPages(snap reader.Snapshot, width, rows int) string {
	cols := columnsFor(snap.AppliedZoom, width)
	top := int(m.offset / rowPx)
	out := make([]string, 0, rows)

	start := 0
	for i, p := range m.plan {
		if i >= len(m.heights) || start >= top+rows {
			break
		}
		n := slotRows(m.heights[i])
		for r := max(0, top-start); r < n && start+r < top+rows; r++ {
			out = append(out, lipgloss.PlaceHorizontal(width, lipgloss.Center, m.slotLine(p, r, n, cols)))
		}
		start += n
	}
	for len(out) < rows {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

func (m *Model) slotLine(p reader.PagePlan, r, n, cols int) string {
	if r == 0 {
		return pageRuleStyle.Render(rule(fmt.Sprintf(" %d ", p.Page), cols))
	}
	blank := strings.Repeat(" ", cols)
	if v, ok := m.pages[p.Page]; ok && p.Mode == reader.ModeCanvas {
		i := r - 1
		if i >= len(v.lines) {
			return blank
		}
		line := fitWidth(v.lines[i], cols)
		if m.isSelected(p.Page, i) {
			return selectedStyle.Render(line)
		}
		return textStyle.Render(line)
	}
	if r != n/2 {
		return blank
	}
	switch {
	case p.Failed:
		return errorStyle.Render(lipgloss.PlaceHorizontal(cols, lipgloss.Center, fmt.Sprintf("page %d could not be loaded", p.Page)))
	case p.Mode == reader.ModeCanvas:
		return placeholderStyle.Render(lipgloss.PlaceHorizontal(cols, lipgloss.Center, "loading…"))
	default:
		return placeholderStyle.Render(lipgloss.PlaceHorizontal(cols, lipgloss.Center, "·"))
	}
}

// rule centers label in a horizontal line cols cells wide.
func rule(label string, cols int) string {
	w := runewidth.StringWidth(label)
	if w >= cols {
		return runewidth.Truncate(label, cols, "")
	}
	left := (cols - w) / 2
	return strings.Repeat("─", left) + label + strings.Repeat("─", cols-w-left)
}

func (m *Model) renderBookmarks(width, rows int) string {
	inner := max(min(width-8, 60), minColumns)
	var lines []string
	lines = append(lines, titleStyle.Render("Bookmarks"))
	if len(m.bookmarks) == 0 {
		lines = append(lines, infoStyle.Render(fitWidth("None yet. Select lines with v, then press b.", inner)))
	}

	visible := max(rows-4, 1)
	first := max(0, m.bookmarkCursor-visible+1)
	for i := first; i < len(m.bookmarks) && i < first+visible; i++ {
		b := m.bookmarks[i]
		line := fitWidth(fmt.Sprintf("p.%-4d %s", b.Page, collapseSpace(b.Text)), inner)
		if i == m.bookmarkCursor {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.Place(width, rows, lipgloss.Center, lipgloss.Center, panelStyle.Render(strings.Join(lines, "\n")))
}
