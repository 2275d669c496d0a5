package reader

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
)

// Deps are the collaborators a session talks to. Only Clock is required;
// a nil Loader means the host reports load results via OnLoaded and
// OnLoadFailed itself.
type Deps struct {
	Loader      Loader
	Positions   PositionStore
	Annotations AnnotationStore
	Selection   SelectionSource
	Viewport    Viewport
	Clock       Clock
	Logger      *slog.Logger

	// OnChange is called, outside the session lock, after any state change
	// the host may want to re-render for. It may be called from timer
	// goroutines.
	OnChange func()
}

// OpenOptions are supplied by the caller each time a document is opened.
type OpenOptions struct {
	// ReadOnly disables annotation capture and position saves, e.g. for an
	// expired rental. Reading is unaffected.
	ReadOnly bool

	EnableBookmarks    bool
	EnableQuotes       bool
	EnableLastPosition bool

	// LastPosition, when set, is restored once after the first load. When
	// nil and EnableLastPosition is set, it is fetched from the PositionStore.
	LastPosition *Position

	// PixelRatio is the host's device pixel ratio; it is capped by
	// Config.MaxPixelRatio in render tickets.
	PixelRatio float64
}

// Session is one open viewer instance. All methods are safe for concurrent use.
type Session struct {
	cfg         Config
	loader      Loader
	positions   PositionStore
	annotations AnnotationStore
	selection   SelectionSource
	viewport    Viewport
	clock       Clock
	logger      *slog.Logger
	onChange    func()

	mu   sync.Mutex
	gen  Generation
	ref  string
	opts OpenOptions

	// ctx is canceled whenever the generation changes.
	ctx    context.Context
	cancel context.CancelFunc

	state     LoadState
	loadErr   error
	pageCount int
	firstPage PageSize
	aspect    float64

	requestedZoom int
	appliedZoom   int

	currentPage   int
	scrollOffset  float64
	fastScrolling bool
	framePending  bool

	heights  map[int]measurement
	failed   map[int]bool
	pageText map[int]string
	restore  *Position

	zoomTimer    Timer
	idleTimer    Timer
	frameTimer   Timer
	restoreTimer Timer

	// A fired callback can be waiting on mu after its timer was replaced,
	// so zoom and idle callbacks only act while their sequence is current.
	zoomSeq uint64
	idleSeq uint64
}

// New creates an idle session. Open must be called before it does anything
// useful.
func New(cfg Config, deps Deps) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Session{
		cfg:         cfg,
		loader:      deps.Loader,
		positions:   deps.Positions,
		annotations: deps.Annotations,
		selection:   deps.Selection,
		viewport:    deps.Viewport,
		clock:       deps.Clock,
		logger:      deps.Logger,
		onChange:    deps.OnChange,
	}
	s.resetLocked()
	s.state = StateIdle
	return s, nil
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Open starts loading ref and returns the generation the load belongs to.
// Any in-flight load, timer or render of a previous reference is abandoned.
func (s *Session) Open(ref string, opts OpenOptions) Generation {
	s.mu.Lock()
	s.bumpLocked()
	s.resetLocked()
	s.ref = ref
	s.opts = opts
	s.state = StateLoading
	if opts.LastPosition != nil {
		p := *opts.LastPosition
		s.restore = &p
	}
	gen := s.gen
	ctx := s.ctx
	loader := s.loader
	s.mu.Unlock()

	s.logger.Debug("opening document", "ref", ref, "generation", gen, "read_only", opts.ReadOnly)
	s.changed()

	if loader != nil {
		go s.load(ctx, gen, ref, opts)
	}
	return gen
}

// load runs the Loader and, when enabled, fetches the saved position.
func (s *Session) load(ctx context.Context, gen Generation, ref string, opts OpenOptions) {
	doc, err := s.loader.Load(ctx, ref)
	if err != nil {
		s.OnLoadFailed(gen, err)
		return
	}
	if doc == nil {
		s.OnLoadFailed(gen, errors.New("loader returned no document"))
		return
	}

	if opts.LastPosition == nil && opts.EnableLastPosition && s.positions != nil {
		pos, err := s.positions.FetchLastPosition(ctx, ref)
		if err != nil {
			s.logger.Debug("fetch last position failed", "ref", ref, "error", err)
		} else if pos != nil {
			s.mu.Lock()
			if s.gen == gen {
				p := *pos
				s.restore = &p
			}
			s.mu.Unlock()
		}
	}

	s.OnLoaded(gen, *doc)
}

// OnLoaded completes the load for gen. A completion for an older generation
// is discarded and false is returned.
func (s *Session) OnLoaded(gen Generation, doc Document) bool {
	s.mu.Lock()
	if gen != s.gen || s.state != StateLoading {
		s.mu.Unlock()
		s.logger.Debug("discarding stale load", "generation", gen)
		return false
	}

	s.state = StateReady
	s.pageCount = max(doc.PageCount, 0)
	s.firstPage = doc.FirstPage
	if a := doc.FirstPage.Aspect(); a > 0 {
		s.aspect = a
	}

	if r := s.restore; r != nil {
		if s.pageCount > 0 {
			s.currentPage = clampInt(r.Page, 1, s.pageCount)
		}
		if r.ScrollOffset > 0 && s.viewport != nil {
			offset := r.ScrollOffset
			s.restoreTimer = s.clock.AfterFunc(s.cfg.RestoreDelay, func() {
				s.restoreScroll(gen, offset)
			})
		}
		s.restore = nil
	}
	ref := s.ref
	s.mu.Unlock()

	s.logger.Info("document loaded", "ref", ref, "pages", doc.PageCount)
	s.changed()
	return true
}

// OnLoadFailed fails the load for gen. The session stays failed until a new
// reference is opened; there is no automatic retry.
func (s *Session) OnLoadFailed(gen Generation, err error) bool {
	s.mu.Lock()
	if gen != s.gen || s.state != StateLoading {
		s.mu.Unlock()
		return false
	}
	s.state = StateFailed
	s.loadErr = &LoadError{Ref: s.ref, Err: err}
	ref := s.ref
	s.mu.Unlock()

	s.logger.Warn("document load failed", "ref", ref, "error", err)
	s.changed()
	return true
}

func (s *Session) restoreScroll(gen Generation, offset float64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.restoreTimer = nil
	vp := s.viewport
	s.mu.Unlock()

	vp.ScrollTo(offset)
}

// Close tears the session down. No callback fires after Close returns
// except ones already running.
func (s *Session) Close() {
	s.mu.Lock()
	s.bumpLocked()
	s.resetLocked()
	s.state = StateIdle
	s.ref = ""
	s.mu.Unlock()
	s.changed()
}

// bumpLocked starts a new generation, canceling everything tied to the old one.
func (s *Session) bumpLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.zoomTimer = stopTimer(s.zoomTimer)
	s.idleTimer = stopTimer(s.idleTimer)
	s.frameTimer = stopTimer(s.frameTimer)
	s.restoreTimer = stopTimer(s.restoreTimer)
}

func (s *Session) resetLocked() {
	s.loadErr = nil
	s.pageCount = 0
	s.firstPage = PageSize{}
	s.aspect = s.cfg.DefaultAspect
	s.requestedZoom = DefaultZoom
	s.appliedZoom = DefaultZoom
	s.currentPage = 1
	s.scrollOffset = 0
	s.fastScrolling = false
	s.framePending = false
	s.heights = make(map[int]measurement)
	s.failed = make(map[int]bool)
	s.pageText = make(map[int]string)
	s.restore = nil
	s.opts = OpenOptions{}
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Zoom adjusts the requested zoom by one step. The applied zoom follows after
// Config.ZoomDebounce; a later request within the delay supersedes this one.
// It returns the new requested zoom.
func (s *Session) Zoom(dir ZoomDirection) int {
	s.mu.Lock()
	next := clampInt(s.requestedZoom+int(dir)*ZoomStep, MinZoom, MaxZoom)
	if next == s.requestedZoom {
		s.mu.Unlock()
		return next
	}
	s.requestedZoom = next
	s.zoomTimer = stopTimer(s.zoomTimer)
	s.zoomSeq++
	gen, seq := s.gen, s.zoomSeq
	s.zoomTimer = s.clock.AfterFunc(s.cfg.ZoomDebounce, func() {
		s.applyZoom(gen, seq)
	})
	s.mu.Unlock()

	s.changed()
	return next
}

func (s *Session) applyZoom(gen Generation, seq uint64) {
	s.mu.Lock()
	if gen != s.gen || seq != s.zoomSeq {
		s.mu.Unlock()
		return
	}
	s.zoomTimer = nil
	if s.appliedZoom == s.requestedZoom {
		s.mu.Unlock()
		return
	}
	s.appliedZoom = s.requestedZoom
	zoom := s.appliedZoom
	s.mu.Unlock()

	s.logger.Debug("zoom applied", "percent", zoom)
	s.changed()
}

// Scale returns the effective render scale.
func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scaleLocked()
}

func (s *Session) scaleLocked() float64 {
	return s.cfg.BaseScale * float64(s.appliedZoom) / 100
}

func (s *Session) pixelRatioLocked() float64 {
	dpr := s.opts.PixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	return math.Min(dpr, s.cfg.MaxPixelRatio)
}

// Snapshot is a consistent copy of session state for rendering and tests.
type Snapshot struct {
	Generation      Generation
	Ref             string
	State           LoadState
	Err             error
	PageCount       int
	FirstPageAspect float64
	RequestedZoom   int
	AppliedZoom     int
	Scale           float64
	CurrentPage     int
	ScrollOffset    float64
	FastScrolling   bool
	ReadOnly        bool
	Window          RenderWindow
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Generation:      s.gen,
		Ref:             s.ref,
		State:           s.state,
		Err:             s.loadErr,
		PageCount:       s.pageCount,
		FirstPageAspect: s.aspect,
		RequestedZoom:   s.requestedZoom,
		AppliedZoom:     s.appliedZoom,
		Scale:           s.scaleLocked(),
		CurrentPage:     s.currentPage,
		ScrollOffset:    s.scrollOffset,
		FastScrolling:   s.fastScrolling,
		ReadOnly:        s.opts.ReadOnly,
		Window:          s.windowLocked(),
	}
}
