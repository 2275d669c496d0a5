package reader

// RenderTicket authorizes one page rasterization. The host hands it back
// with the result; tickets from an older generation are ignored.
type RenderTicket struct {
	Generation Generation
	Page       int
	Scale      float64
	PixelRatio float64
	// Text is set when the host should also extract the page's text layer.
	Text bool
}

// Window returns the current render window.
func (s *Session) Window() RenderWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowLocked()
}

func (s *Session) windowLocked() RenderWindow {
	return ComputeWindow(s.currentPage, s.pageCount, s.cfg.CanvasRadius, s.cfg.TextRadius)
}

// Plan returns the render decision for every page of the document. It is
// empty until the document is ready.
func (s *Session) Plan() []PagePlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil
	}

	w := s.windowLocked()
	plans := make([]PagePlan, s.pageCount)
	for i := range plans {
		page := i + 1
		height, measured := s.slotHeightLocked(page)
		p := PagePlan{
			Page:     page,
			Mode:     ModePlaceholder,
			Height:   height,
			Measured: measured,
			Failed:   s.failed[page],
		}
		if w.Canvas.Contains(page) {
			p.Mode = ModeCanvas
			p.Text = w.Text.Contains(page) && !s.fastScrolling
		}
		plans[i] = p
	}
	return plans
}

// PageHeight returns the slot height the engine would use for page.
func (s *Session) PageHeight(page int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, _ := s.slotHeightLocked(page)
	return h
}

// slotHeightLocked returns the measured height at the current scale if the
// page was rendered before, else the estimate from page 1's width and aspect.
func (s *Session) slotHeightLocked(page int) (float64, bool) {
	scale := s.scaleLocked()
	if m, ok := s.heights[page]; ok {
		return m.at(scale), true
	}
	est := s.firstPage.Width * scale * s.aspect
	if est < s.cfg.MinPlaceholderHeight {
		est = s.cfg.MinPlaceholderHeight
	}
	return est, false
}

// BeginRender issues a ticket for rasterizing page. It returns false when the
// document is not ready or the page is outside the canvas window.
func (s *Session) BeginRender(page int) (RenderTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return RenderTicket{}, false
	}
	w := s.windowLocked()
	if !w.Canvas.Contains(page) {
		return RenderTicket{}, false
	}
	return RenderTicket{
		Generation: s.gen,
		Page:       page,
		Scale:      s.scaleLocked(),
		PixelRatio: s.pixelRatioLocked(),
		Text:       w.Text.Contains(page) && !s.fastScrolling,
	}, true
}

// CompleteRender records the rendered height of the ticket's page. It
// returns false, recording nothing, for stale tickets or non-positive heights.
func (s *Session) CompleteRender(t RenderTicket, height float64) bool {
	s.mu.Lock()
	if t.Generation != s.gen || s.state != StateReady || height <= 0 || t.Scale <= 0 {
		s.mu.Unlock()
		return false
	}
	prev, had := s.heights[t.Page]
	s.heights[t.Page] = measurement{height: height, scale: t.Scale}
	delete(s.failed, t.Page)
	s.mu.Unlock()

	if !had || prev.at(t.Scale) != height {
		s.changed()
	}
	return true
}

// FailRender marks the ticket's page as failed. The page keeps its slot and
// stays failed until it leaves the canvas window; the session is unaffected.
func (s *Session) FailRender(t RenderTicket, err error) bool {
	s.mu.Lock()
	if t.Generation != s.gen || s.state != StateReady {
		s.mu.Unlock()
		return false
	}
	s.failed[t.Page] = true
	s.mu.Unlock()

	s.logger.Warn("page render failed", "error", &RenderError{Page: t.Page, Err: err})
	s.changed()
	return true
}

// pruneFailedLocked forgets failures of pages that left the canvas window,
// so they are rendered again when they come back.
func (s *Session) pruneFailedLocked() {
	w := s.windowLocked()
	for page := range s.failed {
		if !w.Canvas.Contains(page) {
			delete(s.failed, page)
		}
	}
}

// CompleteText stores the extracted text layer of the ticket's page. It is
// used to locate selection offsets for annotations.
func (s *Session) CompleteText(t RenderTicket, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Generation != s.gen || s.state != StateReady {
		return false
	}
	s.pageText[t.Page] = normalizeText(text)
	return true
}
