package reader

import "sort"

// ObserveVisibility evaluates one batch of visibility observations and
// updates the current page. The page with the highest ratio above
// Config.MinVisibleRatio wins; ties go to the lowest page number. Pages the
// host is not currently observing are simply absent from the batch. It
// returns the current page and whether it changed.
func (s *Session) ObserveVisibility(batch []Visibility) (int, bool) {
	entries := make([]Visibility, 0, len(batch))
	entries = append(entries, batch...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Page < entries[j].Page
	})

	s.mu.Lock()
	if s.state != StateReady || s.pageCount == 0 {
		cur := s.currentPage
		s.mu.Unlock()
		return cur, false
	}

	best, bestRatio := 0, -1.0
	for _, e := range entries {
		if e.Page < 1 || e.Page > s.pageCount || e.Ratio <= s.cfg.MinVisibleRatio {
			continue
		}
		if e.Ratio > bestRatio {
			best, bestRatio = e.Page, e.Ratio
		}
	}
	if best == 0 || best == s.currentPage {
		cur := s.currentPage
		s.mu.Unlock()
		return cur, false
	}
	s.currentPage = best
	s.pruneFailedLocked()
	s.mu.Unlock()

	s.changed()
	return best, true
}

// CurrentPage returns the page judged most visible.
func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage
}

// Scroll records a scroll event at offset. It marks the session as
// fast-scrolling until Config.FastScrollIdle passes without another event,
// and schedules at most one position save per frame.
func (s *Session) Scroll(offset float64) {
	s.mu.Lock()
	if s.state != StateReady {
		s.scrollOffset = offset
		s.mu.Unlock()
		return
	}
	s.scrollOffset = offset
	wasFast := s.fastScrolling
	s.fastScrolling = true

	gen := s.gen
	s.idleTimer = stopTimer(s.idleTimer)
	s.idleSeq++
	seq := s.idleSeq
	s.idleTimer = s.clock.AfterFunc(s.cfg.FastScrollIdle, func() {
		s.endFastScroll(gen, seq)
	})

	if s.persistEnabledLocked() && !s.framePending {
		s.framePending = true
		s.frameTimer = s.clock.AfterFunc(s.cfg.FrameInterval, func() {
			s.flushPosition(gen)
		})
	}
	s.mu.Unlock()

	if !wasFast {
		s.changed()
	}
}

// FastScrolling reports whether scroll events are arriving faster than the
// idle gap.
func (s *Session) FastScrolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fastScrolling
}

func (s *Session) endFastScroll(gen Generation, seq uint64) {
	s.mu.Lock()
	if gen != s.gen || seq != s.idleSeq || !s.fastScrolling {
		s.mu.Unlock()
		return
	}
	s.idleTimer = nil
	s.fastScrolling = false
	s.mu.Unlock()

	s.changed()
}

func (s *Session) persistEnabledLocked() bool {
	return s.positions != nil && s.opts.EnableLastPosition && !s.opts.ReadOnly
}

// flushPosition hands the current position to the store. The frame guard
// stays set until the save returns so only one save is ever pending.
func (s *Session) flushPosition(gen Generation) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.frameTimer = nil
	if !s.persistEnabledLocked() || s.state != StateReady {
		s.framePending = false
		s.mu.Unlock()
		return
	}
	ref := s.ref
	pos := Position{Page: s.currentPage, ScrollOffset: s.scrollOffset}
	ctx := s.ctx
	store := s.positions
	s.mu.Unlock()

	if err := store.SaveLastPosition(ctx, ref, pos); err != nil {
		s.logger.Debug("save last position failed", "ref", ref, "page", pos.Page, "error", err)
	}

	s.mu.Lock()
	if gen == s.gen {
		s.framePending = false
		// Scrolls that landed during the save found the guard set.
		moved := s.currentPage != pos.Page || s.scrollOffset != pos.ScrollOffset
		if moved && s.persistEnabledLocked() && s.state == StateReady {
			s.framePending = true
			s.frameTimer = s.clock.AfterFunc(s.cfg.FrameInterval, func() {
				s.flushPosition(gen)
			})
		}
	}
	s.mu.Unlock()
}
