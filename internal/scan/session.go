package scan

import (
	"context"
	"log/slog"
	"sync"
)

// Session tracks a single scan and the preview of its image. Starting a new
// scan or resetting releases the previous preview, and an outcome arriving
// for a scan that has since been superseded is dropped.
type Session struct {
	mu         sync.Mutex
	scanner    Scanner
	previews   Previews
	log        *slog.Logger
	generation uint64
	preview    ImageRef
	current    Outcome
	done       bool
}

// NewSession creates a Session
func NewSession(scanner Scanner, previews Previews) *Session {
	return &Session{
		scanner:  scanner,
		previews: previews,
		log:      slog.Default(),
	}
}

// Start scans img. The returned bool is false when the session was reset or
// restarted before the scan finished, in which case the outcome was not recorded.
func (s *Session) Start(ctx context.Context, img Image, endpoint string) (Outcome, bool) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.releaseLocked()
	ref, err := s.previews.Acquire(img.Name, img.Data)
	if err != nil {
		s.log.Warn("Failed to create preview", "filename", img.Name, "error", err)
	}
	s.preview = ref
	s.current = Outcome{}
	s.done = false
	s.mu.Unlock()

	outcome := s.scanner.Scan(ctx, img, endpoint)
	outcome.Image = ref

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.log.Info("Dropping stale scan outcome", "filename", img.Name)
		return outcome, false
	}
	s.current = outcome
	s.done = true
	return outcome, true
}

// Current returns the latest recorded outcome, if any
func (s *Session) Current() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.done
}

// Reset clears the outcome and releases the preview. An in-flight scan keeps
// running but its outcome will be ignored.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.releaseLocked()
	s.current = Outcome{}
	s.done = false
}

func (s *Session) releaseLocked() {
	if s.preview == "" {
		return
	}
	if err := s.previews.Release(s.preview); err != nil {
		s.log.Warn("Failed to release preview", "ref", s.preview, "error", err)
	}
	s.preview = ""
}
