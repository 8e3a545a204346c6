package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	applog "dietboard/internal/log"
	"dietboard/models"
)

// Debouncer coalesces rapid triggers into a single callback fired after the
// delay window. A new trigger cancels any pending, not-yet-fired callback and
// restarts the window.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer builds a Debouncer with the given delay window.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the delay, replacing any pending callback.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Searcher is the food search collaborator consumed by a SearchSession.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Food, error)
}

// SearchSession drives debounced, last-query-wins food searches for one
// client. Keystrokes funnel through Query; results reach the deliver callback
// only when the query that produced them is still the most recent one, so a
// slow in-flight search superseded by a newer keystroke is dropped.
type SearchSession struct {
	mu       sync.Mutex
	searcher Searcher
	debounce *Debouncer
	limit    int
	deliver  func(query string, foods []models.Food, err error)
	gen      uint64
}

// NewSearchSession wires a Searcher to a deliver callback.
func NewSearchSession(searcher Searcher, delay time.Duration, limit int, deliver func(string, []models.Food, error)) *SearchSession {
	return &SearchSession{
		searcher: searcher,
		debounce: NewDebouncer(delay),
		limit:    limit,
		deliver:  deliver,
	}
}

// Query records a keystroke. A blank query cancels any pending search and
// delivers an empty result immediately.
func (s *SearchSession) Query(ctx context.Context, query string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if strings.TrimSpace(query) == "" {
		s.debounce.Stop()
		s.deliverIfCurrent(gen, query, []models.Food{}, nil)
		return
	}

	s.debounce.Trigger(func() {
		if !s.isCurrent(gen) {
			return
		}
		foods, err := s.searcher.Search(ctx, query, s.limit)
		if err != nil {
			applog.Debug(ctx, "food search failed", "query", query, "error", err)
		}
		s.deliverIfCurrent(gen, query, foods, err)
	})
}

// Close cancels any pending search.
func (s *SearchSession) Close() {
	s.debounce.Stop()
}

func (s *SearchSession) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

func (s *SearchSession) deliverIfCurrent(gen uint64, query string, foods []models.Food, err error) {
	if !s.isCurrent(gen) {
		return
	}
	if s.deliver != nil {
		s.deliver(query, foods, err)
	}
}
