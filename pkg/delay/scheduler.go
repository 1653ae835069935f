// Package delay manages named, cancellable, resettable deferred query
// dispatches.
package delay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/mirror-remote/pkg/query"
)

const logPrefix = "delay:scheduler"

// DefaultTimeout is applied when a delayed query carries no timeout.
const DefaultTimeout = 10 * time.Second

type entry struct {
	timer   *time.Timer
	inner   *query.Query
	armedAt time.Time
	timeout time.Duration
}

// Scheduler owns the live timer table. Entries with the same id replace each
// other, giving debounce semantics; an abort cancels without rearming.
type Scheduler struct {
	mu       sync.Mutex
	timers   map[string]*entry
	dispatch func(q *query.Query)
	closed   bool
}

// New creates a Scheduler that fires entries through dispatch.
func New(dispatch func(q *query.Query)) *Scheduler {
	return &Scheduler{
		timers:   make(map[string]*entry),
		dispatch: dispatch,
	}
}

// Schedule arms, rearms, or aborts the timer named by q.Did. It returns the
// id that was used (generated when the client supplied none) and whether the
// call was an abort. Scheduling never fails; aborting an unknown id is a
// no-op.
func (s *Scheduler) Schedule(q *query.Query) (id string, aborted bool) {
	id = q.Did
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[id]; ok {
		existing.timer.Stop()
		delete(s.timers, id)
	}

	if q.Abort {
		slog.Debug(fmt.Sprintf("%s - aborted delayed query %s", logPrefix, id))
		return id, true
	}
	if s.closed {
		return id, false
	}

	timeout := DefaultTimeout
	if q.Timeout > 0 {
		timeout = time.Duration(q.Timeout * float64(time.Second))
	}

	e := &entry{
		inner:   q.Query,
		armedAt: time.Now(),
		timeout: timeout,
	}
	e.timer = time.AfterFunc(timeout, func() { s.fire(id, e) })
	s.timers[id] = e

	slog.Debug(fmt.Sprintf("%s - armed delayed query %s for %s", logPrefix, id, timeout))
	return id, false
}

// fire runs when a timer elapses. The entry must still be the live one for
// its id; a replaced or aborted entry is dropped here without dispatching.
func (s *Scheduler) fire(id string, e *entry) {
	s.mu.Lock()
	current, ok := s.timers[id]
	if !ok || current != e || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.mu.Unlock()

	if e.inner == nil {
		slog.Warn(fmt.Sprintf("%s - delayed query %s fired with no inner query", logPrefix, id))
		return
	}
	slog.Debug(fmt.Sprintf("%s - firing delayed query %s", logPrefix, id))
	s.dispatch(e.inner)
}

// Pending describes one armed timer for introspection.
type Pending struct {
	ID               string  `json:"id"`
	Action           string  `json:"action,omitempty"`
	Data             string  `json:"data,omitempty"`
	RemainingSeconds float64 `json:"remainingSeconds"`
}

// PendingEntries returns a snapshot of the armed timers.
func (s *Scheduler) PendingEntries() []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Pending, 0, len(s.timers))
	now := time.Now()
	for id, e := range s.timers {
		remaining := e.timeout - now.Sub(e.armedAt)
		if remaining < 0 {
			remaining = 0
		}
		p := Pending{ID: id, RemainingSeconds: remaining.Seconds()}
		if e.inner != nil {
			p.Action = e.inner.Action
			p.Data = e.inner.Data
		}
		out = append(out, p)
	}
	return out
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown cancels every armed timer. No deferred query fires afterwards.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, id)
	}
	slog.Info(fmt.Sprintf("%s - cancelled all pending delayed queries", logPrefix))
}
