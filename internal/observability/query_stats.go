// Package observability exposes a test hook for select()'s query planner,
// adapted from the teacher's internal/observability/query_stats.go
// (predicate-frequency tracking for automated index creation) into a
// per-entity record of how the last N select() calls were resolved: via an
// index bucket or a full scan, and how large the candidate set was before
// filtering. spec.md §8 requires this be "observable via a test hook" so a
// property test can assert that an indexed equality query actually took
// the index path rather than merely returning the right answer by luck.
package observability

import "sync"

// SelectStats is one select() call's planner outcome.
type SelectStats struct {
	UsedIndex    bool
	IndexField   string
	CandidateLen int
	ResultLen    int
}

// QueryStats accumulates SelectStats for one entity. It is safe for
// concurrent use; the entity engine records under whatever gate admission
// it already holds, but tests may poll Recent from another goroutine.
type QueryStats struct {
	mu      sync.Mutex
	history []SelectStats
	cap     int
}

// NewQueryStats creates a tracker retaining the most recent capacity calls.
func NewQueryStats(capacity int) *QueryStats {
	if capacity <= 0 {
		capacity = 100
	}
	return &QueryStats{cap: capacity}
}

// Record appends one select() outcome, evicting the oldest entry if full.
func (q *QueryStats) Record(s SelectStats) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = append(q.history, s)
	if len(q.history) > q.cap {
		q.history = q.history[len(q.history)-q.cap:]
	}
}

// Last returns the most recent recorded outcome and true, or a zero value
// and false if nothing has been recorded yet.
func (q *QueryStats) Last() (SelectStats, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.history) == 0 {
		return SelectStats{}, false
	}
	return q.history[len(q.history)-1], true
}

// Recent returns a copy of the last n recorded outcomes, oldest first.
func (q *QueryStats) Recent(n int) []SelectStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.history) {
		n = len(q.history)
	}
	out := make([]SelectStats, n)
	copy(out, q.history[len(q.history)-n:])
	return out
}
