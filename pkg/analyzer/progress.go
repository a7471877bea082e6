package analyzer

import "sync"

// ProgressFunc is called to report analysis progress.
// current is the number of items processed, total is the total count,
// and path is the current item being processed.
type ProgressFunc func(current, total int, path string)

// Tracker counts completed items and forwards each completion to a callback.
// Ticks are serialized, so the callback sees current strictly increasing
// even when Tick is called from many goroutines.
type Tracker struct {
	mu       sync.Mutex
	total    int
	current  int
	callback ProgressFunc
}

// NewTracker creates a new progress tracker with the given callback.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// SetTotal sets the total count.
func (t *Tracker) SetTotal(n int) {
	t.mu.Lock()
	t.total = n
	t.mu.Unlock()
}

// Tick marks one item as completed.
func (t *Tracker) Tick(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current++
	if t.callback != nil {
		t.callback(t.current, t.total, path)
	}
}

// Current returns the current progress count.
func (t *Tracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Total returns the total count.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
