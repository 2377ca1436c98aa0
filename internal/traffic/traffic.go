// Package traffic keeps sliding windows of settled lookup outcomes.
// The web shell's health endpoint reads the failure rate from here.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how long outcomes are kept regardless of the window asked for.
const retention = 5 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a lookup that reached the upstream and got an answer
// the user can act on (a snapshot or "City not found").
func RecordSuccess() {
	defaultTracker.RecordSuccess()
}

// RecordError records a lookup that ended in an upstream failure or a fault.
func RecordError() {
	defaultTracker.RecordError()
}

// RecordThrottled records a lookup rejected by the upstream with 429.
func RecordThrottled() {
	defaultTracker.RecordThrottled()
}

// LookupCount returns the number of outcomes (success + error + throttled) within the window.
func LookupCount(window time.Duration) int {
	return defaultTracker.LookupCount(window)
}

// ThrottledCount returns the number of upstream 429s within the window.
func ThrottledCount(window time.Duration) int {
	return defaultTracker.ThrottledCount(window)
}

// ErrorRate returns (errorCount, totalCount) within the window. totalCount = successes + errors.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu             sync.Mutex
	now            func() time.Time
	successTimes   []time.Time
	errorTimes     []time.Time
	throttledTimes []time.Time
}

// RecordSuccess records a usable lookup outcome in the tracker.
func (t *Tracker) RecordSuccess() {
	t.recordOutcome(&t.successTimes)
}

// RecordError records a failed lookup in the tracker.
func (t *Tracker) RecordError() {
	t.recordOutcome(&t.errorTimes)
}

// RecordThrottled records an upstream 429 in the tracker.
func (t *Tracker) RecordThrottled() {
	t.recordOutcome(&t.throttledTimes)
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *Tracker) recordOutcome(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// LookupCount returns the total number of outcomes within the window.
func (t *Tracker) LookupCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	return countInWindow(t.successTimes, cutoff) +
		countInWindow(t.errorTimes, cutoff) +
		countInWindow(t.throttledTimes, cutoff)
}

// ThrottledCount returns the number of upstream 429s within the window.
func (t *Tracker) ThrottledCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.throttledTimes, t.clock().Add(-window))
}

// ErrorRate returns (errorCount, totalCount) within the window.
// Throttled lookups are excluded; they say nothing about upstream health.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	errCount := countInWindow(t.errorTimes, cutoff)
	successCount := countInWindow(t.successTimes, cutoff)
	return errCount, errCount + successCount
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.throttledTimes = nil
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.throttledTimes)
}

// Degraded reports whether the error percentage over window reaches thresholdPct.
// An empty window is never degraded.
func Degraded(window time.Duration, thresholdPct int) bool {
	errs, total := ErrorRate(window)
	if total == 0 || thresholdPct <= 0 {
		return false
	}
	return errs*100 >= thresholdPct*total
}
