// Package lifecycle holds the process-wide draining flag read by /health.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// shutdownStarted is the UnixNano time draining began; 0 while serving.
var shutdownStarted atomic.Int64

// BeginShutdown marks the process as draining. Later calls keep the first timestamp.
func BeginShutdown() {
	shutdownStarted.CompareAndSwap(0, time.Now().UnixNano())
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shutdownStarted.Load() != 0
}

// ShutdownSince returns when draining began.
func ShutdownSince() (time.Time, bool) {
	ns := shutdownStarted.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Reset returns to the serving state. For tests only.
func Reset() {
	shutdownStarted.Store(0)
}
