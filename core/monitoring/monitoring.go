// Package monitoring forwards errors and panics from background loops to an
// error tracker. The default monitor drops everything.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopMonitor discards reports.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func monitor() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	monitor().CaptureException(err, tags)
}

// Capture records err tagged with the component and operation that failed.
func Capture(component, op string, err error) {
	CaptureException(err, map[string]string{"component": component, "op": op})
}

// Recover must be deferred directly. It turns a panic into a captured
// exception tagged with component, so the goroutine ends without crashing
// the process.
func Recover(component string) {
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("panic: %v", r)
		}
		CaptureException(err, map[string]string{"component": component, "panic": "true"})
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	monitor().Flush(d)
}
