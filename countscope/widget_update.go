package main

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
)

// updateInterval caps scope redraws at roughly 60 FPS.
const updateInterval = 16 * time.Millisecond

// UpdateWidgetOnMainThread schedules a widget update function to run on the main Fyne thread.
// This is required because Fyne widgets cannot be updated directly from goroutines.
func UpdateWidgetOnMainThread(callback func()) {
	if callback == nil {
		return
	}
	fyne.Do(callback)
}

// updateThrottle drops updates that arrive sooner than interval after the
// last accepted one.
type updateThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func newUpdateThrottle(interval time.Duration) *updateThrottle {
	return &updateThrottle{interval: interval, now: time.Now}
}

// Allow reports whether an update may go through now and, if so, records it.
func (t *updateThrottle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
