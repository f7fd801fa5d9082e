package room

import (
	"sync"
	"time"
)

// Scheduler arms a repeating callback and returns a stop function. The
// countdown timer and the registry sweep both go through this so tests can
// drive time by hand instead of sleeping.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
}

// TickerScheduler is the wall-clock implementation.
type TickerScheduler struct{}

func (TickerScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ManualScheduler fires only when told to. Fire invokes every armed
// callback once, in arming order.
type ManualScheduler struct {
	mu      sync.Mutex
	entries []*manualEntry
}

type manualEntry struct {
	fn      func()
	stopped bool
}

func (m *ManualScheduler) Every(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &manualEntry{fn: fn}
	m.entries = append(m.entries, e)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		e.stopped = true
	}
}

func (m *ManualScheduler) Fire() {
	m.mu.Lock()
	var fns []func()
	for _, e := range m.entries {
		if !e.stopped {
			fns = append(fns, e.fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Armed reports how many callbacks are live.
func (m *ManualScheduler) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.stopped {
			n++
		}
	}
	return n
}
