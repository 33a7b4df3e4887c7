package clientloop

import (
	"context"
	"sync"
	"time"
)

// Scheduler is the host timing facility. Frame callbacks and posted tasks run on
// a single goroutine, so code scheduled on it never races with itself.
type Scheduler interface {
	// Schedule runs fn once per frame until cancel is called.
	Schedule(fn func(now time.Time)) (cancel func())
	// Post runs fn on the scheduler goroutine before the next frame.
	Post(fn func())
}

// TickerScheduler drives frames from a time.Ticker.
type TickerScheduler struct {
	interval time.Duration
	tasks    chan func()

	mu     sync.Mutex
	frames map[int]func(time.Time)
	nextID int
}

// NewTickerScheduler returns a scheduler firing every interval. Run must be
// called to start it.
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &TickerScheduler{
		interval: interval,
		tasks:    make(chan func(), 256),
		frames:   make(map[int]func(time.Time)),
	}
}

func (s *TickerScheduler) Schedule(fn func(now time.Time)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.frames[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.frames, id)
		s.mu.Unlock()
	}
}

func (s *TickerScheduler) Post(fn func()) {
	s.tasks <- fn
}

// Run blocks until ctx is done.
func (s *TickerScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.tasks:
			fn()
		case now := <-ticker.C:
			s.mu.Lock()
			frames := make([]func(time.Time), 0, len(s.frames))
			for _, fn := range s.frames {
				frames = append(frames, fn)
			}
			s.mu.Unlock()
			for _, fn := range frames {
				fn(now)
			}
		}
	}
}
