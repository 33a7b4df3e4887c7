// Package uistore holds the client-visible vessel snapshot. Producers submit
// Update messages; the store merges them into a new immutable Snapshot.
package uistore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/helmsync/internal/channel"
	"github.com/OCAP2/helmsync/pkg/core"
)

// Snapshot is the vessel state visible to the local UI. Never mutate a
// snapshot obtained from the store; submit an Update instead.
type Snapshot struct {
	VesselID        string
	Position        core.Position
	Orientation     core.Orientation
	Velocity        core.Velocity
	AngularVelocity core.AngularVelocity
	Controls        core.Controls
	RPM             float64
	Fuel            float64
	FuelAlarm       bool
	Mode            core.UserMode
	Version         uint64
	UpdatedAt       time.Time
}

// AtRest reports whether position, velocity and throttle are all zero-equivalent.
func (s Snapshot) AtRest() bool {
	const eps = 1e-9
	zero := func(vs ...float64) bool {
		for _, v := range vs {
			if v > eps || v < -eps {
				return false
			}
		}
		return true
	}
	return zero(s.Position.X, s.Position.Y, s.Position.Lat, s.Position.Lon) &&
		zero(s.Velocity.Surge, s.Velocity.Sway, s.Velocity.Heave) &&
		zero(s.Controls.Throttle)
}

// Update is a partial change. Nil fields keep their current value.
type Update struct {
	VesselID        *string
	Position        *core.Position
	Orientation     *core.Orientation
	Velocity        *core.Velocity
	AngularVelocity *core.AngularVelocity
	Controls        *core.Controls
	RPM             *float64
	Fuel            *float64
	FuelAlarm       *bool
	Mode            *core.UserMode
	At              time.Time
}

// Merge applies u to s and returns the result. It has no side effects.
func Merge(s Snapshot, u Update) Snapshot {
	if u.VesselID != nil {
		s.VesselID = *u.VesselID
	}
	if u.Position != nil {
		s.Position = *u.Position
	}
	if u.Orientation != nil {
		s.Orientation = *u.Orientation
	}
	if u.Velocity != nil {
		s.Velocity = *u.Velocity
	}
	if u.AngularVelocity != nil {
		s.AngularVelocity = *u.AngularVelocity
	}
	if u.Controls != nil {
		s.Controls = *u.Controls
	}
	if u.RPM != nil {
		s.RPM = *u.RPM
	}
	if u.Fuel != nil {
		s.Fuel = *u.Fuel
	}
	if u.FuelAlarm != nil {
		s.FuelAlarm = *u.FuelAlarm
	}
	if u.Mode != nil {
		s.Mode = *u.Mode
	}
	if !u.At.IsZero() {
		s.UpdatedAt = u.At
	}
	s.Version++
	return s
}

// Store publishes snapshots to subscribers. Safe for concurrent use.
type Store struct {
	cur atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs map[int]channel.Channel[Snapshot]
	next int
}

// New returns a store holding initial.
func New(initial Snapshot) *Store {
	s := &Store{subs: make(map[int]channel.Channel[Snapshot])}
	s.cur.Store(&initial)
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	return *s.cur.Load()
}

// Apply merges u into the current snapshot and notifies subscribers.
// Concurrent producers never lose each other's fields.
func (s *Store) Apply(u Update) Snapshot {
	for {
		old := s.cur.Load()
		next := Merge(*old, u)
		if s.cur.CompareAndSwap(old, &next) {
			s.notify(next)
			return next
		}
	}
}

// Replace swaps in a whole snapshot, keeping the version monotonic.
func (s *Store) Replace(snap Snapshot) Snapshot {
	for {
		old := s.cur.Load()
		next := snap
		next.Version = old.Version + 1
		if s.cur.CompareAndSwap(old, &next) {
			s.notify(next)
			return next
		}
	}
}

// Subscribe returns a channel of snapshots and a cancel func. Slow subscribers
// miss snapshots rather than blocking producers. With a buffer of one or less
// the subscriber always reads the newest snapshot; a larger buffer keeps the
// oldest and drops what does not fit.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	var ch channel.Channel[Snapshot]
	if buffer <= 1 {
		ch = channel.NewLatest[Snapshot]()
	} else {
		ch = channel.NewBuffered[Snapshot](buffer)
	}

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch.Receive(), func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			ch.Close()
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		ch.TrySend(snap)
	}
}
