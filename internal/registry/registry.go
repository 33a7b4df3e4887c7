// Package registry holds the authoritative vessel records of every space.
//
// Lock order: Space.mu (read for per-vessel work, write for space-wide
// teardown), then a vessel's own mutex, then the bookkeeping mutex. Work on
// different vessels runs in parallel under the shared read lock.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/OCAP2/helmsync/internal/stations"
	"github.com/OCAP2/helmsync/pkg/core"
)

var (
	ErrVesselNotFound = errors.New("vessel not found")
	ErrVesselExists   = errors.New("vessel already exists")
)

type entry struct {
	mu sync.Mutex
	v  *core.Vessel
}

// Space is one shared world and the vessels in it.
type Space struct {
	ID string

	mu      sync.RWMutex
	vessels map[string]*entry

	bookMu sync.Mutex
	crew   map[string][]string // user -> vessel ids, sorted
	ai     map[string]struct{}
	moored map[string]string // vessel -> port id
}

func newSpace(id string) *Space {
	return &Space{
		ID:      id,
		vessels: make(map[string]*entry),
		crew:    make(map[string][]string),
		ai:      make(map[string]struct{}),
		moored:  make(map[string]string),
	}
}

// Add inserts a copy of v.
func (s *Space) Add(v *core.Vessel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vessels[v.ID]; ok {
		return fmt.Errorf("%s: %w", v.ID, ErrVesselExists)
	}
	c := v.Clone()
	c.SpaceID = s.ID
	s.vessels[v.ID] = &entry{v: c}

	s.bookMu.Lock()
	s.reindexLocked(c.ID, nil, c.CrewIDs)
	s.rosterLocked(c)
	s.bookMu.Unlock()
	return nil
}

// Remove deletes a vessel and its bookkeeping and returns the last record.
func (s *Space) Remove(vesselID string) (*core.Vessel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.vessels[vesselID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", vesselID, ErrVesselNotFound)
	}
	delete(s.vessels, vesselID)

	s.bookMu.Lock()
	s.reindexLocked(vesselID, e.v.CrewIDs, nil)
	delete(s.ai, vesselID)
	delete(s.moored, vesselID)
	s.bookMu.Unlock()
	return e.v.Clone(), nil
}

// Get returns a copy of a vessel.
func (s *Space) Get(vesselID string) (*core.Vessel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.vessels[vesselID]
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.v.Clone(), true
}

// Update runs fn on a copy of the vessel under the vessel's lock and commits
// the copy only if fn succeeds, so a rejected update leaves no trace.
// It returns a copy of the committed record.
func (s *Space) Update(vesselID string, fn func(v *core.Vessel) error) (*core.Vessel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.vessels[vesselID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", vesselID, ErrVesselNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.v.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.ID = vesselID
	work.SpaceID = s.ID

	prev := e.v
	e.v = work

	s.bookMu.Lock()
	if !slices.Equal(prev.CrewIDs, work.CrewIDs) {
		s.reindexLocked(vesselID, prev.CrewIDs, work.CrewIDs)
	}
	s.rosterLocked(work)
	s.bookMu.Unlock()

	return work.Clone(), nil
}

// Len returns the number of vessels.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vessels)
}

// Snapshot returns copies of every vessel keyed by id.
func (s *Space) Snapshot() map[string]*core.Vessel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*core.Vessel, len(s.vessels))
	for id, e := range s.vessels {
		e.mu.Lock()
		out[id] = e.v.Clone()
		e.mu.Unlock()
	}
	return out
}

// Vessels returns copies of every vessel ordered by id.
func (s *Space) Vessels() []core.Vessel {
	snap := s.Snapshot()
	out := make([]core.Vessel, 0, len(snap))
	for _, v := range snap {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Positions returns the live position of every vessel.
func (s *Space) Positions() map[string]core.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]core.Position, len(s.vessels))
	for id, e := range s.vessels {
		e.mu.Lock()
		out[id] = e.v.Position
		e.mu.Unlock()
	}
	return out
}

// VesselFor resolves a user to the vessel they crew. A user on several
// crews resolves to the lowest vessel id.
func (s *Space) VesselFor(userID string) (string, bool) {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	ids := s.crew[userID]
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// CrewOf returns every vessel userID crews.
func (s *Space) CrewOf(userID string) []string {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()
	return slices.Clone(s.crew[userID])
}

// SetMoored records that vesselID lies in portID; an empty portID clears it.
func (s *Space) SetMoored(vesselID, portID string) {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	if portID == "" {
		delete(s.moored, vesselID)
		return
	}
	s.moored[vesselID] = portID
}

// Moored returns the port vesselID is moored in.
func (s *Space) Moored(vesselID string) (string, bool) {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	port, ok := s.moored[vesselID]
	return port, ok
}

// AIRoster returns the ids of vessels currently driven by AI, sorted.
func (s *Space) AIRoster() []string {
	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	out := make([]string, 0, len(s.ai))
	for id := range s.ai {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Release describes what Teardown changed on one vessel.
type Release struct {
	Vessel   *core.Vessel
	Stations []core.Station
	ToAI     bool
}

// Teardown frees every station userID holds in the space. A player vessel
// left with no station holder returns to AI and drops its moored record.
// The whole space is locked for the duration.
func (s *Space) Teardown(userID string) []Release {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	ids := make([]string, 0, len(s.vessels))
	for id := range s.vessels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Release
	for _, id := range ids {
		e := s.vessels[id]
		work := e.v.Clone()
		released := stations.ReleaseAll(work, userID)
		if len(released) == 0 {
			continue
		}

		rel := Release{Stations: released}
		if stations.Unheld(work) && work.Mode == core.ModePlayer {
			work.Mode = core.ModeAI
			delete(s.moored, id)
			rel.ToAI = true
		}
		e.v = work
		s.rosterLocked(work)
		rel.Vessel = work.Clone()
		out = append(out, rel)
	}
	return out
}

func (s *Space) reindexLocked(vesselID string, before, after []string) {
	for _, uid := range before {
		if slices.Contains(after, uid) {
			continue
		}
		s.crew[uid] = slices.DeleteFunc(s.crew[uid], func(id string) bool { return id == vesselID })
		if len(s.crew[uid]) == 0 {
			delete(s.crew, uid)
		}
	}
	for _, uid := range after {
		ids := s.crew[uid]
		if slices.Contains(ids, vesselID) {
			continue
		}
		ids = append(ids, vesselID)
		slices.Sort(ids)
		s.crew[uid] = ids
	}
}

func (s *Space) rosterLocked(v *core.Vessel) {
	if v.Mode == core.ModeAI {
		s.ai[v.ID] = struct{}{}
	} else {
		delete(s.ai, v.ID)
	}
}

// Registry maps space ids to spaces.
type Registry struct {
	mu     sync.RWMutex
	spaces map[string]*Space
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{spaces: make(map[string]*Space)}
}

// Space returns the space with id, creating it on first use.
func (r *Registry) Space(id string) *Space {
	r.mu.RLock()
	s, ok := r.spaces[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.spaces[id]; ok {
		return s
	}
	s = newSpace(id)
	r.spaces[id] = s
	return s
}

// Lookup returns an existing space.
func (r *Registry) Lookup(id string) (*Space, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spaces[id]
	return s, ok
}

// Spaces returns every space ordered by id.
func (r *Registry) Spaces() []*Space {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Space, 0, len(r.spaces))
	for _, s := range r.spaces {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load adds persisted vessels to their spaces, skipping ids already present.
func (r *Registry) Load(vessels []core.Vessel) int {
	n := 0
	for i := range vessels {
		v := &vessels[i]
		if err := r.Space(v.SpaceID).Add(v); err == nil {
			n++
		}
	}
	return n
}
