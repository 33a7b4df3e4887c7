// Package memory implements storage.Backend in process memory. State is lost
// on restart; it backs tests and single-node deployments without a database.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/pkg/core"
)

// LedgerEntry is one applied economy adjustment.
type LedgerEntry struct {
	Time       time.Time
	UserID     string
	Adjustment core.Adjustment
}

// Backend stores records in maps guarded by a single mutex
type Backend struct {
	vessels     map[string]core.Vessel
	profiles    map[string]core.EconomyProfile
	assignments map[string]core.MissionAssignment
	ledger      []LedgerEntry

	now func() time.Time
	mu  sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		vessels:     make(map[string]core.Vessel),
		profiles:    make(map[string]core.EconomyProfile),
		assignments: make(map[string]core.MissionAssignment),
		now:         time.Now,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// LoadVessels returns copies of the stored vessels ordered by id.
func (b *Backend) LoadVessels(_ context.Context, spaceID string) ([]core.Vessel, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Vessel, 0, len(b.vessels))
	for _, v := range b.vessels {
		if spaceID != "" && v.SpaceID != spaceID {
			continue
		}
		out = append(out, *v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveVessels upserts vessels
func (b *Backend) SaveVessels(_ context.Context, vessels []core.Vessel) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range vessels {
		b.vessels[vessels[i].ID] = *vessels[i].Clone()
	}
	return nil
}

// DeleteVessel removes a vessel
func (b *Backend) DeleteVessel(_ context.Context, vesselID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.vessels[vesselID]; !ok {
		return fmt.Errorf("vessel %s: %w", vesselID, storage.ErrNotFound)
	}
	delete(b.vessels, vesselID)
	return nil
}

// Profile returns a user's profile, or a fresh one if none is stored
func (b *Backend) Profile(_ context.Context, userID string) (core.EconomyProfile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if p, ok := b.profiles[userID]; ok {
		return p, nil
	}
	return core.NewEconomyProfile(userID), nil
}

// AdjustProfile applies adj under the backend lock
func (b *Backend) AdjustProfile(_ context.Context, userID string, adj core.Adjustment, fn storage.ProfileFunc) (core.EconomyProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.adjustLocked(userID, adj, fn)
}

func (b *Backend) adjustLocked(userID string, adj core.Adjustment, fn storage.ProfileFunc) (core.EconomyProfile, error) {
	p, ok := b.profiles[userID]
	if !ok {
		p = core.NewEconomyProfile(userID)
	}

	p.Credits += adj.Credits
	p.Experience += adj.Experience
	p.Rank = core.RankFor(p.Experience)
	if fn != nil {
		if err := fn(&p); err != nil {
			return p, err
		}
	}

	b.profiles[userID] = p
	if adj.Credits != 0 || adj.Experience != 0 {
		b.ledger = append(b.ledger, LedgerEntry{Time: b.now(), UserID: userID, Adjustment: adj})
	}
	return p, nil
}

// Ledger returns a copy of the applied adjustments
func (b *Backend) Ledger() []LedgerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.ledger)
}

// CreateAssignment stores a new assignment
func (b *Backend) CreateAssignment(_ context.Context, a core.MissionAssignment) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.assignments[a.ID]; ok {
		return fmt.Errorf("assignment %s: %w", a.ID, storage.ErrConflict)
	}
	b.assignments[a.ID] = a
	return nil
}

// Assignment returns one assignment
func (b *Backend) Assignment(_ context.Context, id string) (core.MissionAssignment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.assignments[id]
	if !ok {
		return core.MissionAssignment{}, fmt.Errorf("assignment %s: %w", id, storage.ErrNotFound)
	}
	return a, nil
}

// ActiveAssignments returns the assigned and in-progress assignments of a space
func (b *Backend) ActiveAssignments(_ context.Context, spaceID string) ([]core.MissionAssignment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.MissionAssignment, 0)
	for _, a := range b.assignments {
		if !a.Status.Active() || (spaceID != "" && a.SpaceID != spaceID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// AdvanceAssignment writes next only while the stored status equals from
func (b *Backend) AdvanceAssignment(_ context.Context, id string, from core.AssignmentStatus, next core.MissionAssignment) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.assignments[id]
	if !ok {
		return false, fmt.Errorf("assignment %s: %w", id, storage.ErrNotFound)
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = next.Status
	a.Stage = next.Stage
	a.UpdatedAt = next.UpdatedAt
	b.assignments[id] = a
	return true, nil
}

// CompleteAssignment completes an in-progress assignment and pays reward atomically
func (b *Backend) CompleteAssignment(_ context.Context, id string, reward core.Adjustment, fn storage.ProfileFunc) (core.MissionAssignment, core.EconomyProfile, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.assignments[id]
	if !ok {
		return core.MissionAssignment{}, core.EconomyProfile{}, false, fmt.Errorf("assignment %s: %w", id, storage.ErrNotFound)
	}
	if a.Status != core.AssignmentInProgress {
		return a, core.EconomyProfile{}, false, nil
	}

	p, err := b.adjustLocked(a.UserID, reward, fn)
	if err != nil {
		return core.MissionAssignment{}, core.EconomyProfile{}, false, err
	}
	a.Status = core.AssignmentCompleted
	a.UpdatedAt = b.now()
	b.assignments[id] = a
	return a, p, true, nil
}
