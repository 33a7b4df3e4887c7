// Package mission advances mission assignments as vessels reach their pickup
// and delivery geofences.
package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/helmsync/internal/economy"
	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/google/uuid"
)

var (
	ErrUnknownMission  = errors.New("unknown mission")
	ErrRankTooLow      = errors.New("rank too low for mission")
	ErrAlreadyAssigned = errors.New("user already has an active mission")
)

// Store is the part of storage.Backend the tracker needs.
type Store interface {
	CreateAssignment(ctx context.Context, a core.MissionAssignment) error
	ActiveAssignments(ctx context.Context, spaceID string) ([]core.MissionAssignment, error)
	AdvanceAssignment(ctx context.Context, id string, from core.AssignmentStatus, next core.MissionAssignment) (bool, error)
	CompleteAssignment(ctx context.Context, id string, reward core.Adjustment, fn storage.ProfileFunc) (core.MissionAssignment, core.EconomyProfile, bool, error)
}

// Catalog resolves mission ids.
type Catalog interface {
	Mission(id string) (core.Mission, bool)
}

// Space yields the live vessel positions of one space.
type Space interface {
	Positions() map[string]core.Position
}

// Spaces lists the spaces to sweep keyed by id.
type Spaces func() map[string]Space

// Notifier receives the outcome of transitions.
type Notifier interface {
	MissionUpdate(a core.MissionAssignment, m core.Mission)
	EconomyUpdate(spaceID string, p core.EconomyProfile, adj core.Adjustment)
}

// Config holds tracker settings.
type Config struct {
	PickupRadius   float64
	DeliveryRadius float64
	SweepInterval  time.Duration
}

// DefaultConfig returns the stock geofence radii.
func DefaultConfig() Config {
	return Config{
		PickupRadius:   220,
		DeliveryRadius: 260,
		SweepInterval:  time.Second,
	}
}

// Dependencies holds everything the tracker talks to.
type Dependencies struct {
	Store    Store
	Catalog  Catalog
	Spaces   Spaces
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Tracker runs the assignment state machine.
type Tracker struct {
	deps Dependencies
	cfg  Config

	// sweeps of one space never overlap
	mu sync.Mutex
}

// NewTracker creates a tracker.
func NewTracker(deps Dependencies, cfg Config) *Tracker {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Tracker{deps: deps, cfg: cfg}
}

// Assign creates an assignment of missionID for actor on vesselID.
func (t *Tracker) Assign(ctx context.Context, actor core.Actor, vesselID, missionID string) (core.MissionAssignment, core.Mission, error) {
	m, ok := t.deps.Catalog.Mission(missionID)
	if !ok {
		return core.MissionAssignment{}, core.Mission{}, fmt.Errorf("%s: %w", missionID, ErrUnknownMission)
	}
	if m.MinRank > 0 && actor.Rank < m.MinRank && !actor.IsAdmin() {
		return core.MissionAssignment{}, m, fmt.Errorf("%s needs rank %d: %w", missionID, m.MinRank, ErrRankTooLow)
	}

	active, err := t.deps.Store.ActiveAssignments(ctx, actor.SpaceID)
	if err != nil {
		return core.MissionAssignment{}, m, err
	}
	for _, a := range active {
		if a.UserID == actor.UserID {
			return core.MissionAssignment{}, m, fmt.Errorf("%s: %w", a.ID, ErrAlreadyAssigned)
		}
	}

	now := t.deps.Now()
	a := core.MissionAssignment{
		ID:         uuid.NewString(),
		MissionID:  m.ID,
		UserID:     actor.UserID,
		VesselID:   vesselID,
		SpaceID:    actor.SpaceID,
		Status:     core.AssignmentAssigned,
		Stage:      core.StagePickup,
		AssignedAt: now,
		UpdatedAt:  now,
	}
	if err := t.deps.Store.CreateAssignment(ctx, a); err != nil {
		return core.MissionAssignment{}, m, err
	}
	return a, m, nil
}

// Next returns the state a at pos should move to, and whether it moves.
func Next(a core.MissionAssignment, m core.Mission, pos core.Position, cfg Config) (core.MissionAssignment, bool) {
	switch a.Status {
	case core.AssignmentAssigned:
		if geo.Distance(pos.Lat, pos.Lon, m.OriginLat, m.OriginLon) <= cfg.PickupRadius {
			a.Status = core.AssignmentInProgress
			a.Stage = core.StageDelivery
			return a, true
		}
	case core.AssignmentInProgress:
		if geo.Distance(pos.Lat, pos.Lon, m.DestinationLat, m.DestinationLon) <= cfg.DeliveryRadius {
			a.Status = core.AssignmentCompleted
			return a, true
		}
	}
	return a, false
}

// Sweep checks every active assignment of spaceID against the live
// positions and returns the number of transitions made. Assignments whose
// vessel has no live position are skipped.
func (t *Tracker) Sweep(ctx context.Context, spaceID string, live Space) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	active, err := t.deps.Store.ActiveAssignments(ctx, spaceID)
	if err != nil {
		return 0, fmt.Errorf("sweep %s: %w", spaceID, err)
	}
	if len(active) == 0 {
		return 0, nil
	}
	positions := live.Positions()

	moved := 0
	for _, a := range active {
		pos, ok := positions[a.VesselID]
		if !ok {
			continue
		}
		pos = geo.Normalize(pos)
		m, ok := t.deps.Catalog.Mission(a.MissionID)
		if !ok {
			t.deps.Logger.Warn("Assignment references unknown mission", "assignment", a.ID, "mission", a.MissionID)
			continue
		}

		next, change := Next(a, m, pos, t.cfg)
		if !change {
			continue
		}
		next.UpdatedAt = t.deps.Now()

		if next.Status == core.AssignmentCompleted {
			ok, err := t.complete(ctx, next, m)
			if err != nil {
				t.deps.Logger.Error("Failed to complete assignment", "assignment", a.ID, "error", err)
				continue
			}
			if ok {
				moved++
			}
			continue
		}

		ok, err = t.deps.Store.AdvanceAssignment(ctx, a.ID, a.Status, next)
		if err != nil {
			t.deps.Logger.Error("Failed to advance assignment", "assignment", a.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		moved++
		t.deps.Logger.Info("Cargo picked up", "assignment", a.ID, "mission", m.ID, "vessel", a.VesselID)
		if t.deps.Notifier != nil {
			t.deps.Notifier.MissionUpdate(next, m)
		}
	}
	return moved, nil
}

func (t *Tracker) complete(ctx context.Context, a core.MissionAssignment, m core.Mission) (bool, error) {
	reward := economy.Reward(m)
	done, profile, ok, err := t.deps.Store.CompleteAssignment(ctx, a.ID, reward, nil)
	if err != nil || !ok {
		return false, err
	}
	t.deps.Logger.Info("Mission completed", "assignment", a.ID, "mission", m.ID, "user", done.UserID,
		"credits", reward.Credits, "experience", reward.Experience)
	if t.deps.Notifier != nil {
		t.deps.Notifier.MissionUpdate(done, m)
		t.deps.Notifier.EconomyUpdate(done.SpaceID, profile, reward)
	}
	return true, nil
}

// SweepAll sweeps every space once.
func (t *Tracker) SweepAll(ctx context.Context) int {
	total := 0
	if t.deps.Spaces == nil {
		return 0
	}
	for id, live := range t.deps.Spaces() {
		n, err := t.Sweep(ctx, id, live)
		if err != nil {
			t.deps.Logger.Error("Mission sweep failed", "space", id, "error", err)
			continue
		}
		total += n
	}
	return total
}

// Run sweeps on SweepInterval until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	interval := t.cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.SweepAll(ctx)
		}
	}
}
