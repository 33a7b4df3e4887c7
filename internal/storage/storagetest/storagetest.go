// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRejected = errors.New("rejected")

// Run exercises newBackend against the storage.Backend contract. Each
// subtest gets a fresh, initialised backend.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Run("VesselUpsertAndLoad", func(t *testing.T) { testVesselUpsertAndLoad(t, newBackend(t)) })
	t.Run("DeleteVessel", func(t *testing.T) { testDeleteVessel(t, newBackend(t)) })
	t.Run("ProfileDefault", func(t *testing.T) { testProfileDefault(t, newBackend(t)) })
	t.Run("AdjustProfile", func(t *testing.T) { testAdjustProfile(t, newBackend(t)) })
	t.Run("AdjustProfileRejected", func(t *testing.T) { testAdjustProfileRejected(t, newBackend(t)) })
	t.Run("AdjustProfileConcurrent", func(t *testing.T) { testAdjustProfileConcurrent(t, newBackend(t)) })
	t.Run("AssignmentLifecycle", func(t *testing.T) { testAssignmentLifecycle(t, newBackend(t)) })
	t.Run("CreateAssignmentConflict", func(t *testing.T) { testCreateAssignmentConflict(t, newBackend(t)) })
}

func vessel(id, space string) core.Vessel {
	v := core.NewVessel(id, space, "owner-"+id)
	v.Position = geo.FromGeodetic(59.9, 10.7, 0)
	v.Controls.Throttle = 0.25
	v.LastUpdate = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return *v
}

func testVesselUpsertAndLoad(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.SaveVessels(ctx, []core.Vessel{vessel("a", "s1"), vessel("b", "s1"), vessel("c", "s2")}))

	all, err := b.LoadVessels(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	s1, err := b.LoadVessels(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s1, 2)
	assert.Equal(t, "a", s1[0].ID)
	assert.Equal(t, "b", s1[1].ID)
	assert.Equal(t, 0.25, s1[0].Controls.Throttle)
	assert.InDelta(t, 59.9, s1[0].Position.Lat, 1e-9)
	assert.Equal(t, []string{"owner-a"}, s1[0].CrewIDs)

	updated := vessel("a", "s1")
	updated.Controls.Throttle = -0.5
	updated.AddCrew("mate")
	updated.HelmUserID = "mate"
	updated.Hull.Mass = 4200
	require.NoError(t, b.SaveVessels(ctx, []core.Vessel{updated}))

	s1, err = b.LoadVessels(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s1, 2)
	assert.Equal(t, -0.5, s1[0].Controls.Throttle)
	assert.Equal(t, "mate", s1[0].HelmUserID)
	assert.Equal(t, []string{"mate", "owner-a"}, s1[0].CrewIDs)
	assert.Equal(t, 4200.0, s1[0].Hull.Mass)
}

func testDeleteVessel(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.SaveVessels(ctx, []core.Vessel{vessel("a", "s1")}))

	require.NoError(t, b.DeleteVessel(ctx, "a"))
	err := b.DeleteVessel(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	left, err := b.LoadVessels(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func testProfileDefault(t *testing.T, b storage.Backend) {
	p, err := b.Profile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, core.NewEconomyProfile("nobody"), p)
}

func testAdjustProfile(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	p, err := b.AdjustProfile(ctx, "u", core.Adjustment{Credits: 50, Experience: 900}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Credits)
	assert.Equal(t, 1, p.Rank)

	p, err = b.AdjustProfile(ctx, "u", core.Adjustment{Credits: -20, Experience: 200}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30), p.Credits)
	assert.Equal(t, int64(1100), p.Experience)
	assert.Equal(t, 2, p.Rank)

	stored, err := b.Profile(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, p, stored)
}

func testAdjustProfileRejected(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	_, err := b.AdjustProfile(ctx, "u", core.Adjustment{Credits: 10}, nil)
	require.NoError(t, err)

	_, err = b.AdjustProfile(ctx, "u", core.Adjustment{Credits: -100}, func(p *core.EconomyProfile) error {
		if p.Credits < 0 {
			return errRejected
		}
		return nil
	})
	assert.ErrorIs(t, err, errRejected)

	p, err := b.Profile(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Credits)
}

func testAdjustProfileConcurrent(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := b.AdjustProfile(ctx, "u", core.Adjustment{Credits: 1, Experience: 10}, nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	p, err := b.Profile(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), p.Credits)
	assert.Equal(t, int64(workers*perWorker*10), p.Experience)
}

func testAssignmentLifecycle(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := core.MissionAssignment{
		ID:         "a-1",
		MissionID:  "m-1",
		UserID:     "u",
		VesselID:   "v",
		SpaceID:    "s1",
		Status:     core.AssignmentAssigned,
		Stage:      core.StagePickup,
		AssignedAt: at,
		UpdatedAt:  at,
	}
	require.NoError(t, b.CreateAssignment(ctx, a))

	active, err := b.ActiveAssignments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, core.StagePickup, active[0].Stage)

	other, err := b.ActiveAssignments(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, other)

	// completing before pickup is a no-op
	_, _, ok, err := b.CompleteAssignment(ctx, "a-1", core.Adjustment{Credits: 100}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	next := a
	next.Status = core.AssignmentInProgress
	next.Stage = core.StageDelivery
	next.UpdatedAt = at.Add(time.Minute)
	ok, err = b.AdvanceAssignment(ctx, "a-1", core.AssignmentAssigned, next)
	require.NoError(t, err)
	assert.True(t, ok)

	// second advance from the same status loses the race
	ok, err = b.AdvanceAssignment(ctx, "a-1", core.AssignmentAssigned, next)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := b.Assignment(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, core.AssignmentInProgress, got.Status)
	assert.Equal(t, core.StageDelivery, got.Stage)

	reward := core.Adjustment{Credits: 250, Experience: 1200, Reason: "mission m-1"}
	done, p, ok, err := b.CompleteAssignment(ctx, "a-1", reward, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.AssignmentCompleted, done.Status)
	assert.Equal(t, int64(250), p.Credits)
	assert.Equal(t, 2, p.Rank)

	// repeated completion pays nothing
	_, _, ok, err = b.CompleteAssignment(ctx, "a-1", reward, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err = b.Profile(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(250), p.Credits)

	active, err = b.ActiveAssignments(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = b.Assignment(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testCreateAssignmentConflict(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	a := core.MissionAssignment{ID: "dup", Status: core.AssignmentAssigned, Stage: core.StagePickup}
	require.NoError(t, b.CreateAssignment(ctx, a))
	assert.ErrorIs(t, b.CreateAssignment(ctx, a), storage.ErrConflict)
}
