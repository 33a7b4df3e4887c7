package gormstorage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/helmsync/internal/database"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/model"
	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/internal/storage/storagetest"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

var fixedNow = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "gorm.db"))
	require.NoError(t, err)

	b := New(Dependencies{
		DB:         db,
		LogManager: logging.NewSlogManager(),
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return newTestBackend(t)
	})
}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{LogManager: logging.NewSlogManager()})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestAdjustProfile_WritesLedger(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	_, err := b.AdjustProfile(ctx, "alice", core.Adjustment{Credits: 40, Experience: 5, Reason: "tow"}, nil)
	require.NoError(t, err)
	_, err = b.AdjustProfile(ctx, "alice", core.Adjustment{Credits: -15, Reason: "fuel"}, nil)
	require.NoError(t, err)

	var ledger []model.EconomyLedger
	require.NoError(t, b.DB().Order("id").Find(&ledger, "user_id = ?", "alice").Error)
	require.Len(t, ledger, 2)
	assert.Equal(t, int64(40), ledger[0].Credits)
	assert.Equal(t, "tow", ledger[0].Reason)
	assert.Equal(t, int64(-15), ledger[1].Credits)
	assert.True(t, ledger[1].Time.Equal(fixedNow))

	var row model.EconomyProfile
	require.NoError(t, b.DB().First(&row, "user_id = ?", "alice").Error)
	assert.Equal(t, int64(25), row.Credits)
	assert.True(t, row.UpdatedAt.Equal(fixedNow))
}

func TestAdjustProfile_ZeroAdjustmentSkipsLedger(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	p, err := b.AdjustProfile(ctx, "bob", core.Adjustment{}, func(p *core.EconomyProfile) error {
		p.SafetyScore = 0.8
		return nil
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, p.SafetyScore, 1e-9)

	var count int64
	require.NoError(t, b.DB().Model(&model.EconomyLedger{}).Count(&count).Error)
	assert.Zero(t, count)

	got, err := b.Profile(ctx, "bob")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.SafetyScore, 1e-9)
}

func TestCompleteAssignment_RollsBackOnRejectedReward(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	a := core.MissionAssignment{
		ID:         "a-7",
		MissionID:  "m-2",
		UserID:     "carol",
		VesselID:   "v",
		SpaceID:    "north",
		Status:     core.AssignmentInProgress,
		Stage:      core.StageDelivery,
		AssignedAt: fixedNow,
		UpdatedAt:  fixedNow,
	}
	require.NoError(t, b.CreateAssignment(ctx, a))

	rejected := errors.New("blocked")
	_, _, ok, err := b.CompleteAssignment(ctx, "a-7", core.Adjustment{Credits: 90}, func(*core.EconomyProfile) error {
		return rejected
	})
	assert.ErrorIs(t, err, rejected)
	assert.False(t, ok)

	got, err := b.Assignment(ctx, "a-7")
	require.NoError(t, err)
	assert.Equal(t, core.AssignmentInProgress, got.Status)

	var row model.MissionAssignment
	require.NoError(t, b.DB().First(&row, "id = ?", "a-7").Error)
	assert.False(t, row.CompletedAt.Valid)

	_, _, ok, err = b.CompleteAssignment(ctx, "a-7", core.Adjustment{Credits: 90}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, b.DB().First(&row, "id = ?", "a-7").Error)
	assert.True(t, row.CompletedAt.Valid)
	assert.True(t, row.CompletedAt.Time.Equal(fixedNow))
}

func TestCompleteAssignment_Missing(t *testing.T) {
	b := newTestBackend(t)
	_, _, _, err := b.CompleteAssignment(context.Background(), "nope", core.Adjustment{}, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoadVessels_AllSpaces(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveVessels(ctx, []core.Vessel{
		*core.NewVessel("b", "south", "u1"),
		*core.NewVessel("a", "north", "u2"),
	}))
	require.NoError(t, b.SaveVessels(ctx, nil))

	all, err := b.LoadVessels(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
}

func TestSaveVessels_StationHoldersStayCrewAcrossReload(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	v := core.NewVessel("tug", "north", "owner")
	require.NoError(t, b.SaveVessels(ctx, []core.Vessel{*v}))

	for _, user := range []string{"mate", "stoker"} {
		v.AddCrew(user)
	}
	v.HelmUserID = "mate"
	v.EngineUserID = "stoker"
	v.Hull.Draft = 3.5
	require.NoError(t, b.SaveVessels(ctx, []core.Vessel{*v}))

	got, err := b.LoadVessels(ctx, "north")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].HasCrew(got[0].HelmUserID), "helm holder %q not in crew %v", got[0].HelmUserID, got[0].CrewIDs)
	assert.True(t, got[0].HasCrew(got[0].EngineUserID), "engine holder %q not in crew %v", got[0].EngineUserID, got[0].CrewIDs)
	assert.Equal(t, 3.5, got[0].Hull.Draft)

	v.RemoveCrew("stoker")
	v.EngineUserID = ""
	require.NoError(t, b.SaveVessels(ctx, []core.Vessel{*v}))
	got, err = b.LoadVessels(ctx, "north")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner", "mate"}, got[0].CrewIDs)
}

func TestAdjustProfile_UsesInjectedClock(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	_, err := b.AdjustProfile(ctx, "dave", core.Adjustment{}, nil)
	require.NoError(t, err)

	var row model.EconomyProfile
	require.NoError(t, b.DB().First(&row, "user_id = ?", "dave").Error)
	assert.True(t, row.UpdatedAt.Equal(fixedNow), "updated_at %v, want %v", row.UpdatedAt, fixedNow)
}
