package convert

import (
	"testing"
	"time"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/model"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func testVessel() core.Vessel {
	v := core.NewVessel("v-1", "harbour", "owner")
	v.Name = "Nordlys"
	v.Position = geo.FromGeodetic(59.91, 10.75, 2)
	v.Orientation = core.Orientation{Heading: 1.2, Roll: 0.01, Pitch: -0.02}
	v.Velocity = core.Velocity{Surge: 3.5, Sway: 0.1}
	v.AngularVelocity = core.AngularVelocity{Yaw: 0.05}
	v.Controls = core.Controls{Throttle: 0.4, RudderAngle: -0.1, Ballast: 0.5}
	v.AddCrew("mate")
	v.HelmUserID = "owner"
	v.HelmClaimedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v.Mode = core.ModePlayer
	v.DamageState = 0.8
	v.LastUpdate = time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC)
	return *v
}

func TestCoreToVessel(t *testing.T) {
	v := testVessel()
	m := CoreToVessel(v)

	assert.Equal(t, "v-1", m.ID)
	assert.Equal(t, "harbour", m.SpaceID)
	assert.InDelta(t, 59.91, m.Lat, 1e-9)
	assert.InDelta(t, 10.75, m.Lon, 1e-9)
	assert.Equal(t, 2.0, m.Z)
	assert.Equal(t, 0.4, m.Throttle)
	assert.Equal(t, "player", m.Mode)
	assert.True(t, m.HelmClaimedAt.Valid)
	assert.False(t, m.EngineClaimedAt.Valid)
	assert.JSONEq(t, `["mate","owner"]`, string(m.Crew))

	c, ok := m.Location.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, v.Position.X, c.X, 1e-6)
	assert.InDelta(t, v.Position.Y, c.Y, 1e-6)
}

func TestCoreToVessel_DerivesGeodeticFromWorld(t *testing.T) {
	v := testVessel()
	v.Position = core.Position{X: 1113194.9, Y: 0}

	m := CoreToVessel(v)
	assert.InDelta(t, 10.0, m.Lon, 1e-4)
	assert.InDelta(t, 0.0, m.Lat, 1e-9)
}

func TestVesselRoundTrip(t *testing.T) {
	v := testVessel()
	back := VesselToCore(CoreToVessel(v))

	assert.Equal(t, v.ID, back.ID)
	assert.Equal(t, v.CrewIDs, back.CrewIDs)
	assert.Equal(t, v.Hull, back.Hull)
	assert.Equal(t, v.Controls, back.Controls)
	assert.Equal(t, v.HelmClaimedAt, back.HelmClaimedAt)
	assert.True(t, back.EngineClaimedAt.IsZero())
	assert.InDelta(t, v.Position.X, back.Position.X, 1e-6)
	assert.InDelta(t, v.Position.Y, back.Position.Y, 1e-6)
}

func TestVesselToCore_EmptyColumns(t *testing.T) {
	v := VesselToCore(model.Vessel{ID: "bare", Crew: datatypes.JSON("[]")})

	assert.Equal(t, core.ModeAI, v.Mode)
	assert.Equal(t, core.DefaultHull(), v.Hull)
	assert.Empty(t, v.CrewIDs)
}

func TestProfileConversion(t *testing.T) {
	p := core.EconomyProfile{UserID: "u", Rank: 3, Experience: 3500, Credits: 120, SafetyScore: 97.5}
	assert.Equal(t, p, ProfileToCore(CoreToProfile(p)))
}

func TestAdjustmentToLedger(t *testing.T) {
	at := time.Now()
	row := AdjustmentToLedger("u", core.Adjustment{Credits: -5, Experience: 10, Reason: "fee"}, at)

	assert.Equal(t, "u", row.UserID)
	assert.Equal(t, int64(-5), row.Credits)
	assert.Equal(t, "fee", row.Reason)
	assert.Equal(t, at, row.Time)
}

func TestAssignmentConversion(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := core.MissionAssignment{
		ID:         "a-1",
		MissionID:  "m-1",
		UserID:     "u",
		VesselID:   "v-1",
		SpaceID:    "harbour",
		Status:     core.AssignmentCompleted,
		Stage:      core.StageDelivery,
		AssignedAt: now,
		UpdatedAt:  now.Add(time.Hour),
	}

	m := CoreToAssignment(a)
	assert.Equal(t, "completed", m.Status)
	assert.True(t, m.CompletedAt.Valid)
	assert.Equal(t, a, AssignmentToCore(m))

	a.Status = core.AssignmentAssigned
	assert.False(t, CoreToAssignment(a).CompletedAt.Valid)
}
