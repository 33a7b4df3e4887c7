package main

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/helmsync/internal/clientloop"
	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/physics"
	"github.com/OCAP2/helmsync/internal/uistore"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

type inlineScheduler struct{}

func (inlineScheduler) Schedule(func(time.Time)) func() { return func() {} }
func (inlineScheduler) Post(fn func())                  { fn() }

type fakeCommander struct {
	claims   []core.Station
	controls []streaming.ControlPayload
}

func (f *fakeCommander) Claim(st core.Station, _ string) error {
	f.claims = append(f.claims, st)
	return nil
}

func (f *fakeCommander) SendControl(p streaming.ControlPayload) error {
	f.controls = append(f.controls, p)
	return nil
}

func newBot(t *testing.T) (*bot, *fakeCommander) {
	t.Helper()
	cmd := &fakeCommander{}
	store := uistore.New(uistore.Snapshot{})
	sched := inlineScheduler{}
	b := &bot{
		userID:   "alice",
		throttle: 0.4,
		cmd:      cmd,
		store:    store,
		sched:    sched,
		logger:   slog.New(slog.DiscardHandler),
	}
	b.loop = clientloop.New(clientloop.Dependencies{
		Bridge:    physics.NewBridge(physics.NewKinematicModule()),
		Store:     store,
		Scheduler: sched,
	}, clientloop.Options{})
	return b, cmd
}

// send encodes payload as JSON and feeds it to the bot.
func send(t *testing.T, b *bot, msgType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	b.handle(msgType, func(v any) error { return json.Unmarshal(data, v) })
}

func vessel(id, owner string) *core.Vessel {
	v := core.NewVessel(id, "north", owner)
	v.Position = geo.FromGeodetic(59.9, 10.7, 0)
	return v
}

func TestBot_AttachesToOwnVessel(t *testing.T) {
	b, cmd := newBot(t)

	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{
			"other": vessel("other", "bob"),
			"mine":  vessel("mine", "alice"),
		},
	})

	assert.Equal(t, "mine", b.vesselID)
	assert.Equal(t, "mine", b.store.Snapshot().VesselID)
	assert.InDelta(t, 59.9, b.store.Snapshot().Position.Lat, 1e-6)
	assert.Equal(t, []core.Station{core.StationHelm}, cmd.claims)
	assert.True(t, b.loop.Active())
	assert.Empty(t, cmd.controls)
}

func TestBot_SteersOnceHelmGranted(t *testing.T) {
	b, cmd := newBot(t)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": vessel("mine", "alice")},
	})

	send(t, b, streaming.TypeStationUpdate, streaming.StationUpdatePayload{
		VesselID: "mine", Station: core.StationHelm, UserID: "alice",
	})

	assert.True(t, b.atHelm)
	require.Len(t, cmd.controls, 1)
	assert.Equal(t, "mine", cmd.controls[0].VesselID)
	assert.InDelta(t, 0.4, *cmd.controls[0].Throttle, 1e-9)
}

func TestBot_FollowsServerWhenNotAtHelm(t *testing.T) {
	b, _ := newBot(t)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": vessel("mine", "alice")},
	})

	moved := vessel("mine", "alice")
	moved.HelmUserID = "bob"
	moved.Position = geo.FromGeodetic(60.1, 10.7, 0)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": moved},
		Partial: true,
	})

	assert.False(t, b.atHelm)
	assert.InDelta(t, 60.1, b.store.Snapshot().Position.Lat, 1e-6)
}

func TestBot_KeepsLocalPoseAtHelm(t *testing.T) {
	b, _ := newBot(t)
	mine := vessel("mine", "alice")
	mine.HelmUserID = "alice"
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": mine},
	})
	require.True(t, b.atHelm)

	echoed := vessel("mine", "alice")
	echoed.HelmUserID = "alice"
	echoed.Position = geo.FromGeodetic(61, 10.7, 0)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": echoed},
	})

	assert.InDelta(t, 59.9, b.store.Snapshot().Position.Lat, 1e-6)
}

func TestBot_Teleport(t *testing.T) {
	b, _ := newBot(t)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": vessel("mine", "alice")},
	})

	send(t, b, streaming.TypeVesselTeleport, streaming.TeleportPayload{
		VesselID: "other",
		Position: geo.FromGeodetic(10, 10, 0),
	})
	assert.InDelta(t, 59.9, b.store.Snapshot().Position.Lat, 1e-6)

	send(t, b, streaming.TypeVesselTeleport, streaming.TeleportPayload{
		VesselID: "mine",
		Position: geo.FromGeodetic(58.5, 11, 0),
		Reset:    true,
	})
	snap := b.store.Snapshot()
	assert.InDelta(t, 58.5, snap.Position.Lat, 1e-6)
	assert.Zero(t, snap.Velocity.Surge)
}

func TestBot_VesselRemoved(t *testing.T) {
	b, _ := newBot(t)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": vessel("mine", "alice")},
	})

	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": nil},
		Partial: true,
	})

	assert.Empty(t, b.vesselID)
	assert.False(t, b.loop.Active())
}

func TestSnapshotOf_DefaultsFuel(t *testing.T) {
	s := snapshotOf(vessel("v", "alice"), uistore.Snapshot{})
	assert.Equal(t, 1.0, s.Fuel)

	s = snapshotOf(vessel("v", "alice"), uistore.Snapshot{Fuel: 0.3})
	assert.Equal(t, 0.3, s.Fuel)
}

// runFrames drives the loop for n frames of 1/60 s after start.
func runFrames(b *bot, start time.Time, n int) time.Time {
	now := start
	for range n {
		now = now.Add(time.Second / 60)
		b.loop.Frame(now)
	}
	return now
}

func atHelmVessel() *core.Vessel {
	v := vessel("mine", "alice")
	v.HelmUserID = "alice"
	return v
}

func TestBot_AdminStopAtHelm(t *testing.T) {
	b, cmd := newBot(t)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": atHelmVessel()},
	})
	require.Len(t, cmd.controls, 1)

	echo := atHelmVessel()
	echo.Controls.Throttle = 0.4
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": echo},
		Partial: true,
	})

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b.loop.Frame(start)
	now := runFrames(b, start, 120)
	require.Greater(t, b.store.Snapshot().Velocity.Surge, 0.1)

	stopped := atHelmVessel()
	stopped.Position = b.store.Snapshot().Position
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": stopped},
		Partial: true,
	})

	snap := b.store.Snapshot()
	assert.Zero(t, snap.Controls.Throttle)
	assert.Zero(t, snap.Velocity.Surge)

	runFrames(b, now, 120)
	assert.InDelta(t, 0, b.store.Snapshot().Velocity.Surge, 1e-6)
	assert.Len(t, cmd.controls, 1, "the bot must not re-steer against the stop")
}

func TestBot_IgnoresRecordPredatingOwnControl(t *testing.T) {
	b, _ := newBot(t)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": vessel("mine", "alice")},
	})
	send(t, b, streaming.TypeStationUpdate, streaming.StationUpdatePayload{
		VesselID: "mine", Station: core.StationHelm, UserID: "alice",
	})

	// the claim broadcast still carries the controls from before steering
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": atHelmVessel()},
		Partial: true,
	})
	assert.InDelta(t, 0.4, b.store.Snapshot().Controls.Throttle, 1e-9)

	limited := atHelmVessel()
	limited.Controls.Throttle = 0.25
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": limited},
		Partial: true,
	})
	assert.InDelta(t, 0.25, b.store.Snapshot().Controls.Throttle, 1e-9)
}

func TestBot_ReclaimsFreedHelm(t *testing.T) {
	b, cmd := newBot(t)
	send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
		Vessels: map[string]*core.Vessel{"mine": atHelmVessel()},
	})
	require.True(t, b.atHelm)
	require.Empty(t, cmd.claims)

	// full snapshot after a reconnect: teardown freed the helm
	for range 2 {
		send(t, b, streaming.TypeSimulationUpdate, streaming.SimulationUpdate{
			Vessels: map[string]*core.Vessel{"mine": vessel("mine", "alice")},
		})
	}
	assert.False(t, b.atHelm)
	assert.Equal(t, []core.Station{core.StationHelm}, cmd.claims)

	send(t, b, streaming.TypeStationUpdate, streaming.StationUpdatePayload{
		VesselID: "mine", Station: core.StationHelm, UserID: "alice",
	})
	assert.True(t, b.atHelm)
	assert.Len(t, cmd.controls, 2)
}
