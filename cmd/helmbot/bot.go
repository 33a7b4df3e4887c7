package main

import (
	"log/slog"
	"math"

	"github.com/OCAP2/helmsync/internal/clientloop"
	"github.com/OCAP2/helmsync/internal/uistore"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

// Commander is the part of the client the bot issues intents through.
type Commander interface {
	Claim(st core.Station, action string) error
	SendControl(p streaming.ControlPayload) error
}

// bot crews the first vessel the server lists the user on, takes the helm
// and holds a steady throttle while the loop simulates locally.
type bot struct {
	userID   string
	throttle float64
	cmd      Commander
	store    *uistore.Store
	loop     *clientloop.Loop
	sched    clientloop.Scheduler
	logger   *slog.Logger

	// touched only from the client's read goroutine
	vesselID string
	atHelm   bool
	claiming bool
	// stale holds the controls the server record had when the bot last
	// steered. Records still carrying them predate that control.
	stale *core.Controls
}

// movingSpeed is the local speed above which a server record at rest means
// the vessel was stopped under us.
const movingSpeed = 0.05

// handle processes one inbound message. decode unmarshals its payload.
func (b *bot) handle(msgType string, decode func(v any) error) {
	switch msgType {
	case streaming.TypeSimulationUpdate:
		var u streaming.SimulationUpdate
		if err := decode(&u); err != nil {
			b.logger.Warn("Bad simulation update", "error", err)
			return
		}
		b.onSimulation(u)

	case streaming.TypeVesselTeleport:
		var p streaming.TeleportPayload
		if err := decode(&p); err != nil || p.VesselID != b.vesselID {
			return
		}
		b.logger.Info("Teleported", "vessel", p.VesselID, "lat", p.Position.Lat, "lon", p.Position.Lon)
		b.sched.Post(func() { b.loop.Teleport(p.Position, p.Orientation) })

	case streaming.TypeStationUpdate:
		var p streaming.StationUpdatePayload
		if err := decode(&p); err != nil || p.VesselID != b.vesselID || p.Station != core.StationHelm {
			return
		}
		b.claiming = false
		b.atHelm = p.UserID == b.userID
		if b.atHelm {
			b.steer()
		}

	case streaming.TypeMissionUpdate:
		var p streaming.MissionUpdatePayload
		if err := decode(&p); err == nil {
			b.logger.Info("Mission update", "assignment", p.Assignment.ID, "status", p.Assignment.Status, "stage", p.Assignment.Stage)
		}

	case streaming.TypeEconomyUpdate:
		var p streaming.EconomyUpdatePayload
		if err := decode(&p); err == nil {
			b.logger.Info("Economy update", "credits", p.Profile.Credits, "rank", p.Profile.Rank)
		}

	case streaming.TypeError:
		var p streaming.ErrorPayload
		if err := decode(&p); err == nil {
			if p.For == streaming.TypeVesselHelm {
				b.claiming = false
			}
			b.logger.Warn("Server rejected message", "for", p.For, "code", p.Code, "message", p.Message, "holder", p.Holder)
		}
	}
}

func (b *bot) onSimulation(u streaming.SimulationUpdate) {
	if b.vesselID == "" {
		for id, v := range u.Vessels {
			if v != nil && v.HasCrew(b.userID) {
				b.attach(id, v)
				return
			}
		}
		return
	}

	v, ok := u.Vessels[b.vesselID]
	if !ok {
		return
	}
	if v == nil {
		b.logger.Warn("Vessel removed", "vessel", b.vesselID)
		b.sched.Post(b.loop.Close)
		b.vesselID, b.atHelm, b.claiming, b.stale = "", false, false, nil
		return
	}
	if v.HelmUserID != "" {
		b.claiming = false
	}
	b.atHelm = v.HelmUserID == b.userID
	if b.atHelm {
		b.followOverrides(v)
		return
	}

	// someone else is authoritative for the pose
	b.store.Replace(snapshotOf(v, b.store.Snapshot()))
	b.sched.Post(b.loop.SyncFromStore)
	if v.HelmUserID == "" {
		// freed by a disconnect teardown or a release
		b.claimHelm()
	}
}

// followOverrides applies server-side changes to a vessel the bot steers:
// controls set by an admin or another crew member, and a stop that zeroed
// the motion while the local simulation is still under way.
func (b *bot) followOverrides(v *core.Vessel) {
	local := b.store.Snapshot()
	if v.Controls == local.Controls {
		b.stale = nil
	} else if b.stale == nil || v.Controls != *b.stale {
		b.stale = nil
		c := v.Controls
		b.store.Apply(uistore.Update{Controls: &c})
		b.sched.Post(func() { b.loop.ApplyControls(c) })
		b.logger.Info("Controls overridden by server", "vessel", v.ID, "throttle", c.Throttle, "rudder", c.RudderAngle)
	}

	if atRest(v) && speed(local.Velocity) > movingSpeed {
		b.logger.Info("Vessel stopped by server, resyncing", "vessel", v.ID)
		b.store.Replace(snapshotOf(v, b.store.Snapshot()))
		b.sched.Post(b.loop.SyncFromStore)
	}
}

func (b *bot) attach(id string, v *core.Vessel) {
	b.vesselID = id
	b.store.Replace(snapshotOf(v, b.store.Snapshot()))
	b.sched.Post(func() {
		b.loop.Initialize()
		b.loop.Start()
	})
	b.logger.Info("Crewing vessel", "vessel", id, "space", v.SpaceID)

	if v.HelmUserID == b.userID {
		b.atHelm = true
		b.steer()
		return
	}
	b.claimHelm()
}

func (b *bot) claimHelm() {
	if b.claiming {
		return
	}
	if err := b.cmd.Claim(core.StationHelm, streaming.ActionClaim); err != nil {
		b.logger.Error("Helm claim failed", "error", err)
		return
	}
	b.claiming = true
}

func (b *bot) steer() {
	throttle := b.throttle
	if err := b.cmd.SendControl(streaming.ControlPayload{VesselID: b.vesselID, Throttle: &throttle}); err != nil {
		b.logger.Error("Control send failed", "error", err)
		return
	}
	prev := b.store.Snapshot().Controls
	b.stale = &prev
	c := prev
	c.Throttle = throttle
	b.store.Apply(uistore.Update{Controls: &c})
	b.sched.Post(func() { b.loop.ApplyControls(c) })
}

func atRest(v *core.Vessel) bool {
	return v.Velocity == core.Velocity{} && v.AngularVelocity == core.AngularVelocity{}
}

func speed(v core.Velocity) float64 {
	return math.Sqrt(v.Surge*v.Surge + v.Sway*v.Sway + v.Heave*v.Heave)
}

func snapshotOf(v *core.Vessel, prev uistore.Snapshot) uistore.Snapshot {
	fuel := prev.Fuel
	if fuel == 0 {
		fuel = 1
	}
	return uistore.Snapshot{
		VesselID:        v.ID,
		Position:        v.Position,
		Orientation:     v.Orientation,
		Velocity:        v.Velocity,
		AngularVelocity: v.AngularVelocity,
		Controls:        v.Controls,
		RPM:             prev.RPM,
		Fuel:            fuel,
		Mode:            core.UserModePlayer,
		UpdatedAt:       v.LastUpdate,
	}
}
