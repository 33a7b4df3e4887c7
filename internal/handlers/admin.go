package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/OCAP2/helmsync/internal/authz"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/journal"
	"github.com/OCAP2/helmsync/internal/stations"
	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

func requireAdmin(actor core.Actor) error {
	return authz.Authorize(actor, nil, authz.ActionAdmin)
}

// commit persists an admin mutation immediately, journals it and tells the space.
func (s *Service) commit(e dispatcher.Event, v *core.Vessel, detail any) error {
	if s.deps.Persist != nil {
		if err := s.deps.Persist.PersistNow(context.Background(), v); err != nil {
			return err
		}
	}
	s.record(e, v.ID, "", detail)
	s.broadcast(v.SpaceID, s.update(v), "")
	return nil
}

func (s *Service) record(e dispatcher.Event, vesselID, userID string, detail any) {
	s.logger().Info("Admin action", "type", e.Type, "actor", e.Actor.UserID,
		"space", e.Actor.SpaceID, "vessel", vesselID, "user", userID)
	if s.deps.Journal == nil {
		return
	}
	err := s.deps.Journal.Record(journal.Entry{
		Time:     s.deps.Now(),
		Action:   e.Type,
		Actor:    e.Actor.UserID,
		Space:    e.Actor.SpaceID,
		VesselID: vesselID,
		UserID:   userID,
		Detail:   detail,
	})
	if err != nil {
		s.logger().Error("Failed to journal admin action", "type", e.Type, "error", err)
	}
}

// handleAdminStop zeroes controls and motion.
func (s *Service) handleAdminStop(e dispatcher.Event) (any, error) {
	if err := requireAdmin(e.Actor); err != nil {
		return nil, err
	}
	p, err := s.deps.Parser.ParseAdminVessel(e, false, false)
	if err != nil {
		return nil, err
	}
	space := s.deps.Registry.Space(e.Actor.SpaceID)
	now := s.deps.Now()
	v, err := space.Update(p.VesselID, func(v *core.Vessel) error {
		v.Controls = core.Controls{}
		v.ZeroMotion()
		v.LastUpdate = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nil, s.commit(e, v, nil)
}

// handleAdminMove teleports a vessel. Clients rebuild their physics handle
// from the vessel:teleport message, so motion is zeroed here too.
func (s *Service) handleAdminMove(e dispatcher.Event) (any, error) {
	if err := requireAdmin(e.Actor); err != nil {
		return nil, err
	}
	p, err := s.deps.Parser.ParseAdminVessel(e, true, false)
	if err != nil {
		return nil, err
	}
	space := s.deps.Registry.Space(e.Actor.SpaceID)
	now := s.deps.Now()
	v, err := space.Update(p.VesselID, func(v *core.Vessel) error {
		v.Position = *p.Position
		if p.Heading != nil {
			v.Orientation.Heading = *p.Heading
		}
		v.Orientation.Roll, v.Orientation.Pitch = 0, 0
		v.ZeroMotion()
		// a fresh timestamp keeps the jump from reading as a speed
		v.LastUpdate = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.moor(space, v)

	s.broadcast(space.ID, streaming.Outbound{
		Type: streaming.TypeVesselTeleport,
		Payload: streaming.TeleportPayload{
			VesselID:    v.ID,
			Position:    v.Position,
			Orientation: v.Orientation,
			Reset:       true,
		},
	}, "")
	return nil, s.commit(e, v, v.Position)
}

// handleAdminRemove deletes a vessel with its claims and bookkeeping.
func (s *Service) handleAdminRemove(e dispatcher.Event) (any, error) {
	if err := requireAdmin(e.Actor); err != nil {
		return nil, err
	}
	p, err := s.deps.Parser.ParseAdminVessel(e, false, false)
	if err != nil {
		return nil, err
	}
	space := s.deps.Registry.Space(e.Actor.SpaceID)
	v, err := space.Remove(p.VesselID)
	if err != nil {
		return nil, err
	}
	for _, st := range []core.Station{core.StationHelm, core.StationEngine} {
		if v.Holder(st) != "" {
			s.stationUpdate(space.ID, v.ID, st, "")
		}
	}
	if s.deps.Persist != nil {
		// the vessel is already out of the registry, clients must hear about it
		err := s.deps.Persist.Forget(context.Background(), v.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger().Error("Failed to delete removed vessel", "vessel", v.ID, "error", err)
		}
	}
	s.record(e, v.ID, "", nil)

	// a nil record tells clients to drop the vessel
	s.broadcast(space.ID, streaming.Outbound{
		Type: streaming.TypeSimulationUpdate,
		Payload: streaming.SimulationUpdate{
			Vessels:   map[string]*core.Vessel{v.ID: nil},
			Partial:   true,
			Timestamp: s.deps.Now().UnixMilli(),
		},
	}, "")
	return nil, nil
}

// handleAdminMode forces a vessel to AI or player mode. Forcing AI frees
// both stations.
func (s *Service) handleAdminMode(e dispatcher.Event) (any, error) {
	if err := requireAdmin(e.Actor); err != nil {
		return nil, err
	}
	p, err := s.deps.Parser.ParseAdminVessel(e, false, true)
	if err != nil {
		return nil, err
	}
	space := s.deps.Registry.Space(e.Actor.SpaceID)
	var freed []core.Station
	v, err := space.Update(p.VesselID, func(v *core.Vessel) error {
		v.Mode, v.DesiredMode = p.Mode, p.Mode
		if p.Mode == core.ModeAI {
			for _, st := range []core.Station{core.StationHelm, core.StationEngine} {
				if stations.ForceRelease(v, st) != "" {
					freed = append(freed, st)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, st := range freed {
		s.stationUpdate(space.ID, v.ID, st, "")
	}
	return nil, s.commit(e, v, p.Mode)
}

// handleAdminStation force-assigns a station, making the user crew, or
// frees it when no user is named.
func (s *Service) handleAdminStation(e dispatcher.Event) (any, error) {
	if err := requireAdmin(e.Actor); err != nil {
		return nil, err
	}
	p, err := s.deps.Parser.ParseAdminStation(e)
	if err != nil {
		return nil, err
	}
	space := s.deps.Registry.Space(e.Actor.SpaceID)
	now := s.deps.Now()
	var prev string
	v, err := space.Update(p.VesselID, func(v *core.Vessel) error {
		if p.UserID == "" {
			prev = stations.ForceRelease(v, p.Station)
			if stations.Unheld(v) && v.Mode == core.ModePlayer {
				v.Mode, v.DesiredMode = core.ModeAI, core.ModeAI
			}
			return nil
		}
		var err error
		if prev, err = stations.ForceAssign(v, p.Station, p.UserID, now); err != nil {
			return err
		}
		v.Mode, v.DesiredMode = core.ModePlayer, core.ModePlayer
		return nil
	})
	if err != nil {
		return nil, err
	}
	if prev != p.UserID {
		s.stationUpdate(space.ID, v.ID, p.Station, p.UserID)
	}
	return nil, s.commit(e, v, map[string]any{"station": p.Station, "user": p.UserID, "previous": prev})
}

// handleAdminKick disconnects every socket of a user. Teardown follows from
// the hub's disconnect path.
func (s *Service) handleAdminKick(e dispatcher.Event) (any, error) {
	if err := requireAdmin(e.Actor); err != nil {
		return nil, err
	}
	k, err := s.deps.Parser.ParseAdminKick(e)
	if err != nil {
		return nil, err
	}
	if k.UserID == e.Actor.UserID {
		return nil, fmt.Errorf("%w: cannot kick yourself", authz.ErrDenied)
	}
	n := 0
	if s.deps.Broadcast != nil {
		n = s.deps.Broadcast.Kick(e.Actor.SpaceID, k.UserID, k.Reason)
	}
	s.record(e, "", k.UserID, map[string]any{"reason": k.Reason, "sockets": n})
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", k.UserID, ErrNotConnected)
	}
	return nil, nil
}
