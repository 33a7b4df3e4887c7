package handlers

import (
	"github.com/OCAP2/helmsync/internal/authz"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/stations"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

func (s *Service) handleHelm(e dispatcher.Event) (any, error) {
	h, err := s.deps.Parser.ParseHelm(e)
	if err != nil {
		return nil, err
	}
	return nil, s.station(e, core.StationHelm, h.Action)
}

func (s *Service) handleStation(e dispatcher.Event) (any, error) {
	p, err := s.deps.Parser.ParseStation(e)
	if err != nil {
		return nil, err
	}
	return nil, s.station(e, p.Station, p.Action)
}

// station claims or releases st on the actor's vessel. Claiming makes the
// vessel player driven; releasing the last station hands it back to AI.
func (s *Service) station(e dispatcher.Event, st core.Station, action string) error {
	if s.UserMode(e.Actor.SpaceID, e.Actor.UserID) == core.UserModeSpectator && action == streaming.ActionClaim {
		return &authz.DeniedError{Action: authz.ActionClaim, Reason: "spectators cannot claim stations"}
	}
	space, id, err := s.resolve(e.Actor, "")
	if err != nil {
		return err
	}

	now := s.deps.Now()
	var changed bool
	v, err := space.Update(id, func(v *core.Vessel) error {
		if err := authz.Authorize(e.Actor, v, authz.ActionClaim); err != nil {
			return err
		}
		var err error
		if action == streaming.ActionClaim {
			changed, err = stations.Claim(v, st, e.Actor.UserID, now)
			if changed {
				v.Mode, v.DesiredMode = core.ModePlayer, core.ModePlayer
			}
			return err
		}
		changed, err = stations.Release(v, st, e.Actor.UserID)
		if changed && stations.Unheld(v) && v.Mode == core.ModePlayer {
			v.Mode, v.DesiredMode = core.ModeAI, core.ModeAI
		}
		return err
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.logger().Info("Station changed hands", "space", space.ID, "vessel", id,
		"station", st, "action", action, "user", e.Actor.UserID)
	s.stationUpdate(space.ID, id, st, v.Holder(st))
	s.broadcast(space.ID, s.update(v), "")
	if s.deps.Persist != nil {
		s.deps.Persist.MarkDirty(v)
	}
	return nil
}
