package handlers

import (
	"github.com/OCAP2/helmsync/internal/authz"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

// handleMode switches the actor between player and spectator.
func (s *Service) handleMode(e dispatcher.Event) (any, error) {
	m, err := s.deps.Parser.ParseMode(e)
	if err != nil {
		return nil, err
	}
	actor := e.Actor

	switch m.Mode {
	case core.UserModePlayer:
		if err := s.canPlay(actor); err != nil {
			return nil, err
		}
	case core.UserModeSpectator:
		if err := s.canSpectate(actor); err != nil {
			return nil, err
		}
	}

	s.setMode(actor.SpaceID, actor.UserID, m.Mode)
	if m.Mode == core.UserModeSpectator {
		s.release(s.deps.Registry.Space(actor.SpaceID), actor.UserID)
	}
	s.logger().Info("User mode changed", "space", actor.SpaceID, "user", actor.UserID, "mode", m.Mode)

	return streaming.Outbound{Type: streaming.TypeUserMode, Payload: m}, nil
}

func (s *Service) canPlay(actor core.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if !actor.HasRole(core.RolePlayer) {
		return &authz.DeniedError{Action: authz.ActionMode, Reason: "player role required"}
	}
	if rank := s.rank(actor); rank < s.deps.Rules.MinPlayerRank {
		return &authz.DeniedError{Action: authz.ActionMode, Reason: "rank too low"}
	}
	return nil
}

// canSpectate stops a crew member from leaving a vessel mid-transit. Under
// strict rules the vessel must be moored or near another vessel.
func (s *Service) canSpectate(actor core.Actor) error {
	if actor.IsAdmin() || !s.deps.Rules.Strict {
		return nil
	}
	space := s.deps.Registry.Space(actor.SpaceID)
	id, ok := space.VesselFor(actor.UserID)
	if !ok {
		return nil
	}
	if _, moored := space.Moored(id); moored {
		return nil
	}

	positions := space.Positions()
	own, ok := positions[id]
	if !ok {
		return nil
	}
	for other, pos := range positions {
		if other != id && geo.Between(own, pos) <= s.deps.Rules.SpectatorProximity {
			return nil
		}
	}
	return &authz.DeniedError{Action: authz.ActionMode, Reason: "vessel is under way and alone"}
}
