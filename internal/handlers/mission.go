package handlers

import (
	"context"
	"fmt"

	"github.com/OCAP2/helmsync/internal/authz"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/registry"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

// handleMissionAssign assigns a catalog mission to the actor's vessel and
// answers with the new assignment.
func (s *Service) handleMissionAssign(e dispatcher.Event) (any, error) {
	p, err := s.deps.Parser.ParseMissionAssign(e)
	if err != nil {
		return nil, err
	}
	space, id, err := s.resolve(e.Actor, "")
	if err != nil {
		return nil, err
	}
	v, ok := space.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, registry.ErrVesselNotFound)
	}
	if err := authz.Authorize(e.Actor, v, authz.ActionMission); err != nil {
		return nil, err
	}

	actor := e.Actor
	actor.Rank = s.rank(actor)
	a, m, err := s.deps.Missions.Assign(context.Background(), actor, id, p.MissionID)
	if err != nil {
		return nil, err
	}
	s.logger().Info("Mission assigned", "space", space.ID, "vessel", id, "user", actor.UserID, "mission", m.ID, "assignment", a.ID)

	return streaming.Outbound{
		Type:    streaming.TypeMissionUpdate,
		Payload: streaming.MissionUpdatePayload{Assignment: a, Mission: &m},
	}, nil
}
