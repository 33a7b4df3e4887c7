package handlers

import (
	"context"
	"fmt"

	"github.com/OCAP2/helmsync/internal/authz"
	"github.com/OCAP2/helmsync/internal/controls"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/reconcile"
	"github.com/OCAP2/helmsync/internal/registry"
	"github.com/OCAP2/helmsync/pkg/core"
)

// handleControl applies a control intent and echoes the committed record to
// the whole space, the sender included.
func (s *Service) handleControl(e dispatcher.Event) (any, error) {
	c, err := s.deps.Parser.ParseControl(e)
	if err != nil {
		return nil, err
	}
	space, id, err := s.resolve(e.Actor, c.VesselID)
	if err != nil {
		return nil, err
	}
	cur, ok := space.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, registry.ErrVesselNotFound)
	}

	actions := authz.ControlActions(c.Throttle != nil, c.RudderAngle != nil, c.Ballast != nil)
	if err := authz.AuthorizeAll(e.Actor, cur, actions...); err != nil {
		return nil, err
	}

	// credits are read outside the vessel lock; only a moored vessel can depart
	_, moored := space.Moored(id)
	credits := int64(1)
	if moored && c.Throttle != nil && !e.Actor.IsAdmin() {
		p, err := s.profile(context.Background(), e.Actor.UserID)
		if err != nil {
			return nil, err
		}
		credits = p.Credits
	}

	patch := controls.Patch{Throttle: c.Throttle, RudderAngle: c.RudderAngle, Ballast: c.Ballast}
	v, err := space.Update(id, func(v *core.Vessel) error {
		if err := authz.AuthorizeAll(e.Actor, v, actions...); err != nil {
			return err
		}
		next := controls.Normalize(patch.Apply(v.Controls), v, s.controls)
		if err := controls.CheckDeparture(v.Controls, next, moored, credits, s.controls); err != nil {
			return err
		}
		v.Controls = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if controls.IsDeparture(cur.Controls.Throttle, v.Controls.Throttle, moored, s.controls) {
		port, _ := space.Moored(id)
		s.logger().Info("Vessel departing", "space", space.ID, "vessel", id, "port", port, "user", e.Actor.UserID)
	}
	s.broadcast(space.ID, s.update(v), "")
	if s.deps.Persist != nil {
		s.deps.Persist.MarkDirty(v)
	}
	return nil, nil
}

// handleUpdate merges a client pose into the record and relays it to the
// rest of the space.
func (s *Service) handleUpdate(e dispatcher.Event) (any, error) {
	u, err := s.deps.Parser.ParsePose(e)
	if err != nil {
		return nil, err
	}
	space, id, err := s.resolve(e.Actor, u.VesselID)
	if err != nil {
		return nil, err
	}

	now := e.Timestamp
	if now.IsZero() {
		now = s.deps.Now()
	}
	var res reconcile.Result
	v, err := space.Update(id, func(v *core.Vessel) error {
		if err := authz.Authorize(e.Actor, v, authz.ActionPose); err != nil {
			return err
		}
		res = reconcile.Merge(v, u, now, s.pose)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Corrected {
		s.logger().Debug("Reported velocity replaced",
			"vessel", id, "derivedSpeed", res.DerivedSpeed, "elapsed", res.Elapsed)
	}

	s.moor(space, v)
	s.broadcast(space.ID, s.update(v), e.ConnID)
	if s.deps.Persist != nil {
		s.deps.Persist.MarkDirty(v)
	}
	return nil, nil
}
