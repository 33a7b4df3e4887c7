// Package authz decides whether an actor may perform an action on a vessel.
// Every inbound mutation goes through Authorize before touching state.
package authz

import (
	"errors"
	"fmt"

	"github.com/OCAP2/helmsync/pkg/core"
)

// ErrDenied is wrapped by every authorization failure.
var ErrDenied = errors.New("permission denied")

// Action is something an actor wants to do to a vessel.
type Action string

const (
	ActionRudder   Action = "rudder"
	ActionThrottle Action = "throttle"
	ActionBallast  Action = "ballast"
	ActionPose     Action = "pose"
	ActionClaim    Action = "claim"
	ActionMission  Action = "mission"
	ActionAdmin    Action = "admin"
	ActionMode     Action = "mode"
)

// DeniedError says which action was refused and why.
type DeniedError struct {
	Action Action
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrDenied, e.Action, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

func deny(a Action, reason string) error {
	return &DeniedError{Action: a, Reason: reason}
}

// Authorize returns nil if actor may perform action on v.
//
// Admins may do anything. Otherwise the actor must be crew or hold a
// station. Rudder needs the helm. Throttle and ballast need the engine, or
// the helm while the engine is unclaimed. Pose reports come from the helm
// holder or the owner.
func Authorize(actor core.Actor, v *core.Vessel, action Action) error {
	if actor.IsAdmin() {
		return nil
	}
	if action == ActionAdmin {
		return deny(action, "admin role required")
	}
	if v == nil {
		return deny(action, "no vessel")
	}

	uid := actor.UserID
	helm := uid != "" && v.HelmUserID == uid
	engine := uid != "" && v.EngineUserID == uid
	owner := uid != "" && v.OwnerID == uid

	if action == ActionPose {
		if helm || owner {
			return nil
		}
		return deny(action, "only the helm or owner may report pose")
	}

	if !v.HasCrew(uid) && !helm && !engine {
		return deny(action, "not crew")
	}

	switch action {
	case ActionRudder:
		if helm {
			return nil
		}
		return deny(action, "helm required")
	case ActionThrottle, ActionBallast:
		if engine || (helm && v.EngineUserID == "") {
			return nil
		}
		return deny(action, "engine required")
	case ActionClaim, ActionMission:
		return nil
	}
	return deny(action, "unknown action")
}

// ControlActions lists the actions a control message with the given fields needs.
func ControlActions(throttle, rudder, ballast bool) []Action {
	var actions []Action
	if throttle {
		actions = append(actions, ActionThrottle)
	}
	if rudder {
		actions = append(actions, ActionRudder)
	}
	if ballast {
		actions = append(actions, ActionBallast)
	}
	return actions
}

// AuthorizeAll checks each action and returns the first denial.
func AuthorizeAll(actor core.Actor, v *core.Vessel, actions ...Action) error {
	for _, a := range actions {
		if err := Authorize(actor, v, a); err != nil {
			return err
		}
	}
	return nil
}
