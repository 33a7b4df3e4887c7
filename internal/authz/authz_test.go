package authz

import (
	"errors"
	"testing"

	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
)

func vesselWith(helm, engine string, crew ...string) *core.Vessel {
	v := core.NewVessel("v", "s", "owner")
	for _, c := range crew {
		v.AddCrew(c)
	}
	v.HelmUserID = helm
	v.EngineUserID = engine
	return v
}

func actor(uid string, roles ...string) core.Actor {
	return core.Actor{UserID: uid, Roles: roles}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name   string
		actor  core.Actor
		vessel *core.Vessel
		action Action
		allow  bool
	}{
		{"admin rudder without crew", actor("root", core.RoleAdmin), vesselWith("", ""), ActionRudder, true},
		{"admin action as player", actor("u", core.RolePlayer), vesselWith("", "", "u"), ActionAdmin, false},
		{"admin action as admin", actor("root", core.RoleAdmin), nil, ActionAdmin, true},
		{"stranger throttle", actor("x"), vesselWith("h", "e", "h", "e"), ActionThrottle, false},
		{"crew without station rudder", actor("c"), vesselWith("h", "", "h", "c"), ActionRudder, false},
		{"helm rudder", actor("h"), vesselWith("h", "", "h"), ActionRudder, true},
		{"engine rudder", actor("e"), vesselWith("h", "e", "h", "e"), ActionRudder, false},
		{"engine throttle", actor("e"), vesselWith("h", "e", "h", "e"), ActionThrottle, true},
		{"helm throttle with free engine", actor("h"), vesselWith("h", "", "h"), ActionThrottle, true},
		{"helm throttle with held engine", actor("h"), vesselWith("h", "e", "h", "e"), ActionThrottle, false},
		{"helm ballast with free engine", actor("h"), vesselWith("h", "", "h"), ActionBallast, true},
		{"crew throttle with free engine", actor("c"), vesselWith("", "", "c"), ActionThrottle, false},
		{"helm pose", actor("h"), vesselWith("h", "", "h"), ActionPose, true},
		{"owner pose", actor("owner"), vesselWith("", ""), ActionPose, true},
		{"crew pose", actor("c"), vesselWith("h", "", "h", "c"), ActionPose, false},
		{"crew claim", actor("c"), vesselWith("", "", "c"), ActionClaim, true},
		{"stranger claim", actor("x"), vesselWith("", ""), ActionClaim, false},
		{"crew mission", actor("c"), vesselWith("", "", "c"), ActionMission, true},
		{"no vessel", actor("c"), nil, ActionThrottle, false},
		{"empty user on free stations", actor(""), vesselWith("", ""), ActionThrottle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.vessel, tt.action)
			if tt.allow {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrDenied)
			var denied *DeniedError
			assert.True(t, errors.As(err, &denied))
			assert.Equal(t, tt.action, denied.Action)
		})
	}
}

func TestControlActions(t *testing.T) {
	assert.Equal(t, []Action{ActionThrottle, ActionBallast}, ControlActions(true, false, true))
	assert.Empty(t, ControlActions(false, false, false))
}

func TestAuthorizeAll(t *testing.T) {
	v := vesselWith("h", "e", "h", "e")
	err := AuthorizeAll(actor("e"), v, ActionThrottle, ActionRudder)

	var denied *DeniedError
	assert.True(t, errors.As(err, &denied))
	assert.Equal(t, ActionRudder, denied.Action)
	assert.NoError(t, AuthorizeAll(actor("e"), v, ActionThrottle, ActionBallast))
}
