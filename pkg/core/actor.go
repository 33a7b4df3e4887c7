// pkg/core/actor.go
package core

import "slices"

// Role names granted by the external session issuer.
const (
	RoleGuest  = "guest"
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

// UserMode is the participation mode a user has chosen.
type UserMode string

const (
	UserModePlayer    UserMode = "player"
	UserModeSpectator UserMode = "spectator"
)

// Actor is the identity behind an inbound message.
type Actor struct {
	UserID  string   `json:"userId"`
	SpaceID string   `json:"spaceId"`
	Roles   []string `json:"roles"`
	Rank    int      `json:"rank"`
}

// HasRole reports whether the actor carries role.
func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// IsAdmin reports whether the actor may use administrative overrides.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}
