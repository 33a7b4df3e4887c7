package streaming

import (
	"github.com/OCAP2/helmsync/pkg/core"
)

// Inbound event types.
const (
	TypeVesselControl   = "vessel:control"
	TypeVesselUpdate    = "vessel:update"
	TypeVesselHelm      = "vessel:helm"
	TypeVesselStation   = "vessel:station"
	TypeUserMode        = "user:mode"
	TypeMissionAssign   = "mission:assign"
	TypeAdminVesselStop = "admin:vessel:stop"
	TypeAdminVesselMove = "admin:vessel:move"
	TypeAdminVesselDrop = "admin:vessel:remove"
	TypeAdminVesselMode = "admin:vesselMode"
	TypeAdminKick       = "admin:kick"
	TypeAdminStation    = "admin:station"
)

// Outbound event types.
const (
	TypeSimulationUpdate = "simulation:update"
	TypeVesselTeleport   = "vessel:teleport"
	TypeMissionUpdate    = "mission:update"
	TypeEconomyUpdate    = "economy:update"
	TypeStationUpdate    = "station:update"
	TypeError            = "error"
)

// Claim actions for vessel:helm and vessel:station.
const (
	ActionClaim   = "claim"
	ActionRelease = "release"
)

// Error codes carried by error payloads.
const (
	CodeNoPermission      = "E_NO_PERMISSION"
	CodeConflict          = "E_CONFLICT"
	CodeBadRequest        = "E_BAD_REQUEST"
	CodeInsufficientFunds = "E_INSUFFICIENT_FUNDS"
	CodeNotFound          = "E_NOT_FOUND"
	CodeRateLimit         = "E_RATE_LIMIT"
	CodeInternal          = "E_INTERNAL"
)

// Envelope wraps every message sent over the websocket. Payload holds the raw
// payload bytes in the connection's codec.
type Envelope struct {
	Type    string
	Payload []byte
}

// Outbound is an envelope whose payload has not been encoded yet.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ControlPayload is a control intent. Nil fields are left untouched.
type ControlPayload struct {
	VesselID    string   `json:"vesselId,omitempty"`
	Throttle    *float64 `json:"throttle,omitempty"`
	RudderAngle *float64 `json:"rudderAngle,omitempty"`
	Ballast     *float64 `json:"ballast,omitempty"`
}

// Empty reports whether the payload changes nothing.
func (c ControlPayload) Empty() bool {
	return c.Throttle == nil && c.RudderAngle == nil && c.Ballast == nil
}

// UpdatePayload is a client-reported pose.
type UpdatePayload = core.PoseUpdate

// HelmPayload claims or releases the helm.
type HelmPayload struct {
	Action string `json:"action"`
}

// StationPayload claims or releases any station.
type StationPayload struct {
	Station core.Station `json:"station"`
	Action  string       `json:"action"`
}

// ModePayload switches the user between player and spectator.
type ModePayload struct {
	Mode core.UserMode `json:"mode"`
}

// MissionAssignPayload asks for a mission to be assigned to the user's vessel.
type MissionAssignPayload struct {
	MissionID string `json:"missionId"`
}

// AdminVesselPayload targets a vessel for stop, move, remove or mode overrides.
type AdminVesselPayload struct {
	VesselID string          `json:"vesselId"`
	Position *core.Position  `json:"position,omitempty"`
	Heading  *float64        `json:"heading,omitempty"`
	Mode     core.VesselMode `json:"mode,omitempty"`
}

// AdminStationPayload hands a station to UserID, or frees it when UserID
// is empty.
type AdminStationPayload struct {
	VesselID string       `json:"vesselId"`
	Station  core.Station `json:"station"`
	UserID   string       `json:"userId,omitempty"`
}

// AdminKickPayload disconnects every socket of a user.
type AdminKickPayload struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

// SimulationUpdate fans vessel state out to a space. Partial is omitted on full snapshots.
type SimulationUpdate struct {
	Vessels   map[string]*core.Vessel `json:"vessels"`
	Partial   bool                    `json:"partial,omitempty"`
	Timestamp int64                   `json:"timestamp"`
}

// TeleportPayload tells clients to rebuild a vessel's physics at a new pose.
type TeleportPayload struct {
	VesselID    string           `json:"vesselId"`
	Position    core.Position    `json:"position"`
	Orientation core.Orientation `json:"orientation"`
	Reset       bool             `json:"reset"`
}

// MissionUpdatePayload reports an assignment transition.
type MissionUpdatePayload struct {
	Assignment core.MissionAssignment `json:"assignment"`
	Mission    *core.Mission          `json:"mission,omitempty"`
}

// EconomyUpdatePayload reports a profile after an adjustment.
type EconomyUpdatePayload struct {
	Profile    core.EconomyProfile `json:"profile"`
	Adjustment *core.Adjustment    `json:"adjustment,omitempty"`
}

// StationUpdatePayload reports a station changing hands. UserID is empty when freed.
type StationUpdatePayload struct {
	VesselID string       `json:"vesselId"`
	Station  core.Station `json:"station"`
	UserID   string       `json:"userId,omitempty"`
}

// ErrorPayload is the synchronous reply to a rejected message.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Holder  string `json:"holder,omitempty"`
	For     string `json:"for,omitempty"`
}
