// pkg/core/vessel.go
package core

import (
	"slices"
	"time"
)

// VesselMode says who drives a vessel.
type VesselMode string

const (
	ModeAI     VesselMode = "ai"
	ModePlayer VesselMode = "player"
)

// Station is an exclusively held control slot on a vessel.
type Station string

const (
	StationHelm   Station = "helm"
	StationEngine Station = "engine"
)

// Valid reports whether s names a known station.
func (s Station) Valid() bool {
	return s == StationHelm || s == StationEngine
}

// DefaultMaxRudderAngle is 35 degrees, used when a hull does not set its own limit.
const DefaultMaxRudderAngle = 0.6108652381980153

// Hull holds the physical properties of a vessel.
type Hull struct {
	Mass             float64 `json:"mass" yaml:"mass"`     // kg
	Length           float64 `json:"length" yaml:"length"` // m
	Beam             float64 `json:"beam" yaml:"beam"`     // m
	Draft            float64 `json:"draft" yaml:"draft"`   // m
	BlockCoefficient float64 `json:"blockCoefficient,omitempty" yaml:"blockCoefficient,omitempty"`
	MaxRudderAngle   float64 `json:"maxRudderAngle,omitempty" yaml:"maxRudderAngle,omitempty"` // radians
}

// RudderLimit returns the maximum rudder deflection for this hull.
func (h Hull) RudderLimit() float64 {
	if h.MaxRudderAngle > 0 {
		return h.MaxRudderAngle
	}
	return DefaultMaxRudderAngle
}

// DefaultHull is a small coastal freighter.
func DefaultHull() Hull {
	return Hull{
		Mass:             5.0e6,
		Length:           120,
		Beam:             18,
		Draft:            6,
		BlockCoefficient: 0.7,
		MaxRudderAngle:   DefaultMaxRudderAngle,
	}
}

// Vessel is the authoritative record of a single vessel inside a space.
// HelmUserID and EngineUserID are empty when the station is free.
type Vessel struct {
	ID              string          `json:"id"`
	SpaceID         string          `json:"spaceId"`
	Name            string          `json:"name,omitempty"`
	Position        Position        `json:"position"`
	Orientation     Orientation     `json:"orientation"`
	Velocity        Velocity        `json:"velocity"`
	AngularVelocity AngularVelocity `json:"angularVelocity"`
	Controls        Controls        `json:"controls"`
	Hull            Hull            `json:"hull"`
	OwnerID         string          `json:"ownerId,omitempty"`
	CrewIDs         []string        `json:"crewIds"`
	HelmUserID      string          `json:"helmUserId,omitempty"`
	HelmClaimedAt   time.Time       `json:"helmClaimedAt,omitempty"`
	EngineUserID    string          `json:"engineUserId,omitempty"`
	EngineClaimedAt time.Time       `json:"engineClaimedAt,omitempty"`
	Mode            VesselMode      `json:"mode"`
	DesiredMode     VesselMode      `json:"desiredMode"`
	FailureState    float64         `json:"failureState"` // propulsion/steering health, 1 = nominal
	DamageState     float64         `json:"damageState"`  // hull integrity, 1 = intact
	LastUpdate      time.Time       `json:"lastUpdate"`
}

// NewVessel returns a vessel in AI mode with full health and no crew.
func NewVessel(id, spaceID, ownerID string) *Vessel {
	v := &Vessel{
		ID:           id,
		SpaceID:      spaceID,
		OwnerID:      ownerID,
		Hull:         DefaultHull(),
		Mode:         ModeAI,
		DesiredMode:  ModeAI,
		FailureState: 1,
		DamageState:  1,
	}
	if ownerID != "" {
		v.AddCrew(ownerID)
	}
	return v
}

// HasCrew reports whether userID is a crew member.
func (v *Vessel) HasCrew(userID string) bool {
	return userID != "" && slices.Contains(v.CrewIDs, userID)
}

// AddCrew adds userID to the crew set.
func (v *Vessel) AddCrew(userID string) {
	if userID == "" || v.HasCrew(userID) {
		return
	}
	v.CrewIDs = append(v.CrewIDs, userID)
	slices.Sort(v.CrewIDs)
}

// RemoveCrew removes userID from the crew set and frees any station it holds.
func (v *Vessel) RemoveCrew(userID string) {
	v.CrewIDs = slices.DeleteFunc(v.CrewIDs, func(id string) bool { return id == userID })
	if v.HelmUserID == userID {
		v.HelmUserID = ""
		v.HelmClaimedAt = time.Time{}
	}
	if v.EngineUserID == userID {
		v.EngineUserID = ""
		v.EngineClaimedAt = time.Time{}
	}
}

// Holder returns the user holding station, or "" when it is free.
func (v *Vessel) Holder(s Station) string {
	switch s {
	case StationHelm:
		return v.HelmUserID
	case StationEngine:
		return v.EngineUserID
	}
	return ""
}

// ZeroMotion clears linear and angular velocity.
func (v *Vessel) ZeroMotion() {
	v.Velocity = Velocity{}
	v.AngularVelocity = AngularVelocity{}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (v *Vessel) Clone() *Vessel {
	if v == nil {
		return nil
	}
	c := *v
	c.CrewIDs = slices.Clone(v.CrewIDs)
	return &c
}

// PoseUpdate is a client-reported pose for a vessel.
type PoseUpdate struct {
	VesselID        string           `json:"vesselId,omitempty"`
	Position        Position         `json:"position"`
	Orientation     Orientation      `json:"orientation"`
	Velocity        Velocity         `json:"velocity"`
	AngularVelocity *AngularVelocity `json:"angularVelocity,omitempty"`
}
