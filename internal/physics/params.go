package physics

import (
	"math"

	"github.com/OCAP2/helmsync/pkg/core"
)

// Coefficients are optional hydrodynamic, propulsion and stability terms.
// Nil fields are sent as NaN and the module falls back to its own defaults.
type Coefficients struct {
	RudderForceCoefficient *float64 `json:"rudderForceCoefficient,omitempty" yaml:"rudderForceCoefficient"`
	RudderStallAngle       *float64 `json:"rudderStallAngle,omitempty" yaml:"rudderStallAngle"`
	RudderMaxAngle         *float64 `json:"rudderMaxAngle,omitempty" yaml:"rudderMaxAngle"`
	DragCoefficient        *float64 `json:"dragCoefficient,omitempty" yaml:"dragCoefficient"`
	YawDamping             *float64 `json:"yawDamping,omitempty" yaml:"yawDamping"`
	YawDampingQuad         *float64 `json:"yawDampingQuad,omitempty" yaml:"yawDampingQuad"`
	SwayDamping            *float64 `json:"swayDamping,omitempty" yaml:"swayDamping"`
	MaxThrust              *float64 `json:"maxThrust,omitempty" yaml:"maxThrust"`
	MaxSpeed               *float64 `json:"maxSpeed,omitempty" yaml:"maxSpeed"`
	RollDamping            *float64 `json:"rollDamping,omitempty" yaml:"rollDamping"`
	PitchDamping           *float64 `json:"pitchDamping,omitempty" yaml:"pitchDamping"`
	HeaveStiffness         *float64 `json:"heaveStiffness,omitempty" yaml:"heaveStiffness"`
	HeaveDamping           *float64 `json:"heaveDamping,omitempty" yaml:"heaveDamping"`
}

// Params is the initial condition and configuration of a vessel.
type Params struct {
	Position        core.Position3D
	Orientation     core.Orientation
	Velocity        core.Velocity
	AngularVelocity core.AngularVelocity
	Throttle        float64
	RudderAngle     float64
	Hull            core.Hull
	Coefficients    Coefficients
}

// ParamsFromVessel takes the initial condition from a vessel record.
func ParamsFromVessel(v *core.Vessel, coeff Coefficients) Params {
	return Params{
		Position:        v.Position.World(),
		Orientation:     v.Orientation,
		Velocity:        v.Velocity,
		AngularVelocity: v.AngularVelocity,
		Throttle:        v.Controls.Throttle,
		RudderAngle:     v.Controls.RudderAngle,
		Hull:            v.Hull,
		Coefficients:    coeff,
	}
}

// Vector flattens the params into the layout expected by vessel_create.
func (p Params) Vector() []float64 {
	v := make([]float64, ParamCount)
	v[ParamX] = p.Position.X
	v[ParamY] = p.Position.Y
	v[ParamZ] = p.Position.Z
	v[ParamHeading] = p.Orientation.Heading
	v[ParamRoll] = p.Orientation.Roll
	v[ParamPitch] = p.Orientation.Pitch
	v[ParamSurge] = p.Velocity.Surge
	v[ParamSway] = p.Velocity.Sway
	v[ParamHeave] = p.Velocity.Heave
	v[ParamYawRate] = p.AngularVelocity.Yaw
	v[ParamRollRate] = p.AngularVelocity.Roll
	v[ParamPitchRate] = p.AngularVelocity.Pitch
	v[ParamThrottle] = p.Throttle
	v[ParamRudderAngle] = p.RudderAngle
	v[ParamMass] = p.Hull.Mass
	v[ParamLength] = p.Hull.Length
	v[ParamBeam] = p.Hull.Beam
	v[ParamDraft] = p.Hull.Draft
	v[ParamBlockCoefficient] = optional(p.Hull.BlockCoefficient)

	c := p.Coefficients
	v[ParamRudderForceCoefficient] = unset(c.RudderForceCoefficient)
	v[ParamRudderStallAngle] = unset(c.RudderStallAngle)
	v[ParamRudderMaxAngle] = unset(c.RudderMaxAngle)
	if c.RudderMaxAngle == nil && p.Hull.MaxRudderAngle > 0 {
		v[ParamRudderMaxAngle] = p.Hull.MaxRudderAngle
	}
	v[ParamDragCoefficient] = unset(c.DragCoefficient)
	v[ParamYawDamping] = unset(c.YawDamping)
	v[ParamYawDampingQuad] = unset(c.YawDampingQuad)
	v[ParamSwayDamping] = unset(c.SwayDamping)
	v[ParamMaxThrust] = unset(c.MaxThrust)
	v[ParamMaxSpeed] = unset(c.MaxSpeed)
	v[ParamRollDamping] = unset(c.RollDamping)
	v[ParamPitchDamping] = unset(c.PitchDamping)
	v[ParamHeaveStiffness] = unset(c.HeaveStiffness)
	v[ParamHeaveDamping] = unset(c.HeaveDamping)
	return v
}

func unset(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func optional(v float64) float64 {
	if v == 0 {
		return math.NaN()
	}
	return v
}
