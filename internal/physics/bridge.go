package physics

import (
	"github.com/OCAP2/helmsync/pkg/core"
)

// Pose is the position and attitude read back after a step.
type Pose struct {
	Position    core.Position3D
	Orientation core.Orientation
}

// Engine is propulsion telemetry. Fuel is a fraction of capacity.
type Engine struct {
	RPM  float64
	Fuel float64
}

// Bridge is a typed boundary over a Module. It holds no simulation state;
// handles belong to the caller.
type Bridge struct {
	mod Module
}

// NewBridge wraps mod.
func NewBridge(mod Module) *Bridge {
	return &Bridge{mod: mod}
}

// Create builds a vessel from params.
func (b *Bridge) Create(p Params) (Handle, error) {
	return b.mod.Create(p.Vector())
}

// Step advances h by dt seconds. Callers must use the returned handle from now on.
func (b *Bridge) Step(h Handle, dt float64, env Environment) Handle {
	return b.mod.Step(h, dt, env.Vector())
}

func (b *Bridge) Pose(h Handle) Pose {
	return Pose{
		Position: core.Position3D{
			X: b.mod.Get(h, FieldX),
			Y: b.mod.Get(h, FieldY),
			Z: b.mod.Get(h, FieldZ),
		},
		Orientation: core.Orientation{
			Heading: b.mod.Get(h, FieldHeading),
			Roll:    b.mod.Get(h, FieldRoll),
			Pitch:   b.mod.Get(h, FieldPitch),
		},
	}
}

func (b *Bridge) Velocity(h Handle) core.Velocity {
	return core.Velocity{
		Surge: b.mod.Get(h, FieldSurge),
		Sway:  b.mod.Get(h, FieldSway),
		Heave: b.mod.Get(h, FieldHeave),
	}
}

func (b *Bridge) AngularVelocity(h Handle) core.AngularVelocity {
	return core.AngularVelocity{
		Yaw:   b.mod.Get(h, FieldYawRate),
		Roll:  b.mod.Get(h, FieldRollRate),
		Pitch: b.mod.Get(h, FieldPitchRate),
	}
}

func (b *Bridge) Engine(h Handle) Engine {
	return Engine{
		RPM:  b.mod.Get(h, FieldRPM),
		Fuel: b.mod.Get(h, FieldFuel),
	}
}

func (b *Bridge) SetThrottle(h Handle, v float64) { b.mod.SetThrottle(h, v) }
func (b *Bridge) SetRudder(h Handle, v float64)   { b.mod.SetRudder(h, v) }
func (b *Bridge) SetBallast(h Handle, v float64)  { b.mod.SetBallast(h, v) }

// Destroy releases h. A zero handle is ignored.
func (b *Bridge) Destroy(h Handle) {
	if h != 0 {
		b.mod.Destroy(h)
	}
}
