package physics

import (
	"errors"
	"math"
	"sync"

	"github.com/OCAP2/helmsync/internal/util"
)

const (
	mercatorRadius = 6378137.0

	defaultMaxSpeed    = 8.0 // m/s
	defaultYawGain     = 2.0
	defaultSwayDamping = 0.5
	defaultRollDamping = 0.8
	defaultMaxRPM      = 900

	speedTimeConstant = 12.0 // s
	yawTimeConstant   = 4.0  // s
	rpmTimeConstant   = 2.0  // s
	fullThrottleBurn  = 1.0 / (6 * 3600)
)

var errShortParams = errors.New("parameter vector too short")

// KinematicModule is a pure Go first-order vessel model with the same call
// contract as the native unit. It is used by headless participants and tests.
type KinematicModule struct {
	// Relocate makes every Step move the vessel to a fresh handle.
	Relocate bool

	mu      sync.Mutex
	next    Handle
	vessels map[Handle]*kinematicVessel
}

type kinematicVessel struct {
	state   [FieldCount]float64
	length  float64
	draft   float64
	maxRud  float64
	maxSpd  float64
	swayDmp float64
	rollDmp float64
}

// NewKinematicModule returns an empty module.
func NewKinematicModule() *KinematicModule {
	return &KinematicModule{vessels: make(map[Handle]*kinematicVessel)}
}

func (m *KinematicModule) Create(params []float64) (Handle, error) {
	if len(params) < ParamCount {
		return 0, errShortParams
	}
	kv := &kinematicVessel{
		length:  params[ParamLength],
		draft:   params[ParamDraft],
		maxRud:  withDefault(params[ParamRudderMaxAngle], 0.61),
		maxSpd:  withDefault(params[ParamMaxSpeed], defaultMaxSpeed),
		swayDmp: withDefault(params[ParamSwayDamping], defaultSwayDamping),
		rollDmp: withDefault(params[ParamRollDamping], defaultRollDamping),
	}
	if kv.length <= 0 {
		kv.length = 100
	}
	s := &kv.state
	s[FieldX] = params[ParamX]
	s[FieldY] = params[ParamY]
	s[FieldZ] = params[ParamZ]
	s[FieldHeading] = util.WrapAngle(params[ParamHeading])
	s[FieldRoll] = params[ParamRoll]
	s[FieldPitch] = params[ParamPitch]
	s[FieldSurge] = params[ParamSurge]
	s[FieldSway] = params[ParamSway]
	s[FieldHeave] = params[ParamHeave]
	s[FieldYawRate] = params[ParamYawRate]
	s[FieldRollRate] = params[ParamRollRate]
	s[FieldPitchRate] = params[ParamPitchRate]
	s[FieldThrottle] = util.Clamp(params[ParamThrottle], -1, 1)
	s[FieldRudderAngle] = util.Clamp(params[ParamRudderAngle], -kv.maxRud, kv.maxRud)
	s[FieldFuel] = 1

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.vessels[m.next] = kv
	return m.next, nil
}

func (m *KinematicModule) Step(h Handle, dt float64, env []float64) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	kv, ok := m.vessels[h]
	if !ok {
		return h
	}
	kv.step(dt, env)

	if !m.Relocate {
		return h
	}
	delete(m.vessels, h)
	m.next++
	m.vessels[m.next] = kv
	return m.next
}

func (m *KinematicModule) Get(h Handle, field int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	kv, ok := m.vessels[h]
	if !ok || field < 0 || field >= int(FieldCount) {
		return math.NaN()
	}
	return kv.state[field]
}

func (m *KinematicModule) SetThrottle(h Handle, v float64) {
	m.set(h, func(kv *kinematicVessel) { kv.state[FieldThrottle] = util.Clamp(v, -1, 1) })
}

func (m *KinematicModule) SetRudder(h Handle, v float64) {
	m.set(h, func(kv *kinematicVessel) { kv.state[FieldRudderAngle] = util.Clamp(v, -kv.maxRud, kv.maxRud) })
}

func (m *KinematicModule) SetBallast(h Handle, v float64) {
	m.set(h, func(kv *kinematicVessel) { kv.state[FieldBallast] = util.Clamp(v, 0, 1) })
}

func (m *KinematicModule) Destroy(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vessels, h)
}

// Len returns the number of live vessels.
func (m *KinematicModule) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vessels)
}

func (m *KinematicModule) set(h Handle, fn func(*kinematicVessel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kv, ok := m.vessels[h]; ok {
		fn(kv)
	}
}

func (kv *kinematicVessel) step(dt float64, env []float64) {
	if dt <= 0 {
		return
	}
	s := &kv.state
	var e [EnvCount]float64
	copy(e[:], env)

	throttle := s[FieldThrottle]
	if s[FieldFuel] <= 0 {
		throttle = 0
	}

	target := throttle * kv.maxSpd
	if throttle < 0 {
		target *= 0.5
	}
	s[FieldSurge] += (target - s[FieldSurge]) * math.Min(1, dt/speedTimeConstant)
	s[FieldSway] -= s[FieldSway] * math.Min(1, dt*kv.swayDmp)

	yawTarget := defaultYawGain * (s[FieldRudderAngle] / kv.maxRud) * s[FieldSurge] / kv.length
	s[FieldYawRate] += (yawTarget - s[FieldYawRate]) * math.Min(1, dt/yawTimeConstant)
	s[FieldHeading] = util.WrapAngle(s[FieldHeading] + s[FieldYawRate]*dt)

	heel := -0.05 * s[FieldYawRate] * s[FieldSurge]
	prevRoll := s[FieldRoll]
	s[FieldRoll] += (heel - s[FieldRoll]) * math.Min(1, dt*kv.rollDmp)
	s[FieldRollRate] = (s[FieldRoll] - prevRoll) / dt

	prevPitch := s[FieldPitch]
	s[FieldPitch] -= s[FieldPitch] * math.Min(1, dt*kv.rollDmp)
	s[FieldPitchRate] = (s[FieldPitch] - prevPitch) / dt

	targetDepth := kv.draft * (1 + 0.5*s[FieldBallast])
	prevDepth := s[FieldZ]
	s[FieldZ] += (targetDepth - s[FieldZ]) * math.Min(1, dt)
	s[FieldHeave] = (s[FieldZ] - prevDepth) / dt

	hdg := s[FieldHeading]
	east := s[FieldSurge]*math.Sin(hdg) + s[FieldSway]*math.Cos(hdg) + e[EnvCurrentSpeed]*math.Sin(e[EnvCurrentDirection])
	north := s[FieldSurge]*math.Cos(hdg) - s[FieldSway]*math.Sin(hdg) + e[EnvCurrentSpeed]*math.Cos(e[EnvCurrentDirection])

	// world coordinates are web mercator, stretched by 1/cos(lat)
	scale := math.Cosh(s[FieldY] / mercatorRadius)
	s[FieldX] += east * dt * scale
	s[FieldY] += north * dt * scale

	s[FieldRPM] += (math.Abs(throttle)*defaultMaxRPM - s[FieldRPM]) * math.Min(1, dt/rpmTimeConstant)
	s[FieldFuel] = math.Max(0, s[FieldFuel]-math.Abs(throttle)*fullThrottleBurn*dt)
}

func withDefault(v, def float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return def
	}
	return v
}
