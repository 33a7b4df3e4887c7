// Package clientloop advances one vessel's physics at a fixed rate and keeps
// the local UI store and the server eventually consistent with it.
package clientloop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/physics"
	"github.com/OCAP2/helmsync/internal/uistore"
	"github.com/OCAP2/helmsync/internal/util"
	"github.com/OCAP2/helmsync/pkg/core"
)

// StepsPerSecond is the fixed integration rate.
const StepsPerSecond = 60

// StepSeconds is the fixed step h.
const StepSeconds = 1.0 / StepsPerSecond

// the accumulator counts nanoseconds scaled by StepsPerSecond, so one step is
// exactly one second of these units and no rounding ever happens
const stepUnits = int64(time.Second)

// Uplink carries the local pose to the authority server.
type Uplink interface {
	SendPose(ctx context.Context, pose core.PoseUpdate) error
}

// WeatherSource supplies the environment for the next step.
type WeatherSource interface {
	Environment() physics.Environment
}

// StaticWeather is a WeatherSource that never changes.
type StaticWeather physics.Environment

func (w StaticWeather) Environment() physics.Environment { return physics.Environment(w) }

// Options tune the loop. Zero values select the defaults.
type Options struct {
	MaxFrameDelta      time.Duration // default 250ms
	PosePushInterval   time.Duration // default 200ms
	FuelAlarmThreshold float64       // default 0.10
	Coefficients       physics.Coefficients
	Hull               core.Hull
}

func (o *Options) setDefaults() {
	if o.MaxFrameDelta <= 0 {
		o.MaxFrameDelta = 250 * time.Millisecond
	}
	if o.PosePushInterval <= 0 {
		o.PosePushInterval = 200 * time.Millisecond
	}
	if o.FuelAlarmThreshold <= 0 {
		o.FuelAlarmThreshold = 0.10
	}
	if o.Hull.Mass == 0 {
		o.Hull = core.DefaultHull()
	}
}

// Dependencies holds all dependencies for a Loop.
type Dependencies struct {
	Bridge     *physics.Bridge
	Store      *uistore.Store
	Scheduler  Scheduler
	Uplink     Uplink
	Weather    WeatherSource
	LogManager *logging.SlogManager
	// OnFuelAlarm is called once each time fuel crosses below the threshold.
	OnFuelAlarm func(uistore.Snapshot)
}

// Loop owns one physics handle. Frame, ApplyControls, Teleport and
// SyncFromStore must run on the scheduler goroutine; use Post from elsewhere.
type Loop struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger

	handle   physics.Handle
	rem      int64
	lastTick time.Time
	lastPush time.Time

	goodPose physics.Pose
	goodVel  core.Velocity
	goodAng  core.AngularVelocity
	goodEng  physics.Engine

	fuelArmed bool
	anomalies int

	mu     sync.Mutex
	cancel func()
}

// New builds a loop. It does nothing until Initialize and Start are called.
func New(deps Dependencies, opts Options) *Loop {
	opts.setDefaults()
	if deps.Weather == nil {
		deps.Weather = StaticWeather{}
	}
	var logger *slog.Logger
	if deps.LogManager != nil {
		logger = deps.LogManager.Logger()
	} else {
		logger = slog.Default()
	}
	return &Loop{
		deps:      deps,
		opts:      opts,
		logger:    logger.With("component", "clientloop"),
		fuelArmed: true,
	}
}

// Initialize creates the physics handle from the current UI snapshot. A snapshot
// at rest is replaced by a clean zero start. If the module cannot create a
// vessel the loop stays inert until the next Initialize, Teleport or SyncFromStore.
func (l *Loop) Initialize() {
	snap := l.deps.Store.Snapshot()
	if snap.AtRest() {
		zero := core.Position{}
		l.deps.Store.Apply(uistore.Update{
			Position:        &zero,
			Velocity:        &core.Velocity{},
			AngularVelocity: &core.AngularVelocity{},
			Controls:        &core.Controls{},
		})
		snap = l.deps.Store.Snapshot()
	}
	l.recreate(l.paramsFrom(snap))
}

// Start installs the frame callback. Calling it again is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	l.lastTick = time.Time{}
	l.cancel = l.deps.Scheduler.Schedule(l.Frame)
}

// Stop cancels the frame callback. Calling it again is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
}

// Running reports whether a frame callback is installed.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Close stops the loop and destroys the handle.
func (l *Loop) Close() {
	l.Stop()
	l.deps.Bridge.Destroy(l.handle)
	l.handle = 0
}

// Active reports whether the loop currently owns a handle.
func (l *Loop) Active() bool {
	return l.handle != 0
}

// Frame is the scheduler callback.
func (l *Loop) Frame(now time.Time) {
	if l.lastTick.IsZero() {
		l.lastTick = now
		return
	}
	delta := now.Sub(l.lastTick)
	l.lastTick = now
	l.advance(now, delta)
}

// advance accumulates delta and runs whole steps. It returns the number of steps.
func (l *Loop) advance(now time.Time, delta time.Duration) int {
	if l.handle == 0 {
		l.rem = 0
		return 0
	}
	if delta > l.opts.MaxFrameDelta {
		delta = l.opts.MaxFrameDelta
	}
	if delta < 0 {
		delta = 0
	}

	l.rem += int64(delta) * StepsPerSecond
	steps := 0
	for l.rem >= stepUnits {
		l.updatePhysics(StepSeconds)
		l.rem -= stepUnits
		steps++
	}
	if steps > 0 {
		l.updateUIFromPhysics(now)
	}
	return steps
}

func (l *Loop) updatePhysics(dt float64) {
	env := l.deps.Weather.Environment()
	env.SeaState = physics.SeaStateFor(env.WindSpeed)

	l.handle = l.deps.Bridge.Step(l.handle, dt, env)

	pose := l.deps.Bridge.Pose(l.handle)
	bad := guard(&pose.Position.X, l.goodPose.Position.X) +
		guard(&pose.Position.Y, l.goodPose.Position.Y) +
		guard(&pose.Position.Z, l.goodPose.Position.Z) +
		guard(&pose.Orientation.Heading, l.goodPose.Orientation.Heading) +
		guard(&pose.Orientation.Roll, l.goodPose.Orientation.Roll) +
		guard(&pose.Orientation.Pitch, l.goodPose.Orientation.Pitch)
	if bad > 0 {
		l.anomalies++
		l.logger.Warn("Non-finite pose from physics step, keeping last good value", "fields", bad, "handle", l.handle)
	}
	l.goodPose = pose
}

func (l *Loop) updateUIFromPhysics(now time.Time) {
	vel := l.deps.Bridge.Velocity(l.handle)
	ang := l.deps.Bridge.AngularVelocity(l.handle)
	eng := l.deps.Bridge.Engine(l.handle)

	bad := guard(&vel.Surge, l.goodVel.Surge) +
		guard(&vel.Sway, l.goodVel.Sway) +
		guard(&vel.Heave, l.goodVel.Heave) +
		guard(&ang.Yaw, l.goodAng.Yaw) +
		guard(&ang.Roll, l.goodAng.Roll) +
		guard(&ang.Pitch, l.goodAng.Pitch) +
		guard(&eng.RPM, l.goodEng.RPM) +
		guard(&eng.Fuel, l.goodEng.Fuel)
	if bad > 0 {
		l.anomalies++
		l.logger.Warn("Non-finite telemetry from physics, keeping last good value", "fields", bad)
	}
	l.goodVel, l.goodAng, l.goodEng = vel, ang, eng

	p := l.goodPose
	pos := geo.FromWorld(p.Position.X, p.Position.Y, p.Position.Z)
	orient := p.Orientation

	u := uistore.Update{
		Position:        &pos,
		Orientation:     &orient,
		Velocity:        &vel,
		AngularVelocity: &ang,
		RPM:             &eng.RPM,
		Fuel:            &eng.Fuel,
		At:              now,
	}

	fired := false
	switch {
	case eng.Fuel < l.opts.FuelAlarmThreshold && l.fuelArmed:
		l.fuelArmed = false
		fired = true
		alarm := true
		u.FuelAlarm = &alarm
	case eng.Fuel >= l.opts.FuelAlarmThreshold && !l.fuelArmed:
		l.fuelArmed = true
		alarm := false
		u.FuelAlarm = &alarm
	}

	snap := l.deps.Store.Apply(u)
	if fired {
		l.logger.Warn("Fuel low", "vessel", snap.VesselID, "fuel", eng.Fuel)
		if l.deps.OnFuelAlarm != nil {
			l.deps.OnFuelAlarm(snap)
		}
	}

	if l.deps.Uplink == nil || snap.VesselID == "" {
		return
	}
	if !l.lastPush.IsZero() && now.Sub(l.lastPush) < l.opts.PosePushInterval {
		return
	}
	l.lastPush = now
	angCopy := ang
	err := l.deps.Uplink.SendPose(context.Background(), core.PoseUpdate{
		VesselID:        snap.VesselID,
		Position:        pos,
		Orientation:     orient,
		Velocity:        vel,
		AngularVelocity: &angCopy,
	})
	if err != nil {
		l.logger.Debug("Pose push failed", "error", err)
	}
}

// ApplyControls forwards controls to the physics module. It does not touch the
// UI store. Spectators and inert loops ignore it.
func (l *Loop) ApplyControls(c core.Controls) {
	if l.handle == 0 || l.deps.Store.Snapshot().Mode == core.UserModeSpectator {
		return
	}
	l.deps.Bridge.SetThrottle(l.handle, c.Throttle)
	l.deps.Bridge.SetRudder(l.handle, c.RudderAngle)
	l.deps.Bridge.SetBallast(l.handle, c.Ballast)
}

// Teleport rebuilds the handle at pos with all velocities zeroed.
func (l *Loop) Teleport(pos core.Position, orient core.Orientation) {
	pos = geo.Normalize(pos)
	zeroVel := core.Velocity{}
	zeroAng := core.AngularVelocity{}
	snap := l.deps.Store.Apply(uistore.Update{
		Position:        &pos,
		Orientation:     &orient,
		Velocity:        &zeroVel,
		AngularVelocity: &zeroAng,
	})
	l.recreate(l.paramsFrom(snap))
}

// SyncFromStore rebuilds the handle from the latest authoritative snapshot.
func (l *Loop) SyncFromStore() {
	l.recreate(l.paramsFrom(l.deps.Store.Snapshot()))
}

// Anomalies returns how many non-finite physics results were suppressed.
func (l *Loop) Anomalies() int {
	return l.anomalies
}

func (l *Loop) paramsFrom(s uistore.Snapshot) physics.Params {
	return physics.Params{
		Position:        s.Position.World(),
		Orientation:     s.Orientation,
		Velocity:        s.Velocity,
		AngularVelocity: s.AngularVelocity,
		Throttle:        s.Controls.Throttle,
		RudderAngle:     s.Controls.RudderAngle,
		Hull:            l.opts.Hull,
		Coefficients:    l.opts.Coefficients,
	}
}

func (l *Loop) recreate(p physics.Params) {
	l.deps.Bridge.Destroy(l.handle)
	l.handle = 0
	l.rem = 0

	h, err := l.deps.Bridge.Create(p)
	if err != nil {
		l.logger.Error("Failed to create physics vessel, simulation inert until next sync", "error", err)
		return
	}
	l.handle = h
	if s := l.deps.Store.Snapshot(); s.Controls.Ballast != 0 {
		l.deps.Bridge.SetBallast(h, s.Controls.Ballast)
	}
	l.goodPose = physics.Pose{Position: p.Position, Orientation: p.Orientation}
	l.goodVel = p.Velocity
	l.goodAng = p.AngularVelocity
	l.goodEng = physics.Engine{Fuel: 1}
}

// guard replaces a non-finite *v with good and returns 1 if it did.
func guard(v *float64, good float64) int {
	if util.Finite(*v) {
		return 0
	}
	*v = good
	return 1
}
