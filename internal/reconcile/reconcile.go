// Package reconcile merges client-reported poses into the authoritative vessel
// record and repairs implausible velocity reports.
package reconcile

import (
	"errors"
	"math"
	"time"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/util"
	"github.com/OCAP2/helmsync/pkg/core"
)

// ErrInvalidPose is returned for updates carrying non-finite numbers.
var ErrInvalidPose = errors.New("pose contains non-finite values")

// Rules configure the plausibility check.
type Rules struct {
	StaleAfter       time.Duration
	DerivedSpeedMin  float64
	ReportedSpeedMax float64
}

// DefaultRules returns the stock thresholds.
func DefaultRules() Rules {
	return Rules{
		StaleAfter:       100 * time.Millisecond,
		DerivedSpeedMin:  0.05,
		ReportedSpeedMax: 0.01,
	}
}

// Result describes what Merge did.
type Result struct {
	// Corrected is set when the reported velocity was replaced.
	Corrected    bool
	DerivedSpeed float64
	Elapsed      time.Duration
}

// Validate rejects updates with NaN or Inf anywhere.
func Validate(u core.PoseUpdate) error {
	vals := []float64{
		u.Position.X, u.Position.Y, u.Position.Lat, u.Position.Lon, u.Position.Depth,
		u.Orientation.Heading, u.Orientation.Roll, u.Orientation.Pitch,
		u.Velocity.Surge, u.Velocity.Sway, u.Velocity.Heave,
	}
	if u.AngularVelocity != nil {
		vals = append(vals, u.AngularVelocity.Yaw, u.AngularVelocity.Roll, u.AngularVelocity.Pitch)
	}
	for _, v := range vals {
		if !util.Finite(v) {
			return ErrInvalidPose
		}
	}
	return nil
}

// Merge writes u into v at now. When more than StaleAfter has passed since
// the previous update, the vessel visibly moved faster than DerivedSpeedMin
// and the client still reports less than ReportedSpeedMax, the body-frame
// velocity is replaced by the one derived from the displacement.
func Merge(v *core.Vessel, u core.PoseUpdate, now time.Time, r Rules) Result {
	prev := v.Position
	prevAt := v.LastUpdate
	next := geo.Normalize(u.Position)

	v.Position = next
	v.Orientation = core.Orientation{
		Heading: util.WrapAngle(u.Orientation.Heading),
		Roll:    u.Orientation.Roll,
		Pitch:   u.Orientation.Pitch,
	}
	v.Velocity = u.Velocity
	if u.AngularVelocity != nil {
		v.AngularVelocity = *u.AngularVelocity
	}
	v.LastUpdate = now

	var res Result
	if prevAt.IsZero() {
		return res
	}
	res.Elapsed = now.Sub(prevAt)
	if res.Elapsed <= r.StaleAfter {
		return res
	}

	dist := geo.Between(prev, next)
	res.DerivedSpeed = dist / res.Elapsed.Seconds()
	if res.DerivedSpeed > r.DerivedSpeedMin && u.Velocity.Horizontal() < r.ReportedSpeedMax {
		v.Velocity = BodyVelocity(prev, next, res.DerivedSpeed, v.Orientation.Heading, u.Velocity.Heave)
		res.Corrected = true
	}
	return res
}

// BodyVelocity projects a displacement from a to b travelled at speed onto
// the body frame of a vessel with the given heading. Web Mercator is
// conformal, so the world-frame direction equals the true bearing.
func BodyVelocity(a, b core.Position, speed, heading, heave float64) core.Velocity {
	dx, dy := b.X-a.X, b.Y-a.Y
	n := math.Hypot(dx, dy)
	if n == 0 {
		return core.Velocity{Heave: heave}
	}
	east, north := speed*dx/n, speed*dy/n
	sin, cos := math.Sincos(heading)
	return core.Velocity{
		Surge: east*sin + north*cos,
		Sway:  east*cos - north*sin,
		Heave: heave,
	}
}
