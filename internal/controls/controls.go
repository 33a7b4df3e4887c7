// Package controls normalises operator inputs before they reach a vessel
// record: range clamping, the failure/damage limiter and the departure rule.
package controls

import (
	"errors"
	"math"

	"github.com/OCAP2/helmsync/internal/util"
	"github.com/OCAP2/helmsync/pkg/core"
)

// ErrInsufficientFunds is returned when a user without credits tries to leave port.
var ErrInsufficientFunds = errors.New("insufficient funds, refuse to sail")

// Rules tune the limiter and the departure check.
type Rules struct {
	// DepartureThrottle is the |throttle| below which a vessel counts as stopped.
	DepartureThrottle float64
	// DamageThreshold is the damage state under which DamageThrottleLimit applies.
	DamageThreshold     float64
	DamageThrottleLimit float64
}

// DefaultRules returns the stock limiter settings.
func DefaultRules() Rules {
	return Rules{
		DepartureThrottle:   0.01,
		DamageThreshold:     0.3,
		DamageThrottleLimit: 0.5,
	}
}

// Patch is a partial control update; nil fields keep the current value.
type Patch struct {
	Throttle    *float64
	RudderAngle *float64
	Ballast     *float64
}

// Apply returns cur with the set fields of p replaced. Non-finite values are ignored.
func (p Patch) Apply(cur core.Controls) core.Controls {
	if p.Throttle != nil && util.Finite(*p.Throttle) {
		cur.Throttle = *p.Throttle
	}
	if p.RudderAngle != nil && util.Finite(*p.RudderAngle) {
		cur.RudderAngle = *p.RudderAngle
	}
	if p.Ballast != nil && util.Finite(*p.Ballast) {
		cur.Ballast = *p.Ballast
	}
	return cur
}

// Clamp forces c into throttle [-1,1], rudder [-max,max] and ballast [0,1].
func Clamp(c core.Controls, hull core.Hull) core.Controls {
	limit := hull.RudderLimit()
	return core.Controls{
		Throttle:    util.Clamp(c.Throttle, -1, 1),
		RudderAngle: util.Clamp(c.RudderAngle, -limit, limit),
		Ballast:     util.Clamp(c.Ballast, 0, 1),
	}
}

// Limit caps c by the vessel's health. Throttle is scaled down to the failure
// state and further to DamageThrottleLimit on a badly damaged hull; rudder
// travel shrinks with the failure state.
func Limit(c core.Controls, v *core.Vessel, r Rules) core.Controls {
	failure := util.Clamp(util.FiniteOr(v.FailureState, 1), 0, 1)
	damage := util.Clamp(util.FiniteOr(v.DamageState, 1), 0, 1)

	throttleCap := failure
	if damage < r.DamageThreshold {
		throttleCap = math.Min(throttleCap, r.DamageThrottleLimit)
	}
	rudderCap := v.Hull.RudderLimit() * failure

	c.Throttle = util.Clamp(c.Throttle, -throttleCap, throttleCap)
	c.RudderAngle = util.Clamp(c.RudderAngle, -rudderCap, rudderCap)
	return c
}

// Normalize applies Clamp then Limit.
func Normalize(c core.Controls, v *core.Vessel, r Rules) core.Controls {
	return Limit(Clamp(c, v.Hull), v, r)
}

// IsDeparture reports whether throttle moves from stopped to running while moored.
func IsDeparture(prev, next float64, moored bool, r Rules) bool {
	return moored && math.Abs(prev) < r.DepartureThrottle && math.Abs(next) >= r.DepartureThrottle
}

// CheckDeparture returns ErrInsufficientFunds when the change from prev to
// next is a departure and the user has no credits.
func CheckDeparture(prev, next core.Controls, moored bool, credits int64, r Rules) error {
	if IsDeparture(prev.Throttle, next.Throttle, moored, r) && credits <= 0 {
		return ErrInsufficientFunds
	}
	return nil
}
