// pkg/core/types.go
package core

import "math"

// Position3D is a plain world-frame coordinate without GIS dependencies.
type Position3D struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
	Z float64 `json:"z"` // depth below the surface, positive down
}

// Position is a vessel location kept in both world and geodetic form.
// X/Y are EPSG:3857 metres, Lat/Lon are EPSG:4326 degrees. Both pairs describe
// the same point; whichever was written last is the source, the other is derived.
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Depth float64 `json:"z"`
}

// World returns the world-frame part of the position.
func (p Position) World() Position3D {
	return Position3D{X: p.X, Y: p.Y, Z: p.Depth}
}

// Orientation is expressed in radians. Heading 0 points north and grows clockwise.
type Orientation struct {
	Heading float64 `json:"heading"`
	Roll    float64 `json:"roll"`
	Pitch   float64 `json:"pitch"`
}

// Velocity is body-frame linear velocity in m/s.
type Velocity struct {
	Surge float64 `json:"surge"`
	Sway  float64 `json:"sway"`
	Heave float64 `json:"heave"`
}

// Horizontal returns the body-frame speed over the water surface.
func (v Velocity) Horizontal() float64 {
	return math.Hypot(v.Surge, v.Sway)
}

// AngularVelocity is expressed in rad/s.
type AngularVelocity struct {
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// Controls are the operator inputs of a vessel.
type Controls struct {
	Throttle    float64 `json:"throttle"`    // [-1, 1]
	RudderAngle float64 `json:"rudderAngle"` // radians, [-max, max]
	Ballast     float64 `json:"ballast"`     // [0, 1]
}
