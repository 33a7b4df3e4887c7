package geo

import "github.com/OCAP2/helmsync/pkg/core"

// Geofence is a circular trigger region around a geodetic centre.
type Geofence struct {
	Lat    float64
	Lon    float64
	Radius float64 // metres
}

// Contains reports whether p lies inside the fence. The boundary counts as inside.
func (g Geofence) Contains(p core.Position) bool {
	return Distance(g.Lat, g.Lon, p.Lat, p.Lon) <= g.Radius
}

// PortFence returns the geofence of a registered port.
func PortFence(p core.Port) Geofence {
	return Geofence{Lat: p.Lat, Lon: p.Lon, Radius: p.Radius}
}

// NearestPort returns the closest port whose fence contains pos.
func NearestPort(ports []core.Port, pos core.Position) (core.Port, bool) {
	best := -1
	bestDist := 0.0
	for i, p := range ports {
		d := Distance(p.Lat, p.Lon, pos.Lat, pos.Lon)
		if d > p.Radius {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return core.Port{}, false
	}
	return ports[best], true
}
