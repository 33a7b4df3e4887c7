package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/helmsync/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// World positions are EPSG:3857 metres and geodetic positions are EPSG:4326 degrees.
// Stored points are always 3857 so SQLite, which has no spatial awareness, can still
// scan them back from WKB.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// EarthRadius is the mean radius used for great-circle distances, in metres.
const EarthRadius = 6371008.8

var (
	toWorld    = wgs84.EPSG().Transform(4326, 3857)
	toGeodetic = wgs84.EPSG().Transform(3857, 4326)
)

// FromGeodetic builds a position from latitude/longitude and derives the world pair.
func FromGeodetic(lat, lon, depth float64) core.Position {
	x, y, _ := toWorld(lon, lat, 0)
	return core.Position{X: x, Y: y, Lat: lat, Lon: lon, Depth: depth}
}

// FromWorld builds a position from world x/y and derives latitude/longitude.
func FromWorld(x, y, depth float64) core.Position {
	lon, lat, _ := toGeodetic(x, y, 0)
	return core.Position{X: x, Y: y, Lat: lat, Lon: lon, Depth: depth}
}

// SyncFromWorld rederives Lat/Lon from X/Y.
func SyncFromWorld(p *core.Position) {
	*p = FromWorld(p.X, p.Y, p.Depth)
}

// SyncFromGeodetic rederives X/Y from Lat/Lon.
func SyncFromGeodetic(p *core.Position) {
	*p = FromGeodetic(p.Lat, p.Lon, p.Depth)
}

// Normalize picks the authoritative pair of an incoming position and derives the other.
// A position carrying non-zero Lat/Lon is taken as geodetic, anything else as world.
func Normalize(p core.Position) core.Position {
	if p.Lat != 0 || p.Lon != 0 {
		return FromGeodetic(p.Lat, p.Lon, p.Depth)
	}
	return FromWorld(p.X, p.Y, p.Depth)
}

// Distance returns the great-circle distance between two geodetic points in metres.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Between returns the great-circle distance between two positions in metres.
func Between(a, b core.Position) float64 {
	return Distance(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Point converts a position to a 3857 XYZ point for storage.
func Point(p core.Position) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Z:    p.Depth,
		Type: geom.DimXYZ,
	})
}

// FromPoint converts a stored 3857 point back to a position. An empty point
// yields the zero position.
func FromPoint(pt geom.Point) core.Position {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position{}
	}
	return FromWorld(c.X, c.Y, c.Z)
}

// PositionFromString parses "lon,lat" or "lon,lat,depth" into a position.
func PositionFromString(coords string) (core.Position, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Position{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	var depth float64
	if len(coordsSplit) > 2 {
		depth, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64)
		if err != nil {
			return core.Position{}, ErrInvalidCoordinates
		}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return core.Position{}, ErrInvalidCoordinates
	}
	return FromGeodetic(lat, lon, depth), nil
}
