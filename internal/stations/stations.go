// Package stations manages exclusive helm and engine claims on a vessel.
//
// Each station is either free or held by exactly one crew member. A claim
// only succeeds from free; the holder re-claiming is a no-op. Release,
// disconnect and admin overrides return the station to free, so ownership is
// never handed over directly.
package stations

import (
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/helmsync/pkg/core"
)

var (
	ErrUnknownStation = errors.New("unknown station")
	ErrNotCrew        = errors.New("not a crew member")
	ErrNotHolder      = errors.New("station held by another user")
)

// HeldError is returned when a claim hits a station someone else holds.
type HeldError struct {
	VesselID string
	Station  core.Station
	Holder   string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s on vessel %s is held by %s", e.Station, e.VesselID, e.Holder)
}

// Claim gives station to userID if it is free. changed is false when userID
// already held it.
func Claim(v *core.Vessel, station core.Station, userID string, now time.Time) (changed bool, err error) {
	if !station.Valid() {
		return false, ErrUnknownStation
	}
	if !v.HasCrew(userID) {
		return false, ErrNotCrew
	}

	switch holder := v.Holder(station); holder {
	case userID:
		return false, nil
	case "":
		set(v, station, userID, now)
		return true, nil
	default:
		return false, &HeldError{VesselID: v.ID, Station: station, Holder: holder}
	}
}

// Release frees station if userID holds it. Releasing a free station is a no-op.
func Release(v *core.Vessel, station core.Station, userID string) (changed bool, err error) {
	if !station.Valid() {
		return false, ErrUnknownStation
	}

	switch holder := v.Holder(station); holder {
	case "":
		return false, nil
	case userID:
		set(v, station, "", time.Time{})
		return true, nil
	default:
		return false, ErrNotHolder
	}
}

// ForceRelease frees station regardless of holder and returns who held it.
func ForceRelease(v *core.Vessel, station core.Station) string {
	prev := v.Holder(station)
	if prev != "" {
		set(v, station, "", time.Time{})
	}
	return prev
}

// ForceAssign frees station and claims it for userID, adding userID to the crew.
func ForceAssign(v *core.Vessel, station core.Station, userID string, now time.Time) (prev string, err error) {
	if !station.Valid() {
		return "", ErrUnknownStation
	}
	prev = ForceRelease(v, station)
	v.AddCrew(userID)
	_, err = Claim(v, station, userID, now)
	return prev, err
}

// ReleaseAll frees every station userID holds and returns them.
func ReleaseAll(v *core.Vessel, userID string) []core.Station {
	var released []core.Station
	for _, st := range []core.Station{core.StationHelm, core.StationEngine} {
		if userID != "" && v.Holder(st) == userID {
			set(v, st, "", time.Time{})
			released = append(released, st)
		}
	}
	return released
}

// Unheld reports whether neither station is held.
func Unheld(v *core.Vessel) bool {
	return v.HelmUserID == "" && v.EngineUserID == ""
}

func set(v *core.Vessel, station core.Station, userID string, at time.Time) {
	switch station {
	case core.StationHelm:
		v.HelmUserID, v.HelmClaimedAt = userID, at
	case core.StationEngine:
		v.EngineUserID, v.EngineClaimedAt = userID, at
	}
}
