// Package physmod loads the native vessel physics unit through the C ABI.
//
// The unit exports:
//
//	void*  vessel_create(const double* params, int n);
//	void*  vessel_step(void* h, double dt, const double* env, int n);
//	double vessel_get(void* h, int field);
//	void   vessel_set_throttle(void* h, double v);
//	void   vessel_set_rudder(void* h, double v);
//	void   vessel_set_ballast(void* h, double v);
//	void   vessel_destroy(void* h);
//
// vessel_step may return a different pointer than it was given; callers must
// adopt it for every later call.
package physmod

import (
	"errors"
	"path/filepath"
)

// Exported symbol names.
const (
	SymCreate      = "vessel_create"
	SymStep        = "vessel_step"
	SymGet         = "vessel_get"
	SymSetThrottle = "vessel_set_throttle"
	SymSetRudder   = "vessel_set_rudder"
	SymSetBallast  = "vessel_set_ballast"
	SymDestroy     = "vessel_destroy"
)

// DefaultLibraryName is looked up next to the running binary when no path is configured.
const DefaultLibraryName = "libvessel.so"

var (
	ErrLoad        = errors.New("physics module load failed")
	ErrCreate      = errors.New("physics module returned no vessel")
	ErrEmptyParams = errors.New("empty parameter vector")
	ErrUnsupported = errors.New("native physics modules require linux and cgo")
)

// Handle is an opaque reference to a vessel inside the native unit. Zero means none.
type Handle uintptr

// ResolvePath returns path if set, otherwise DefaultLibraryName in the directory
// of the running module.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if mod := GetModulePath(); mod != "" {
		return filepath.Join(filepath.Dir(mod), DefaultLibraryName)
	}
	return DefaultLibraryName
}
