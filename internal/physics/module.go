package physics

import (
	"fmt"

	"github.com/OCAP2/helmsync/pkg/physmod"
)

// Handle is an opaque reference to a vessel inside a Module. Zero means none.
type Handle = physmod.Handle

// Module is the call contract of a physics unit. *physmod.Library satisfies it.
type Module interface {
	Create(params []float64) (Handle, error)
	Step(h Handle, dt float64, env []float64) Handle
	Get(h Handle, field int) float64
	SetThrottle(h Handle, v float64)
	SetRudder(h Handle, v float64)
	SetBallast(h Handle, v float64)
	Destroy(h Handle)
}

// ModuleKinematic selects the built-in pure Go module instead of a shared object.
const ModuleKinematic = "kinematic"

// Load opens the module named by path. ModuleKinematic returns a KinematicModule,
// anything else is treated as the path to a native shared object.
func Load(path string) (Module, error) {
	if path == ModuleKinematic {
		return NewKinematicModule(), nil
	}
	lib, err := physmod.Open(physmod.ResolvePath(path))
	if err != nil {
		return nil, fmt.Errorf("load physics module: %w", err)
	}
	return lib, nil
}
