//go:build linux && cgo

package physmod

/*
#cgo linux LDFLAGS: -ldl

#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

typedef void*  (*vessel_create_fn)(const double*, int);
typedef void*  (*vessel_step_fn)(void*, double, const double*, int);
typedef double (*vessel_get_fn)(void*, int);
typedef void   (*vessel_set_fn)(void*, double);
typedef void   (*vessel_destroy_fn)(void*);

static void* call_create(void* f, const double* params, int n) {
    return ((vessel_create_fn)f)(params, n);
}

static void* call_step(void* f, void* h, double dt, const double* env, int n) {
    return ((vessel_step_fn)f)(h, dt, env, n);
}

static double call_get(void* f, void* h, int field) {
    return ((vessel_get_fn)f)(h, field);
}

static void call_set(void* f, void* h, double v) {
    ((vessel_set_fn)f)(h, v);
}

static void call_destroy(void* f, void* h) {
    ((vessel_destroy_fn)f)(h);
}

char* GetModulePath() {
    Dl_info dl_info;
    if (dladdr((void*)GetModulePath, &dl_info) == 0 || dl_info.dli_fname == NULL) {
        return NULL;
    }
    return strdup(dl_info.dli_fname);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// Library is a loaded native physics unit. Its functions are safe to call from
// any goroutine, but a single Handle must only be used by one goroutine at a time.
type Library struct {
	path string

	mu sync.Mutex
	dl unsafe.Pointer

	create      unsafe.Pointer
	step        unsafe.Pointer
	get         unsafe.Pointer
	setThrottle unsafe.Pointer
	setRudder   unsafe.Pointer
	setBallast  unsafe.Pointer
	destroy     unsafe.Pointer
}

// Open loads the shared object at path and resolves every exported symbol.
func Open(path string) (*Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	dl := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if dl == nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrLoad, path, C.GoString(C.dlerror()))
	}

	lib := &Library{path: path, dl: dl}
	syms := []struct {
		name string
		dst  *unsafe.Pointer
	}{
		{SymCreate, &lib.create},
		{SymStep, &lib.step},
		{SymGet, &lib.get},
		{SymSetThrottle, &lib.setThrottle},
		{SymSetRudder, &lib.setRudder},
		{SymSetBallast, &lib.setBallast},
		{SymDestroy, &lib.destroy},
	}
	for _, s := range syms {
		cname := C.CString(s.name)
		ptr := C.dlsym(dl, cname)
		C.free(unsafe.Pointer(cname))
		if ptr == nil {
			C.dlclose(dl)
			return nil, fmt.Errorf("%w: %s: missing symbol %s", ErrLoad, path, s.name)
		}
		*s.dst = ptr
	}
	return lib, nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Create builds a vessel from a flat parameter vector.
func (l *Library) Create(params []float64) (Handle, error) {
	if len(params) == 0 {
		return 0, ErrEmptyParams
	}
	h := C.call_create(l.create, (*C.double)(unsafe.Pointer(&params[0])), C.int(len(params)))
	if h == nil {
		return 0, ErrCreate
	}
	return Handle(uintptr(h)), nil
}

// Step advances the vessel by dt seconds. The returned handle replaces h.
func (l *Library) Step(h Handle, dt float64, env []float64) Handle {
	var envPtr *C.double
	if len(env) > 0 {
		envPtr = (*C.double)(unsafe.Pointer(&env[0]))
	}
	next := C.call_step(l.step, h.ptr(), C.double(dt), envPtr, C.int(len(env)))
	if next == nil {
		return h
	}
	return Handle(uintptr(next))
}

// Get reads one output field.
func (l *Library) Get(h Handle, field int) float64 {
	return float64(C.call_get(l.get, h.ptr(), C.int(field)))
}

func (l *Library) SetThrottle(h Handle, v float64) {
	C.call_set(l.setThrottle, h.ptr(), C.double(v))
}

func (l *Library) SetRudder(h Handle, v float64) {
	C.call_set(l.setRudder, h.ptr(), C.double(v))
}

func (l *Library) SetBallast(h Handle, v float64) {
	C.call_set(l.setBallast, h.ptr(), C.double(v))
}

// Destroy releases the vessel behind h.
func (l *Library) Destroy(h Handle) {
	if h == 0 {
		return
	}
	C.call_destroy(l.destroy, h.ptr())
}

// Close unloads the shared object. Handles created by it become invalid.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dl == nil {
		return nil
	}
	if C.dlclose(l.dl) != 0 {
		return fmt.Errorf("dlclose %s: %s", l.path, C.GoString(C.dlerror()))
	}
	l.dl = nil
	return nil
}

func (h Handle) ptr() unsafe.Pointer {
	return unsafe.Pointer(uintptr(h)) //nolint:govet // handle points into C memory
}

// GetModulePath returns the absolute path of the binary or shared object this runtime was loaded from.
func GetModulePath() string {
	modPath := C.GetModulePath()
	if modPath == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(modPath))
	return C.GoString(modPath)
}
