//go:build !linux || !cgo

package physmod

// Library is unavailable on this platform; Open always fails.
type Library struct{}

func Open(path string) (*Library, error) { return nil, ErrUnsupported }

func (l *Library) Path() string                                    { return "" }
func (l *Library) Create(params []float64) (Handle, error)         { return 0, ErrUnsupported }
func (l *Library) Step(h Handle, dt float64, env []float64) Handle { return h }
func (l *Library) Get(h Handle, field int) float64                 { return 0 }
func (l *Library) SetThrottle(h Handle, v float64)                 {}
func (l *Library) SetRudder(h Handle, v float64)                   {}
func (l *Library) SetBallast(h Handle, v float64)                  {}
func (l *Library) Destroy(h Handle)                                {}
func (l *Library) Close() error                                    { return nil }

// GetModulePath is not available without cgo.
func GetModulePath() string { return "" }
