package physics

import "sort"

// Environment is the weather acting on a vessel during one step.
// WindDirection is where the wind blows from, CurrentDirection is where the
// current flows to. Both are radians clockwise from north.
type Environment struct {
	WindSpeed        float64 `json:"windSpeed" yaml:"windSpeed"`
	WindDirection    float64 `json:"windDirection" yaml:"windDirection"`
	CurrentSpeed     float64 `json:"currentSpeed" yaml:"currentSpeed"`
	CurrentDirection float64 `json:"currentDirection" yaml:"currentDirection"`
	SeaState         float64 `json:"seaState" yaml:"seaState"`
}

// Vector flattens the environment into the layout expected by vessel_step.
func (e Environment) Vector() []float64 {
	v := make([]float64, EnvCount)
	v[EnvWindSpeed] = e.WindSpeed
	v[EnvWindDirection] = e.WindDirection
	v[EnvCurrentSpeed] = e.CurrentSpeed
	v[EnvCurrentDirection] = e.CurrentDirection
	v[EnvSeaState] = e.SeaState
	return v
}

// upper wind speed bound (m/s) of each Douglas sea state
var seaStateBounds = []float64{0.3, 1.6, 3.4, 5.5, 8.0, 10.8, 13.9, 17.2, 20.8}

// SeaStateFor maps wind speed to a sea state between 0 and 9. It never decreases
// as wind speed grows.
func SeaStateFor(windSpeed float64) float64 {
	if windSpeed < 0 {
		windSpeed = 0
	}
	return float64(sort.SearchFloat64s(seaStateBounds, windSpeed))
}
