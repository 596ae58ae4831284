package sim

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrUnknownPreset is returned by LoadPreset for names not in the catalog
var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a hand-tuned force matrix with the type count it was built for
type Preset struct {
	Name     string
	NumTypes int
	Forces   [][]float64
}

var presets = map[string]Preset{
	"Orbits": {
		Name:     "Orbits",
		NumTypes: 4,
		Forces: [][]float64{
			{0.0, -0.3, 0.4, -0.2},
			{0.5, 0.0, -0.2, 0.3},
			{-0.1, 0.4, 0.0, 0.2},
			{0.3, -0.2, 0.5, 0.0},
		},
	},
	"Chaos": {
		Name:     "Chaos",
		NumTypes: 5,
		Forces: [][]float64{
			{0.0, 0.4, -0.5, 0.2, -0.3},
			{-0.4, 0.0, 0.3, -0.4, 0.2},
			{0.5, -0.3, 0.0, 0.4, -0.3},
			{-0.2, 0.5, -0.3, 0.0, 0.3},
			{0.3, -0.2, 0.4, -0.4, 0.0},
		},
	},
	"Balance": {
		Name:     "Balance",
		NumTypes: 3,
		Forces: [][]float64{
			{0.0, -0.3, 0.3},
			{0.3, 0.0, -0.3},
			{-0.3, 0.3, 0.0},
		},
	},
	"Swirls": {
		Name:     "Swirls",
		NumTypes: 4,
		Forces: [][]float64{
			{0.0, 0.5, -0.4, 0.2},
			{-0.5, 0.0, 0.4, -0.3},
			{0.4, -0.4, 0.0, 0.3},
			{-0.2, 0.3, -0.3, 0.0},
		},
	},
	"Snakes": snakes(6),
}

// snakes builds a ring where each type chases the next and avoids the
// one after it and the one behind it
func snakes(n int) Preset {
	forces := make([][]float64, n)
	for i := range forces {
		forces[i] = make([]float64, n)
		forces[i][(i+1)%n] = 0.5
		forces[i][(i+2)%n] = -0.3
		forces[i][(i+n-1)%n] = -0.2
	}
	return Preset{Name: "Snakes", NumTypes: n, Forces: forces}
}

// PresetNames lists the catalog in a stable order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset returns the named preset
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, errors.Wrapf(ErrUnknownPreset, "%q", name)
	}
	return p, nil
}
