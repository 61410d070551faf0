package dither

import "fmt"

// Preset identifies a predefined FIR error-feedback coefficient set.
type Preset int

const (
	PresetNone Preset = iota // No shaping
	PresetEFB                // Simple error feedback, 1st order (default)
	Preset2SC                // Simple 2nd-order highpass
	Preset3FC                // F-weighted, 3rd order
	Preset9FC                // F-weighted, 9th order

	presetCount // sentinel
)

var presetNames = [presetCount]string{"None", "EFB", "2SC", "3FC", "9FC"}

// String returns the name of the preset.
func (p Preset) String() string {
	if p.Valid() {
		return presetNames[p]
	}
	return fmt.Sprintf("Preset(%d)", p)
}

// Valid reports whether p is a known preset.
func (p Preset) Valid() bool {
	return p >= 0 && p < presetCount
}

// Coefficients returns a copy of the coefficients for this preset.
// Returns nil for PresetNone and for unknown presets.
func (p Preset) Coefficients() []float64 {
	if !p.Valid() || len(presetCoeffs[p]) == 0 {
		return nil
	}

	out := make([]float64, len(presetCoeffs[p]))
	copy(out, presetCoeffs[p])

	return out
}

var presetCoeffs = [presetCount][]float64{
	PresetNone: nil,
	PresetEFB:  {1},
	Preset2SC:  {1.0, -0.5},
	Preset3FC:  {1.623, -0.982, 0.109},
	Preset9FC: {
		2.412, -3.370, 3.937, -4.174, 3.353,
		-2.205, 1.281, -0.569, 0.0847,
	},
}
