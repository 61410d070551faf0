package dither

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetNames(t *testing.T) {
	for p := PresetNone; p < presetCount; p++ {
		if p.String() == "" {
			t.Errorf("preset %d has empty name", p)
		}
	}

	if got := Preset(99).String(); got != "Preset(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestPresetCoefficientsAreCopies(t *testing.T) {
	c := Preset9FC.Coefficients()
	if len(c) != 9 {
		t.Fatalf("len = %d, want 9", len(c))
	}

	c[0] = 0
	if Preset9FC.Coefficients()[0] == 0 {
		t.Fatal("Coefficients must return a copy")
	}

	if PresetNone.Coefficients() != nil {
		t.Fatal("PresetNone should have no coefficients")
	}

	if Preset(-1).Coefficients() != nil {
		t.Fatal("unknown preset should have no coefficients")
	}
}

func TestDitherTypeString(t *testing.T) {
	if DitherTriangular.String() != "Triangular" {
		t.Errorf("String() = %q", DitherTriangular.String())
	}

	if DitherType(12).Valid() {
		t.Error("DitherType(12) should be invalid")
	}
}

func TestParsePreset(t *testing.T) {
	tests := []struct {
		name string
		want Preset
	}{
		{"none", PresetNone},
		{"EFB", PresetEFB},
		{"2sc", Preset2SC},
		{"3FC", Preset3FC},
		{"9fc", Preset9FC},
	}
	for _, tt := range tests {
		got, err := ParsePreset(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParsePreset("12FC")
	assert.Error(t, err)
}

func TestParseDitherType(t *testing.T) {
	for dt := DitherNone; dt < ditherTypeCount; dt++ {
		got, err := ParseDitherType(dt.String())
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}

	got, err := ParseDitherType("rectangular")
	require.NoError(t, err)
	assert.Equal(t, DitherRectangular, got)

	_, err = ParseDitherType("blue")
	assert.Error(t, err)
}
