package dither

import (
	"fmt"
	"strings"
)

const (
	defaultBitDepth   = 24
	defaultDitherType = DitherTriangular
	defaultPreset     = PresetEFB
	minBitDepth       = 1
	maxBitDepth       = 32
)

type config struct {
	bitDepth   int
	ditherType DitherType
	limit      bool
	preset     Preset
	seed       uint64
	seeded     bool
}

func defaultConfig() config {
	return config{
		bitDepth:   defaultBitDepth,
		ditherType: defaultDitherType,
		preset:     defaultPreset,
	}
}

func applyOptions(opts []Option) (config, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Option configures a [Quantizer] or [Ditherer].
type Option func(*config) error

// WithBitDepth sets the target bit depth for quantization (1–32, default 24).
func WithBitDepth(bits int) Option {
	return func(cfg *config) error {
		if bits < minBitDepth || bits > maxBitDepth {
			return fmt.Errorf("dither: bit depth must be in [%d, %d]: %d", minBitDepth, maxBitDepth, bits)
		}

		cfg.bitDepth = bits

		return nil
	}
}

// WithDitherType sets the dither noise PDF (default [DitherTriangular]).
func WithDitherType(dt DitherType) Option {
	return func(cfg *config) error {
		if !dt.Valid() {
			return fmt.Errorf("dither: invalid dither type: %d", dt)
		}

		cfg.ditherType = dt

		return nil
	}
}

// WithLimit enables or disables clipping to the bit-depth range (default
// false, so gain above full scale stays visible to the meters).
func WithLimit(enabled bool) Option {
	return func(cfg *config) error {
		cfg.limit = enabled
		return nil
	}
}

// WithFIRPreset selects the error-feedback coefficient [Preset] (default
// [PresetEFB]).
func WithFIRPreset(p Preset) Option {
	return func(cfg *config) error {
		if !p.Valid() {
			return fmt.Errorf("dither: invalid preset: %d", p)
		}

		cfg.preset = p

		return nil
	}
}

// WithSeed makes the noise sequence reproducible. A [Ditherer] seeds
// channel c with seed+c.
func WithSeed(seed uint64) Option {
	return func(cfg *config) error {
		cfg.seed = seed
		cfg.seeded = true
		return nil
	}
}

// ParseDitherType looks up a dither type by name, ignoring case.
func ParseDitherType(name string) (DitherType, error) {
	for dt := DitherNone; dt < ditherTypeCount; dt++ {
		if strings.EqualFold(name, ditherTypeNames[dt]) {
			return dt, nil
		}
	}

	return 0, fmt.Errorf("dither: unknown dither type %q", name)
}

// ParsePreset looks up a noise-shaping preset by name, ignoring case.
func ParsePreset(name string) (Preset, error) {
	for p := PresetNone; p < presetCount; p++ {
		if strings.EqualFold(name, presetNames[p]) {
			return p, nil
		}
	}

	return 0, fmt.Errorf("dither: unknown noise-shaping preset %q", name)
}
