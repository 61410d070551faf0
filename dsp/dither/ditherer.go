package dither

import (
	"fmt"

	"github.com/cwbudde/algo-kmeter/dsp/core"
)

// Ditherer holds one [Quantizer] per channel. Each channel carries its own
// error-feedback history, so channels never influence each other.
//
// A nil *Ditherer is valid and passes samples through unchanged.
type Ditherer struct {
	channels []*Quantizer
}

// NewDitherer builds a Ditherer for the given number of channels. All
// options apply to every channel; with [WithSeed], channel c is seeded
// with seed+c.
func NewDitherer(channels int, opts ...Option) (*Ditherer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("dither: channel count must be >= 1: %d", channels)
	}

	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	d := &Ditherer{channels: make([]*Quantizer, channels)}
	for ch := range d.channels {
		chCfg := cfg
		if cfg.seeded {
			chCfg.seed = cfg.seed + uint64(ch)
		}

		d.channels[ch] = newQuantizer(chCfg)
	}

	return d, nil
}

// Channels returns the number of channels.
func (d *Ditherer) Channels() int {
	if d == nil {
		return 0
	}
	return len(d.channels)
}

// BitDepth returns the target bit depth, or 0 for a nil Ditherer.
func (d *Ditherer) BitDepth() int {
	if d == nil {
		return 0
	}
	return d.channels[0].BitDepth()
}

// DitherType returns the dither noise type, or [DitherNone] for a nil
// Ditherer.
func (d *Ditherer) DitherType() DitherType {
	if d == nil {
		return DitherNone
	}
	return d.channels[0].DitherType()
}

// Preset returns the noise-shaping preset, or [PresetNone] for a nil
// Ditherer.
func (d *Ditherer) Preset() Preset {
	if d == nil {
		return PresetNone
	}
	return d.channels[0].Preset()
}

// Limit reports whether output is clipped to the bit-depth range.
func (d *Ditherer) Limit() bool {
	return d != nil && d.channels[0].Limit()
}

// Dither requantizes one sample of channel ch. Unknown channels and
// non-finite samples pass through unchanged.
func (d *Ditherer) Dither(ch int, sample float64) float64 {
	if d == nil || ch < 0 || ch >= len(d.channels) || !core.IsFinite(sample) {
		return sample
	}

	return d.channels[ch].ProcessSample(sample)
}

// ProcessBlock requantizes buf in place as channel ch.
func (d *Ditherer) ProcessBlock(ch int, buf []float64) {
	if d == nil || ch < 0 || ch >= len(d.channels) {
		return
	}

	d.channels[ch].ProcessInPlace(buf)
}

// Reset clears every channel's error-feedback history.
func (d *Ditherer) Reset() {
	if d == nil {
		return
	}

	for _, quant := range d.channels {
		quant.Reset()
	}
}
