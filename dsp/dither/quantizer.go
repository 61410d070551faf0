package dither

import (
	"math"
	"math/rand/v2"

	"github.com/cwbudde/algo-kmeter/dsp/core"
)

// Quantizer requantizes a single stream to a target bit depth with
// dither noise and error-feedback noise shaping.
type Quantizer struct {
	bitDepth   int
	ditherType DitherType
	preset     Preset
	limit      bool
	shaper     NoiseShaper
	rng        *rand.Rand

	// derived from bitDepth
	bitMul  float64
	bitDiv  float64
	limitLo int64
	limitHi int64
}

// NewQuantizer creates a new Quantizer. The default configuration is:
// 24-bit, triangular dither, no limiting, first-order error feedback
// ([PresetEFB]).
func NewQuantizer(opts ...Option) (*Quantizer, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	return newQuantizer(cfg), nil
}

func newQuantizer(cfg config) *Quantizer {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	if cfg.seeded {
		rng = rand.New(rand.NewPCG(cfg.seed, 0))
	}

	quant := &Quantizer{
		bitDepth:   cfg.bitDepth,
		ditherType: cfg.ditherType,
		preset:     cfg.preset,
		limit:      cfg.limit,
		shaper:     NewFIRShaper(cfg.preset.Coefficients()),
		rng:        rng,
	}
	quant.updateDerived()

	return quant
}

func (q *Quantizer) updateDerived() {
	q.bitMul = math.Exp2(float64(q.bitDepth - 1))
	q.bitDiv = 1.0 / q.bitMul
	q.limitLo = -int64(q.bitMul)
	q.limitHi = int64(q.bitMul) - 1
}

// ProcessInteger quantizes the input (full scale is ±1) to an integer
// step of the target bit depth.
func (q *Quantizer) ProcessInteger(input float64) int64 {
	// 1. Scale to integer range.
	scaled := q.bitMul * input

	// 2. Subtract weighted past errors.
	shaped := q.shaper.Shape(scaled)

	// 3. Add dither and round.
	result := q.quantize(shaped)

	// 4. Feed the rounding error forward; clipping is not shaped.
	q.shaper.RecordError(float64(result) - shaped)

	if q.limit {
		result = max(q.limitLo, min(q.limitHi, result))
	}

	return result
}

// ProcessSample quantizes the input and returns it rescaled to full
// scale ±1.
func (q *Quantizer) ProcessSample(input float64) float64 {
	return float64(q.ProcessInteger(input)) * q.bitDiv
}

// ProcessInPlace quantizes each sample in buf in place. Non-finite
// samples are left untouched and do not disturb the shaper.
func (q *Quantizer) ProcessInPlace(buf []float64) {
	for idx, val := range buf {
		if core.IsFinite(val) {
			buf[idx] = q.ProcessSample(val)
		}
	}
}

// Reset clears the noise shaper history.
func (q *Quantizer) Reset() {
	q.shaper.Reset()
}

// ditherAmplitude is the dither noise amplitude in LSB.
const ditherAmplitude = 1.0

// quantize adds dither noise per the configured type and rounds to the
// nearest step, which keeps the mean quantization error at zero.
func (q *Quantizer) quantize(input float64) int64 {
	var noise float64

	switch q.ditherType {
	case DitherRectangular:
		noise = ditherAmplitude * (q.rng.Float64()*2 - 1)
	case DitherTriangular:
		noise = ditherAmplitude * (q.rng.Float64() - q.rng.Float64())
	case DitherGaussian:
		noise = ditherAmplitude * q.rng.NormFloat64()
	}

	return int64(math.Floor(input + noise + 0.5))
}

// BitDepth returns the current target bit depth.
func (q *Quantizer) BitDepth() int { return q.bitDepth }

// DitherType returns the current dither noise type.
func (q *Quantizer) DitherType() DitherType { return q.ditherType }

// Preset returns the noise-shaping preset.
func (q *Quantizer) Preset() Preset { return q.preset }

// Limit returns whether output limiting is enabled.
func (q *Quantizer) Limit() bool { return q.limit }
