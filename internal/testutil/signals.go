package testutil

import (
	"math"
	"math/rand/v2"
)

// DeterministicSine generates a sine wave starting at phase 0.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates uniform white noise in [-amplitude,
// amplitude) with a fixed seed.
func DeterministicNoise(seed uint64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewPCG(seed, 0))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Ramp returns start, start+1, ... as float64, which makes sample
// positions visible after a round trip through a buffer.
func Ramp(start, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = float64(start + i)
	}
	return out
}

// Block returns a channel-major block holding an independent copy of
// signal in every channel.
func Block(channels int, signal []float64) [][]float64 {
	block := make([][]float64, channels)
	for ch := range block {
		block[ch] = append([]float64(nil), signal...)
	}
	return block
}
