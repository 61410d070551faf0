// Package dither provides bit-depth quantization with dither noise and
// error-feedback noise shaping.
//
// A [Quantizer] handles a single stream. A [Ditherer] owns one Quantizer
// per channel and is what a processing path uses when it applies digital
// gain: every output sample is requantized to the target bit depth so the
// quantization error stays decorrelated from the signal.
//
// Quantizers are deterministic when built with [WithSeed]; otherwise they
// draw their seed from the runtime's random source. [ParseDitherType] and
// [ParsePreset] map user-facing names to options.
package dither
