// Package metering wires the sample ring, the dithering stage and the meter
// ballistics into a two-sided pipeline.
//
// The producer side, [Pipeline.Process], is called from the audio callback.
// It lets the active [Source] fill or modify the block, applies digital
// gain followed by dithering when mix mode is on, and appends the block to
// the ring. It never blocks, never takes a lock and never allocates.
//
// The consumer side, [Pipeline.Drain] or the [Pipeline.Run] loop, analyses
// every completed chunk half a chunk behind the newest write, updates the
// ballistics and publishes an immutable [ballistics.Snapshot].
//
// File validation swaps a [FilePlayer] in as the source and hands every
// snapshot to a [Reporter].
package metering
