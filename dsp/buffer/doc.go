// Package buffer holds the sample storage used between the real-time
// audio callback and the metering consumer.
//
// [Ring] is a fixed-capacity multichannel ring with a single atomic write
// counter. The producer calls [Ring.AddSamples] from the audio callback;
// the consumer reads completed history through a [Cursor] anchored at an
// absolute stream position. Chunk boundaries are derived from the write
// counter, so samples carry over between chunks exactly no matter how the
// host splits its blocks.
//
// [Buffer] is a reusable multichannel block, and [Pool] recycles them.
package buffer
