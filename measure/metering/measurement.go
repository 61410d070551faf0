package metering

import "github.com/cwbudde/algo-kmeter/dsp/buffer"

// ChannelMeasurement is the raw analysis of one chunk of one channel.
type ChannelMeasurement struct {
	Peak      float64
	RMS       float64
	Overflows int
	Seconds   float64
}

// Measure analyses length samples of channel ch, ending preDelay samples
// before the cursor's anchor.
func Measure(cur buffer.Cursor, ch, length, preDelay int, seconds float64) ChannelMeasurement {
	return ChannelMeasurement{
		Peak:      cur.Magnitude(ch, length, preDelay),
		RMS:       cur.RMSLevel(ch, length, preDelay),
		Overflows: cur.Overflows(ch, length, preDelay, OverflowThreshold),
		Seconds:   seconds,
	}
}
