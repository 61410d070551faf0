// Package ballistics turns per-chunk peak, RMS and overflow measurements
// into meter readings.
//
// Peaks rise instantly and fall at a fixed rate in dB per second. A peak
// hold marker stays put for a hold interval and then falls at its own,
// slower rate toward the peak. RMS readings follow a one-pole
// attack/release filter in the dB domain. All decay is scaled by the
// elapsed chunk duration, so readings do not depend on chunk size or
// sample rate.
//
// A crest factor (integer dB) is subtracted from every conversion. This
// selects between peak-referenced (crest factor 0) and RMS-referenced
// scales such as K-20 (crest factor 20).
package ballistics
