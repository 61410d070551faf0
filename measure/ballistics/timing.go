package ballistics

import (
	"fmt"
	"math"
	"time"
)

// Timing holds the ballistic constants of a meter.
type Timing struct {
	// PeakFallRate is the peak fall-back rate in dB per second.
	PeakFallRate float64
	// PeakHoldTime is how long the hold marker stays before falling.
	PeakHoldTime time.Duration
	// HoldFallRate is the hold marker fall-back rate in dB per second.
	HoldFallRate float64
	// RmsAttack and RmsRelease are the RMS filter time constants.
	RmsAttack  time.Duration
	RmsRelease time.Duration
}

// NormalTiming returns the default meter timing: peaks fall 26 dB in 3 s,
// the hold lasts 10 s.
func NormalTiming() Timing {
	return Timing{
		PeakFallRate: 26.0 / 3.0,
		PeakHoldTime: 10 * time.Second,
		HoldFallRate: 13.0 / 3.0,
		RmsAttack:    25 * time.Millisecond,
		RmsRelease:   300 * time.Millisecond,
	}
}

// TransientTiming returns the faster timing used in transient mode.
func TransientTiming() Timing {
	return Timing{
		PeakFallRate: 26.0,
		PeakHoldTime: time.Second,
		HoldFallRate: 13.0,
		RmsAttack:    5 * time.Millisecond,
		RmsRelease:   100 * time.Millisecond,
	}
}

// Validate reports whether every rate and duration is positive and finite.
func (t Timing) Validate() error {
	if !(t.PeakFallRate > 0) || math.IsInf(t.PeakFallRate, 0) {
		return fmt.Errorf("ballistics: peak fall rate must be > 0: %v", t.PeakFallRate)
	}

	if !(t.HoldFallRate > 0) || math.IsInf(t.HoldFallRate, 0) {
		return fmt.Errorf("ballistics: hold fall rate must be > 0: %v", t.HoldFallRate)
	}

	if t.PeakHoldTime < 0 {
		return fmt.Errorf("ballistics: peak hold time must be >= 0: %v", t.PeakHoldTime)
	}

	if t.RmsAttack <= 0 || t.RmsRelease <= 0 {
		return fmt.Errorf("ballistics: RMS attack and release must be > 0: %v/%v", t.RmsAttack, t.RmsRelease)
	}

	return nil
}
