package ballistics

import "fmt"

const (
	// MinCrestFactor and MaxCrestFactor bound the crest factor in dB.
	MinCrestFactor = 0
	MaxCrestFactor = 40
)

// RmsFloorDB is the lowest level the RMS filter tracks. Readings at or
// below it count as silence: the filter releases toward the floor and,
// once settled there, reads SilenceDB and is seeded afresh by the next
// audible chunk.
const RmsFloorDB = -120.0

const rmsSettleDB = 0.5

type config struct {
	crestFactor   int
	transientMode bool
	timing        *Timing
	infiniteHold  bool
}

// Option configures a [Ballistics].
type Option func(*config) error

// WithCrestFactor sets the crest factor in dB (default 0).
func WithCrestFactor(dB int) Option {
	return func(cfg *config) error {
		if dB < MinCrestFactor || dB > MaxCrestFactor {
			return fmt.Errorf("ballistics: crest factor must be in [%d, %d]: %d", MinCrestFactor, MaxCrestFactor, dB)
		}

		cfg.crestFactor = dB

		return nil
	}
}

// WithTransientMode selects [TransientTiming] instead of [NormalTiming].
func WithTransientMode(enabled bool) Option {
	return func(cfg *config) error {
		cfg.transientMode = enabled
		return nil
	}
}

// WithTiming overrides the timing for both normal and transient mode.
func WithTiming(t Timing) Option {
	return func(cfg *config) error {
		if err := t.Validate(); err != nil {
			return err
		}

		cfg.timing = &t

		return nil
	}
}

// WithInfinitePeakHold keeps the hold marker at the highest peak until
// the next reset.
func WithInfinitePeakHold(enabled bool) Option {
	return func(cfg *config) error {
		cfg.infiniteHold = enabled
		return nil
	}
}
