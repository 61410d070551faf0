package ballistics

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-kmeter/dsp/core"
)

// ChannelState is the meter reading of one channel.
type ChannelState struct {
	PeakDB     float64
	PeakHoldDB float64
	// PeakHoldSeconds is the time since the hold marker was last set.
	PeakHoldSeconds float64
	RmsDB           float64
	// Overflows counts samples at or beyond full scale since the last reset.
	Overflows           int
	CrestFactorTenthsDB int
}

// Snapshot is an immutable copy of all channel readings.
type Snapshot struct {
	// Sequence increases by one with every published snapshot.
	Sequence      uint64
	CrestFactor   int
	TransientMode bool
	Channels      []ChannelState
}

// Channel returns the reading of channel ch, or a silent reading when ch
// is out of range.
func (s *Snapshot) Channel(ch int) ChannelState {
	if s == nil || ch < 0 || ch >= len(s.Channels) {
		return silentState(0)
	}
	return s.Channels[ch]
}

// Ballistics holds the meter state of a fixed number of channels. It is
// safe for concurrent use.
type Ballistics struct {
	mu sync.Mutex

	states        []ChannelState
	crestFactor   int
	transientMode bool
	infiniteHold  bool
	timing        Timing
	updates       uint64
}

// New creates meter state for the given number of channels, all reading
// silence.
func New(channels int, opts ...Option) (*Ballistics, error) {
	if channels < 1 {
		return nil, fmt.Errorf("ballistics: channel count must be >= 1: %d", channels)
	}

	var cfg config
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	timing := NormalTiming()
	switch {
	case cfg.timing != nil:
		timing = *cfg.timing
	case cfg.transientMode:
		timing = TransientTiming()
	}

	b := &Ballistics{
		states:        make([]ChannelState, channels),
		crestFactor:   cfg.crestFactor,
		transientMode: cfg.transientMode,
		infiniteHold:  cfg.infiniteHold,
		timing:        timing,
	}
	b.resetLocked()

	return b, nil
}

func silentState(crestFactor int) ChannelState {
	return ChannelState{
		PeakDB:              core.SilenceDB,
		PeakHoldDB:          core.SilenceDB,
		RmsDB:               core.SilenceDB,
		CrestFactorTenthsDB: crestFactor * 10,
	}
}

// Channels returns the channel count.
func (b *Ballistics) Channels() int { return len(b.states) }

// TransientMode reports whether transient timing was selected.
func (b *Ballistics) TransientMode() bool { return b.transientMode }

// Timing returns the timing in effect.
func (b *Ballistics) Timing() Timing { return b.timing }

// CrestFactor returns the crest factor in dB.
func (b *Ballistics) CrestFactor() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.crestFactor
}

// SetCrestFactor changes the crest factor for later updates. Current
// readings are kept. Values outside [MinCrestFactor, MaxCrestFactor] are
// clamped.
func (b *Ballistics) SetCrestFactor(dB int) {
	dB = max(MinCrestFactor, min(MaxCrestFactor, dB))

	b.mu.Lock()
	defer b.mu.Unlock()

	b.crestFactor = dB
	for ch := range b.states {
		b.states[ch].CrestFactorTenthsDB = dB * 10
	}
}

// LevelToDecibel converts a linear level to dB on the crest-factor
// adjusted scale. Silence and non-finite levels map to core.SilenceDB.
func (b *Ballistics) LevelToDecibel(level float64) float64 {
	return levelToDecibel(level, b.CrestFactor())
}

func levelToDecibel(level float64, crestFactor int) float64 {
	db := core.LevelToDB(level)
	if db <= core.SilenceDB {
		return core.SilenceDB
	}

	return max(db-float64(crestFactor), core.SilenceDB)
}

// UpdateChannel feeds one chunk measurement of channel ch, covering the
// given number of seconds. Out-of-range channels are ignored.
func (b *Ballistics) UpdateChannel(ch int, seconds, peak, rms float64, overflows int) {
	if ch < 0 || ch >= len(b.states) {
		return
	}

	if !(seconds > 0) || math.IsInf(seconds, 0) {
		seconds = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	st := &b.states[ch]
	peakDB := levelToDecibel(peak, b.crestFactor)
	rmsDB := levelToDecibel(rms, b.crestFactor)

	b.updatePeak(st, peakDB, seconds)
	b.updateRms(st, rmsDB, seconds)

	if overflows > 0 {
		st.Overflows += overflows
	}

	b.updates++
}

func (b *Ballistics) updatePeak(st *ChannelState, peakDB, seconds float64) {
	fallen := st.PeakDB - b.timing.PeakFallRate*seconds
	st.PeakDB = max(peakDB, fallen, core.SilenceDB)

	if st.PeakDB > st.PeakHoldDB {
		st.PeakHoldDB = st.PeakDB
		st.PeakHoldSeconds = 0

		return
	}

	if b.infiniteHold {
		return
	}

	holdTime := b.timing.PeakHoldTime.Seconds()
	before := st.PeakHoldSeconds
	st.PeakHoldSeconds += seconds

	if st.PeakHoldSeconds > holdTime {
		// only the time past the hold interval counts
		falling := st.PeakHoldSeconds - max(before, holdTime)
		st.PeakHoldDB = max(st.PeakHoldDB-b.timing.HoldFallRate*falling, st.PeakDB)
	}
}

func (b *Ballistics) updateRms(st *ChannelState, rmsDB, seconds float64) {
	if st.RmsDB <= RmsFloorDB {
		st.RmsDB = core.SilenceDB
		if rmsDB > RmsFloorDB {
			st.RmsDB = rmsDB
		}

		return
	}

	if seconds == 0 {
		return
	}

	target := max(rmsDB, RmsFloorDB)

	tau := b.timing.RmsRelease
	if target > st.RmsDB {
		tau = b.timing.RmsAttack
	}

	coef := 1 - math.Exp(-seconds/tau.Seconds())
	st.RmsDB += coef * (target - st.RmsDB)

	// fully released: hand back to the seeding path
	if target == RmsFloorDB && st.RmsDB-RmsFloorDB < rmsSettleDB {
		st.RmsDB = core.SilenceDB
	}
}

// Reset returns every channel to silence and clears the overflow counts.
func (b *Ballistics) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetLocked()
}

func (b *Ballistics) resetLocked() {
	for ch := range b.states {
		b.states[ch] = silentState(b.crestFactor)
	}
}

// State returns the reading of channel ch, or a silent reading when ch is
// out of range.
func (b *Ballistics) State(ch int) ChannelState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch < 0 || ch >= len(b.states) {
		return silentState(b.crestFactor)
	}

	return b.states[ch]
}

// Snapshot copies all channel readings. Sequence is the number of channel
// updates applied so far; publishers that outlive a Ballistics restamp it.
func (b *Ballistics) Snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	states := make([]ChannelState, len(b.states))
	copy(states, b.states)

	return &Snapshot{
		Sequence:      b.updates,
		CrestFactor:   b.crestFactor,
		TransientMode: b.transientMode,
		Channels:      states,
	}
}
