package metering

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-kmeter/dsp/buffer"
	"github.com/cwbudde/algo-kmeter/dsp/core"
	"github.com/cwbudde/algo-kmeter/dsp/dither"
	"github.com/cwbudde/algo-kmeter/measure/ballistics"
)

type sourceSlot struct {
	src Source

	// ring position of the first sample this source produced, set by the
	// producer on first use
	origin  atomic.Uint64
	started atomic.Bool
}

// Pipeline meters a multichannel stream. Process is the producer and may
// run concurrently with every other method; Drain and Run are the
// consumer and must not run concurrently with each other.
type Pipeline struct {
	cfg  config
	log  *logrus.Entry
	ring *buffer.Ring

	// producer-side state, read through atomics
	source   atomic.Pointer[sourceSlot]
	live     *LiveInput
	ditherer atomic.Pointer[dither.Ditherer]
	gainDB   atomic.Int64
	gainLin  atomic.Uint64
	mixMode  atomic.Bool
	stopped  atomic.Bool

	// consumer-side state
	mu          sync.Mutex
	bal         *ballistics.Ballistics
	drained     uint64
	seq         uint64
	attached    bool
	player      *FilePlayer
	playerSlot  *sourceSlot
	reporter    *Reporter
	validStart  uint64
	reportErr   error
	chunkBuf    *buffer.Buffer
	chunkSecs   float64
	measurement []ChannelMeasurement

	snapshot atomic.Pointer[ballistics.Snapshot]
	dropped  atomic.Uint64
	events   chan Event
	done     chan struct{}
	stopOnce sync.Once
}

// NewPipeline builds a pipeline. Metering starts with the display
// attached and live input as the source.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	log := cfg.logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ring, err := buffer.NewRing(cfg.Channels, cfg.ringCapacity, cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:         cfg,
		log:         log,
		ring:        ring,
		live:        NewLiveInput(cfg.Channels),
		attached:    true,
		chunkSecs:   cfg.ChunkSeconds(),
		measurement: make([]ChannelMeasurement, cfg.Channels),
		events:      make(chan Event, eventQueueSize),
		done:        make(chan struct{}),
	}

	if cfg.sink != nil {
		p.chunkBuf = buffer.New(cfg.Channels, cfg.ChunkSize)
	}

	if p.bal, err = p.newBallistics(); err != nil {
		return nil, err
	}

	if err := p.SetBitDepth(cfg.bitDepth); err != nil {
		return nil, err
	}

	p.source.Store(&sourceSlot{src: p.live})
	p.SetGain(cfg.gainDB)
	p.mixMode.Store(cfg.mixMode)
	p.publishLocked()

	p.log.WithFields(logrus.Fields{
		"function":    "NewPipeline",
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
		"chunk_size":  cfg.ChunkSize,
		"capacity":    cfg.ringCapacity,
	}).Info("Metering pipeline created")

	return p, nil
}

func (p *Pipeline) newBallistics() (*ballistics.Ballistics, error) {
	opts := []ballistics.Option{
		ballistics.WithCrestFactor(p.cfg.crestFactor),
		ballistics.WithTransientMode(p.cfg.transientMode),
		ballistics.WithInfinitePeakHold(p.cfg.infiniteHold),
	}
	if p.cfg.timing != nil {
		opts = append(opts, ballistics.WithTiming(*p.cfg.timing))
	}

	return ballistics.New(p.cfg.Channels, opts...)
}

// SampleRate returns the sample rate in Hz.
func (p *Pipeline) SampleRate() float64 { return p.cfg.SampleRate }

// Channels returns the number of metered channels.
func (p *Pipeline) Channels() int { return p.cfg.Channels }

// ChunkSize returns the analysis chunk length in samples.
func (p *Pipeline) ChunkSize() int { return p.cfg.ChunkSize }

// Ring exposes the sample ring for read-only inspection.
func (p *Pipeline) Ring() *buffer.Ring { return p.ring }

// Process meters one host block. The active source may rewrite the block
// in place, and in mix mode with a non-zero gain the block leaves with
// gain and dither applied, exactly as metered.
func (p *Pipeline) Process(block [][]float64) {
	if p.stopped.Load() {
		return
	}

	if slot := p.source.Load(); slot != nil {
		if !slot.started.Load() {
			slot.origin.Store(p.ring.Written())
			slot.started.Store(true)
		}

		slot.src.Process(block)
	}

	if p.mixMode.Load() && p.gainDB.Load() != 0 {
		gain := math.Float64frombits(p.gainLin.Load())
		ditherer := p.ditherer.Load()

		for ch, samples := range block {
			vecmath.ScaleBlockInPlace(samples, gain)
			ditherer.ProcessBlock(ch, samples)
		}
	}

	p.ring.AddSamples(block, core.BlockLen(block))
}

// Drain analyses every chunk completed since the last call and returns
// how many were metered or forwarded. Chunks overwritten before they
// could be read are dropped and counted in Dropped.
func (p *Pipeline) Drain() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	processed := 0
	chunkSize := uint64(p.cfg.ChunkSize)

	for total := p.ring.Chunks(); p.drained < total; {
		p.drained++
		if p.processChunkLocked(p.drained * chunkSize) {
			processed++
		}
	}

	return processed
}

func (p *Pipeline) processChunkLocked(boundary uint64) bool {
	length := p.cfg.ChunkSize
	preDelay := length / 2
	cur := p.ring.CursorAt(boundary)

	if !cur.Intact(length, preDelay) {
		p.dropLocked(boundary)
		return false
	}

	active := p.attached || p.player != nil
	if active {
		for ch := range p.measurement {
			p.measurement[ch] = Measure(cur, ch, length, preDelay, p.chunkSecs)
		}

		if !cur.Intact(length, preDelay) {
			p.dropLocked(boundary)
			return false
		}

		for ch, m := range p.measurement {
			p.bal.UpdateChannel(ch, m.Seconds, m.Peak, m.RMS, m.Overflows)
		}
	}

	if p.cfg.sink != nil {
		for ch := range p.cfg.Channels {
			cur.CopyTo(ch, p.chunkBuf.Channel(ch), 0, length, 0)
		}

		if cur.Intact(length, 0) {
			p.cfg.sink(p.chunkBuf)
		}
	}

	if !active {
		return true
	}

	snap := p.publishLocked()
	p.emit(EventMetersUpdated)

	if p.reporter != nil && p.reportErr == nil {
		position := float64(boundary-p.validStart) / p.cfg.SampleRate
		if err := p.reporter.Report(snap, position); err != nil {
			p.reportErr = err
			p.log.WithFields(logrus.Fields{
				"function": "Pipeline.Drain",
				"error":    err.Error(),
			}).Error("Validation report failed, reporting disabled")
		}
	}

	return true
}

func (p *Pipeline) dropLocked(boundary uint64) {
	p.dropped.Add(1)
	p.log.WithFields(logrus.Fields{
		"function": "Pipeline.Drain",
		"boundary": boundary,
		"written":  p.ring.Written(),
	}).Warn("Chunk overwritten before analysis, dropped")
}

// publishLocked stamps and publishes the current ballistics state.
func (p *Pipeline) publishLocked() *ballistics.Snapshot {
	snap := p.bal.Snapshot()
	p.seq++
	snap.Sequence = p.seq
	p.snapshot.Store(snap)

	return snap
}

func (p *Pipeline) emit(e Event) {
	select {
	case p.events <- e:
	default:
	}
}

// Run drains the ring whenever a chunk completes, until ctx is cancelled
// or Stop is called. It returns ctx.Err() on cancellation and nil after
// Stop.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-p.ring.Ready():
			p.Drain()
		}
	}
}

// Snapshot returns the latest published readings. Successive calls never
// return an older snapshot.
func (p *Pipeline) Snapshot() *ballistics.Snapshot {
	return p.snapshot.Load()
}

// Events delivers pipeline notifications. Events are dropped when nobody
// keeps up with the queue.
func (p *Pipeline) Events() <-chan Event { return p.events }

// Dropped returns the number of chunks lost to overwriting.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Reset returns all meters to silence and publishes the silent state.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetLocked()

	p.log.WithFields(logrus.Fields{
		"function": "Pipeline.Reset",
	}).Debug("Meters reset")
}

func (p *Pipeline) resetLocked() {
	p.bal.Reset()
	p.publishLocked()
}

// CrestFactor returns the crest factor in dB.
func (p *Pipeline) CrestFactor() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cfg.crestFactor
}

// SetCrestFactor changes the crest factor without clearing the meters.
func (p *Pipeline) SetCrestFactor(dB int) {
	dB = max(ballistics.MinCrestFactor, min(ballistics.MaxCrestFactor, dB))

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg.crestFactor = dB
	p.bal.SetCrestFactor(dB)
}

// TransientMode reports whether transient ballistics are selected.
func (p *Pipeline) TransientMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cfg.transientMode
}

// SetTransientMode switches ballistics timing. The meters restart from
// silence.
func (p *Pipeline) SetTransientMode(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if enabled == p.cfg.transientMode {
		return
	}

	p.cfg.transientMode = enabled

	bal, err := p.newBallistics()
	if err != nil {
		// options were validated at construction
		p.log.WithFields(logrus.Fields{
			"function": "Pipeline.SetTransientMode",
			"error":    err.Error(),
		}).Error("Rebuilding ballistics failed")

		return
	}

	p.bal = bal
	p.publishLocked()
}

// Gain returns the gain in dB.
func (p *Pipeline) Gain() int { return int(p.gainDB.Load()) }

// SetGain sets the gain in dB applied in mix mode. Values outside
// [MinGainDB, MaxGainDB] are clamped.
func (p *Pipeline) SetGain(dB int) {
	dB = max(MinGainDB, min(MaxGainDB, dB))

	p.gainLin.Store(math.Float64bits(core.DBToLinear(float64(dB))))
	p.gainDB.Store(int64(dB))
}

// MixMode reports whether the gain stage is enabled.
func (p *Pipeline) MixMode() bool { return p.mixMode.Load() }

// SetMixMode enables or disables the gain stage.
func (p *Pipeline) SetMixMode(enabled bool) { p.mixMode.Store(enabled) }

// BitDepth returns the dither target bit depth.
func (p *Pipeline) BitDepth() int { return p.ditherer.Load().BitDepth() }

// SetBitDepth installs a fresh ditherer for the given bit depth. Dither
// type, noise shaping and limiting are kept.
func (p *Pipeline) SetBitDepth(bits int) error {
	opts := []dither.Option{
		dither.WithBitDepth(bits),
		dither.WithDitherType(p.cfg.ditherType),
		dither.WithFIRPreset(p.cfg.noiseShaping),
		dither.WithLimit(p.cfg.ditherLimit),
	}
	if p.cfg.seeded {
		opts = append(opts, dither.WithSeed(p.cfg.ditherSeed))
	}

	d, err := dither.NewDitherer(p.cfg.Channels, opts...)
	if err != nil {
		return err
	}

	p.ditherer.Store(d)

	p.log.WithFields(logrus.Fields{
		"function":      "Pipeline.SetBitDepth",
		"bit_depth":     d.BitDepth(),
		"dither":        d.DitherType().String(),
		"noise_shaping": d.Preset().String(),
		"limit":         d.Limit(),
	}).Debug("Ditherer installed")

	return nil
}

// Ditherer returns the ditherer used in mix mode.
func (p *Pipeline) Ditherer() *dither.Ditherer { return p.ditherer.Load() }

// DisplayAttached reports whether a display is consuming readings.
func (p *Pipeline) DisplayAttached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.attached
}

// SetDisplayAttached tells the pipeline whether anyone reads the meters.
// While detached and not validating, chunks are not analysed. Attaching
// resets the meters so stale readings are never shown.
func (p *Pipeline) SetDisplayAttached(attached bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if attached && !p.attached {
		p.resetLocked()
	}

	p.attached = attached
}

// Stop makes Process ignore all further blocks and ends Run.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.done)

		p.log.WithFields(logrus.Fields{
			"function": "Pipeline.Stop",
			"written":  p.ring.Written(),
			"dropped":  p.dropped.Load(),
		}).Info("Metering pipeline stopped")
	})
}

// Stopped reports whether Stop has been called.
func (p *Pipeline) Stopped() bool { return p.stopped.Load() }
