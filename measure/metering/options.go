package metering

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-kmeter/dsp/buffer"
	"github.com/cwbudde/algo-kmeter/dsp/core"
	"github.com/cwbudde/algo-kmeter/dsp/dither"
	"github.com/cwbudde/algo-kmeter/measure/ballistics"
)

// ErrInvalidSampleRate is returned for sample rates outside
// [core.MinSampleRate, core.MaxSampleRate].
var ErrInvalidSampleRate = errors.New("metering: unsupported sample rate")

// OverflowThreshold is the magnitude from which a sample counts as an
// overflow: 32767/32768 rounded down, about -0.001 dBFS.
const OverflowThreshold = 0.9999

const defaultBitDepth = 24

const (
	// MinGainDB and MaxGainDB bound the mix-mode gain.
	MinGainDB = -60
	MaxGainDB = 60
)

type config struct {
	core.ProcessorConfig

	ringCapacity  int
	crestFactor   int
	transientMode bool
	infiniteHold  bool
	timing        *ballistics.Timing
	gainDB        int
	mixMode       bool
	bitDepth      int
	ditherType    dither.DitherType
	noiseShaping  dither.Preset
	ditherLimit   bool
	ditherSeed    uint64
	seeded        bool
	logger        *logrus.Entry
	sink          func(*buffer.Buffer)
}

func defaultConfig() config {
	return config{
		ProcessorConfig: core.DefaultProcessorConfig(),
		bitDepth:        defaultBitDepth,
		ditherType:      dither.DitherTriangular,
		noiseShaping:    dither.PresetEFB,
	}
}

// Option configures a [Pipeline].
type Option func(*config) error

// WithProcessorConfig replaces sample rate, block size, chunk size and
// channel count in one go.
func WithProcessorConfig(pc core.ProcessorConfig) Option {
	return func(cfg *config) error {
		cfg.ProcessorConfig = pc
		return nil
	}
}

// WithSampleRate sets the sample rate in Hz (default 48000).
func WithSampleRate(sampleRate float64) Option {
	return func(cfg *config) error {
		if sampleRate < core.MinSampleRate || sampleRate > core.MaxSampleRate {
			return fmt.Errorf("%w: %.0f Hz", ErrInvalidSampleRate, sampleRate)
		}

		cfg.SampleRate = sampleRate

		return nil
	}
}

// WithChannels sets the number of metered input channels (default 2).
func WithChannels(channels int) Option {
	return func(cfg *config) error {
		if channels < 1 {
			return fmt.Errorf("metering: channel count must be >= 1: %d", channels)
		}

		cfg.Channels = channels

		return nil
	}
}

// WithChunkSize sets the analysis chunk length in samples (default 1024).
func WithChunkSize(chunkSize int) Option {
	return func(cfg *config) error {
		if chunkSize < 2 {
			return fmt.Errorf("metering: chunk size must be >= 2: %d", chunkSize)
		}

		cfg.ChunkSize = chunkSize

		return nil
	}
}

// WithMaxBlockSize sets the largest block the host is expected to deliver.
// It only affects the default ring capacity.
func WithMaxBlockSize(blockSize int) Option {
	return func(cfg *config) error {
		if blockSize < 1 {
			return fmt.Errorf("metering: block size must be >= 1: %d", blockSize)
		}

		cfg.BlockSize = blockSize

		return nil
	}
}

// WithRingCapacity overrides the ring capacity in samples per channel. It
// must hold a chunk plus the half-chunk pre-delay. The default is four
// times the larger of chunk size and maximum block size.
func WithRingCapacity(capacity int) Option {
	return func(cfg *config) error {
		if capacity < 1 {
			return fmt.Errorf("metering: ring capacity must be >= 1: %d", capacity)
		}

		cfg.ringCapacity = capacity

		return nil
	}
}

// WithCrestFactor sets the crest factor in dB (default 0).
func WithCrestFactor(dB int) Option {
	return func(cfg *config) error {
		if dB < ballistics.MinCrestFactor || dB > ballistics.MaxCrestFactor {
			return fmt.Errorf("metering: crest factor must be in [%d, %d]: %d",
				ballistics.MinCrestFactor, ballistics.MaxCrestFactor, dB)
		}

		cfg.crestFactor = dB

		return nil
	}
}

// WithTransientMode selects the faster transient ballistics.
func WithTransientMode(enabled bool) Option {
	return func(cfg *config) error {
		cfg.transientMode = enabled
		return nil
	}
}

// WithInfinitePeakHold keeps peak hold markers until the next reset.
func WithInfinitePeakHold(enabled bool) Option {
	return func(cfg *config) error {
		cfg.infiniteHold = enabled
		return nil
	}
}

// WithTiming overrides the ballistics timing for both modes.
func WithTiming(t ballistics.Timing) Option {
	return func(cfg *config) error {
		if err := t.Validate(); err != nil {
			return err
		}

		cfg.timing = &t

		return nil
	}
}

// WithGain sets the digital gain in dB, within [MinGainDB, MaxGainDB].
// It only applies in mix mode.
func WithGain(dB int) Option {
	return func(cfg *config) error {
		if dB < MinGainDB || dB > MaxGainDB {
			return fmt.Errorf("metering: gain must be in [%d, %d] dB: %d", MinGainDB, MaxGainDB, dB)
		}

		cfg.gainDB = dB

		return nil
	}
}

// WithMixMode enables the gain stage.
func WithMixMode(enabled bool) Option {
	return func(cfg *config) error {
		cfg.mixMode = enabled
		return nil
	}
}

// WithBitDepth sets the dither target bit depth (default 24).
func WithBitDepth(bits int) Option {
	return func(cfg *config) error {
		if bits < 1 || bits > 32 {
			return fmt.Errorf("metering: bit depth must be in [1, 32]: %d", bits)
		}

		cfg.bitDepth = bits

		return nil
	}
}

// WithDitherType sets the dither noise PDF (default triangular).
func WithDitherType(dt dither.DitherType) Option {
	return func(cfg *config) error {
		if !dt.Valid() {
			return fmt.Errorf("metering: invalid dither type: %d", dt)
		}

		cfg.ditherType = dt

		return nil
	}
}

// WithNoiseShaping selects the dither error-feedback preset (default
// first-order error feedback).
func WithNoiseShaping(p dither.Preset) Option {
	return func(cfg *config) error {
		if !p.Valid() {
			return fmt.Errorf("metering: invalid noise-shaping preset: %d", p)
		}

		cfg.noiseShaping = p

		return nil
	}
}

// WithDitherLimit clips the mixed signal to the dither bit depth. It is
// off by default, so gain above full scale shows up as overflows.
func WithDitherLimit(enabled bool) Option {
	return func(cfg *config) error {
		cfg.ditherLimit = enabled
		return nil
	}
}

// WithDitherSeed makes the dither noise reproducible.
func WithDitherSeed(seed uint64) Option {
	return func(cfg *config) error {
		cfg.ditherSeed = seed
		cfg.seeded = true

		return nil
	}
}

// WithLogger sets the log entry used by the pipeline. The default is the
// logrus standard logger.
func WithLogger(entry *logrus.Entry) Option {
	return func(cfg *config) error {
		cfg.logger = entry
		return nil
	}
}

// WithChunkSink registers a callback that receives every completed chunk
// without pre-delay, on the consumer goroutine. The buffer is reused; the
// callback must not keep it.
func WithChunkSink(sink func(*buffer.Buffer)) Option {
	return func(cfg *config) error {
		cfg.sink = sink
		return nil
	}
}

func applyOptions(opts []Option) (config, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.SampleRate < core.MinSampleRate || cfg.SampleRate > core.MaxSampleRate {
		return cfg, fmt.Errorf("%w: %.0f Hz", ErrInvalidSampleRate, cfg.SampleRate)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("metering: %w", err)
	}

	if cfg.ringCapacity == 0 {
		cfg.ringCapacity = 4 * max(cfg.ChunkSize, cfg.BlockSize)
	}

	if need := cfg.ChunkSize + cfg.ChunkSize/2; cfg.ringCapacity < need {
		return cfg, fmt.Errorf("metering: ring capacity %d cannot hold a chunk plus pre-delay (%d)", cfg.ringCapacity, need)
	}

	return cfg, nil
}
