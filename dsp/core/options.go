package core

import "fmt"

// Supported sample rate range for metering. Rates outside this range make
// the chunk timing of standard meter ballistics meaningless.
const (
	MinSampleRate = 44100
	MaxSampleRate = 192000
)

// ProcessorConfig defines common DSP processing settings.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int
	ChunkSize  int
	Channels   int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns sensible defaults for streaming use.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 48000,
		BlockSize:  1024,
		ChunkSize:  1024,
		Channels:   2,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the maximum expected host block size.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// WithChunkSize sets the analysis chunk size in samples.
func WithChunkSize(chunkSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if chunkSize > 0 {
			cfg.ChunkSize = chunkSize
		}
	}
}

// WithChannels sets the number of input channels.
func WithChannels(channels int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if channels > 0 {
			cfg.Channels = channels
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Validate checks that the configuration can drive a metering pipeline.
func (cfg ProcessorConfig) Validate() error {
	if cfg.SampleRate < MinSampleRate || cfg.SampleRate > MaxSampleRate {
		return fmt.Errorf("core: sample rate %.0f Hz outside [%d, %d]", cfg.SampleRate, MinSampleRate, MaxSampleRate)
	}

	if cfg.Channels < 1 {
		return fmt.Errorf("core: channel count must be >= 1: %d", cfg.Channels)
	}

	if cfg.ChunkSize < 1 {
		return fmt.Errorf("core: chunk size must be >= 1: %d", cfg.ChunkSize)
	}

	if cfg.BlockSize < 1 {
		return fmt.Errorf("core: block size must be >= 1: %d", cfg.BlockSize)
	}

	return nil
}

// ChunkSeconds returns the duration of one analysis chunk.
func (cfg ProcessorConfig) ChunkSeconds() float64 {
	return float64(cfg.ChunkSize) / cfg.SampleRate
}
