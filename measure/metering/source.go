package metering

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"github.com/cwbudde/algo-kmeter/dsp/core"
)

// Source fills or modifies an audio block before it is metered. Process
// runs on the audio callback and must not block.
type Source interface {
	Process(block [][]float64)
}

// LiveInput meters the host audio as delivered. Channels beyond the
// configured input count are cleared, since hosts may leave garbage in
// them.
type LiveInput struct {
	inputs int
}

// NewLiveInput returns a LiveInput for the given number of input channels.
func NewLiveInput(inputs int) *LiveInput {
	return &LiveInput{inputs: inputs}
}

// Process clears every channel past the input count.
func (l *LiveInput) Process(block [][]float64) {
	for ch := l.inputs; ch < len(block); ch++ {
		core.Zero(block[ch])
	}
}

// resampleQuality is the beep resampler quality; 4 is beep's usual
// trade-off for real-time playback.
const resampleQuality = 4

// FilePlayer replaces the host audio with decoded file audio. The left
// and right file channels go to channels 0 and 1, all other channels are
// silent, and once the file ends every block is silent.
type FilePlayer struct {
	stream  beep.Streamer
	closer  io.Closer
	frames  [][2]float64
	playing atomic.Bool
	played  atomic.Uint64
}

// NewFilePlayer plays s, decoded at fileRate, into a pipeline running at
// sampleRate. The stream is resampled when the rates differ. maxBlock
// sizes the decode buffer.
func NewFilePlayer(s beep.Streamer, fileRate, sampleRate, maxBlock int) (*FilePlayer, error) {
	if s == nil {
		return nil, fmt.Errorf("metering: file player needs a stream")
	}

	if fileRate <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("metering: invalid sample rates %d -> %d", fileRate, sampleRate)
	}

	if fileRate != sampleRate {
		s = beep.Resample(resampleQuality, beep.SampleRate(fileRate), beep.SampleRate(sampleRate), s)
	}

	p := &FilePlayer{
		stream: s,
		frames: make([][2]float64, max(maxBlock, 1)),
	}
	p.playing.Store(true)

	return p, nil
}

// OpenFilePlayer decodes the WAV file at path. A sampleRate of 0 plays
// at the file's own rate. The returned format describes the file before
// resampling. Close releases the file.
func OpenFilePlayer(path string, sampleRate, maxBlock int) (*FilePlayer, beep.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("metering: open %s: %w", path, err)
	}

	stream, format, err := wav.Decode(file)
	if err != nil {
		file.Close()
		return nil, beep.Format{}, fmt.Errorf("metering: decode %s: %w", path, err)
	}

	if sampleRate <= 0 {
		sampleRate = int(format.SampleRate)
	}

	player, err := NewFilePlayer(stream, int(format.SampleRate), sampleRate, maxBlock)
	if err != nil {
		stream.Close()
		return nil, beep.Format{}, err
	}

	player.closer = stream

	return player, format, nil
}

// Process overwrites block with the next stretch of file audio.
func (p *FilePlayer) Process(block [][]float64) {
	n := core.BlockLen(block)
	if n > len(p.frames) {
		// host exceeded the announced block size
		p.frames = make([][2]float64, n)
	}

	frames := p.frames[:n]
	filled := 0
	ended := false

	for p.playing.Load() && filled < n {
		got, ok := p.stream.Stream(frames[filled:])
		filled += got

		if !ok {
			ended = true
			break
		}

		if got == 0 {
			break
		}
	}

	// frames first: once Playing is false, Frames is final
	p.played.Add(uint64(filled))
	if ended {
		p.playing.Store(false)
	}

	for ch, samples := range block {
		if ch > 1 {
			core.Zero(samples)
			continue
		}

		for i := range samples {
			if i < filled {
				samples[i] = frames[i][ch]
			} else {
				samples[i] = 0
			}
		}
	}
}

// Playing reports whether the file still has audio left.
func (p *FilePlayer) Playing() bool { return p.playing.Load() }

// Frames returns the number of frames played so far.
func (p *FilePlayer) Frames() uint64 { return p.played.Load() }

// Err returns the decoder error, if any.
func (p *FilePlayer) Err() error { return p.stream.Err() }

// Close stops playback and releases the file opened by OpenFilePlayer.
func (p *FilePlayer) Close() error {
	p.playing.Store(false)

	if p.closer == nil {
		return nil
	}

	return p.closer.Close()
}
