package metering

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-kmeter/dsp/buffer"
	"github.com/cwbudde/algo-kmeter/dsp/core"
	"github.com/cwbudde/algo-kmeter/dsp/dither"
	"github.com/cwbudde/algo-kmeter/internal/testutil"
	"github.com/cwbudde/algo-kmeter/measure/ballistics"
)

func TestNewPipelineValidation(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		sampleRate bool
	}{
		{"sample rate too low", []Option{WithSampleRate(8000)}, true},
		{"sample rate too high", []Option{WithSampleRate(384000)}, true},
		{"processor config rate", []Option{WithProcessorConfig(core.ProcessorConfig{
			SampleRate: 22050, BlockSize: 512, ChunkSize: 1024, Channels: 2,
		})}, true},
		{"no channels", []Option{WithChannels(0)}, false},
		{"tiny chunk", []Option{WithChunkSize(1)}, false},
		{"ring too small", []Option{WithRingCapacity(1200)}, false},
		{"bit depth", []Option{WithBitDepth(0)}, false},
		{"crest factor", []Option{WithCrestFactor(50)}, false},
		{"block size", []Option{WithMaxBlockSize(0)}, false},
		{"gain too high", []Option{WithGain(MaxGainDB + 1)}, false},
		{"gain too low", []Option{WithGain(MinGainDB - 1)}, false},
		{"dither type", []Option{WithDitherType(dither.DitherType(9))}, false},
		{"noise shaping", []Option{WithNoiseShaping(dither.Preset(-1))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(append(tt.opts, WithLogger(quietLogger()))...)
			require.Error(t, err)
			assert.Equal(t, tt.sampleRate, errors.Is(err, ErrInvalidSampleRate))
		})
	}
}

func TestNewPipelineDefaults(t *testing.T) {
	p := newPipeline(t, nil)

	assert.Equal(t, 48000.0, p.SampleRate())
	assert.Equal(t, 2, p.Channels())
	assert.Equal(t, 1024, p.ChunkSize())
	assert.Equal(t, 4096, p.Ring().Capacity())
	assert.Equal(t, 24, p.BitDepth())
	assert.False(t, p.MixMode())
	assert.True(t, p.DisplayAttached())

	snap := p.Snapshot()
	require.NotNil(t, snap)
	assert.EqualValues(t, 1, snap.Sequence)
	for _, st := range snap.Channels {
		assert.Equal(t, core.SilenceDB, st.PeakDB)
	}
}

func TestPipelineFullScaleTone(t *testing.T) {
	p := newPipeline(t, WithChannels(1))

	feed(p, 16*1024, []int{256}, true, constant(1.0))

	st := p.Snapshot().Channel(0)
	assert.InDelta(t, 0.0, st.PeakDB, 1e-9)
	assert.InDelta(t, 0.0, st.PeakHoldDB, 1e-9)
	assert.InDelta(t, 0.0, st.RmsDB, 1e-3)
	// the first window straddles the stream start
	assert.Equal(t, 512+15*1024, st.Overflows)
}

func TestPipelineToneBelowFullScale(t *testing.T) {
	p := newPipeline(t, WithCrestFactor(20))

	feed(p, 32*1024, []int{512}, true, constant(0.5))

	want := 20*math.Log10(0.5) - 20
	for ch := range 2 {
		st := p.Snapshot().Channel(ch)
		assert.InDelta(t, want, st.PeakDB, 1e-9)
		assert.InDelta(t, want, st.RmsDB, 1e-6)
		assert.Zero(t, st.Overflows)
		assert.Equal(t, 200, st.CrestFactorTenthsDB)
	}
}

func TestPipelineSineReadings(t *testing.T) {
	p := newPipeline(t, WithChannels(1))

	sine := testutil.DeterministicSine(1000, 48000, 0.8, 48*1024)
	feed(p, len(sine), []int{480}, true, func(_, idx int) float64 { return sine[idx] })

	st := p.Snapshot().Channel(0)
	assert.InDelta(t, 20*math.Log10(0.8), st.PeakDB, 0.01)
	assert.InDelta(t, 20*math.Log10(0.8/math.Sqrt2), st.RmsDB, 0.05)
}

func TestPipelineIndependentOfBlockSplit(t *testing.T) {
	splits := [][]int{{1024}, {256}, {100, 300, 1, 623}, {1000}, {17}}
	gen := func(ch, idx int) float64 {
		return 0.9 * math.Sin(float64(idx)*0.013*float64(ch+1)) * math.Exp(-float64(idx)/20000)
	}

	var want *ballistics.Snapshot
	for _, split := range splits {
		p := newPipeline(t)
		feed(p, 20*1024, split, true, gen)

		got := p.Snapshot()
		if want == nil {
			want = got
			continue
		}

		assert.Equal(t, want, got, "split %v", split)
	}
}

func TestPipelineGainAndDither(t *testing.T) {
	p := newPipeline(t, WithChannels(1), WithMixMode(true), WithGain(6), WithDitherSeed(1))

	block := [][]float64{make([]float64, 1024)}
	for i := range block[0] {
		block[0][i] = 0.25
	}
	p.Process(block)

	gain := core.DBToLinear(6)
	step := math.Exp2(-23)
	sum := 0.0
	for i, v := range block[0] {
		// first-order error feedback moves a sample by less than 3 LSB
		require.InDelta(t, 0.25*gain, v, 3*step, "sample %d", i)
		require.InDelta(t, math.Round(v/step), v/step, 1e-6, "sample %d off the 24-bit grid", i)
		sum += v - 0.25*gain
	}

	// the fed-back errors cancel, leaving at most 1.5 LSB over the block
	assert.InDelta(t, 0.0, sum/float64(len(block[0])), 0.01*step, "mean error")

	feed(p, 16*1024, []int{1024}, true, constant(0.25))
	assert.InDelta(t, 20*math.Log10(0.25*gain), p.Snapshot().Channel(0).PeakDB, 1e-4)
}

func TestPipelineGainBypass(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"mix mode off", []Option{WithGain(6)}},
		{"zero gain", []Option{WithMixMode(true)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, tt.opts...)

			in := testutil.DeterministicNoise(7, 0.5, 512)
			block := [][]float64{append([]float64(nil), in...), append([]float64(nil), in...)}
			p.Process(block)

			assert.Equal(t, in, block[0])
			assert.Equal(t, in, block[1])
		})
	}
}

func TestPipelineGainAboveFullScaleOverflows(t *testing.T) {
	p := newPipeline(t, WithChannels(1))
	p.SetMixMode(true)
	p.SetGain(12)
	assert.Equal(t, 12, p.Gain())

	feed(p, 8*1024, []int{1024}, true, constant(0.5))

	st := p.Snapshot().Channel(0)
	assert.Greater(t, st.PeakDB, 0.0)
	assert.Positive(t, st.Overflows)
}

func TestPipelineSetGainClamps(t *testing.T) {
	p := newPipeline(t, WithChannels(1), WithMixMode(true))

	p.SetGain(400)
	assert.Equal(t, MaxGainDB, p.Gain())

	p.SetGain(-400)
	assert.Equal(t, MinGainDB, p.Gain())

	p.SetGain(MaxGainDB)
	block := [][]float64{testutil.DC(0.5, 256)}
	p.Process(block)
	for i, v := range block[0] {
		require.Greater(t, v, 0.0, "sample %d kept its sign", i)
	}
}

func TestPipelineDitherSettings(t *testing.T) {
	p := newPipeline(t, WithChannels(1),
		WithDitherType(dither.DitherRectangular),
		WithNoiseShaping(dither.Preset2SC),
		WithDitherLimit(true),
	)

	d := p.Ditherer()
	assert.Equal(t, dither.DitherRectangular, d.DitherType())
	assert.Equal(t, dither.Preset2SC, d.Preset())
	assert.True(t, d.Limit())

	require.NoError(t, p.SetBitDepth(16))
	d = p.Ditherer()
	assert.Equal(t, 16, d.BitDepth())
	assert.Equal(t, dither.Preset2SC, d.Preset(), "settings survive a bit-depth change")

	defaults := newPipeline(t).Ditherer()
	assert.Equal(t, dither.DitherTriangular, defaults.DitherType())
	assert.Equal(t, dither.PresetEFB, defaults.Preset())
	assert.False(t, defaults.Limit())
}

func TestPipelineDitherLimitKeepsFullScale(t *testing.T) {
	p := newPipeline(t, WithChannels(1), WithMixMode(true), WithGain(12), WithDitherLimit(true), WithDitherSeed(3))

	feed(p, 8*1024, []int{1024}, true, constant(0.5))

	st := p.Snapshot().Channel(0)
	assert.LessOrEqual(t, st.PeakDB, 0.0)
	assert.Positive(t, st.Overflows, "clipped samples still reach the threshold")
}

func TestPipelineSetBitDepth(t *testing.T) {
	p := newPipeline(t)

	require.NoError(t, p.SetBitDepth(16))
	assert.Equal(t, 16, p.BitDepth())
	assert.Error(t, p.SetBitDepth(40))
	assert.Equal(t, 16, p.BitDepth())
}

func TestPipelineLiveInputClearsExtraChannels(t *testing.T) {
	p := newPipeline(t, WithChannels(2))

	block := [][]float64{{1, 1}, {1, 1}, {5, 5}}
	p.Process(block)

	assert.Equal(t, []float64{1, 1}, block[1])
	assert.Equal(t, []float64{0, 0}, block[2])
}

func TestPipelineStop(t *testing.T) {
	p := newPipeline(t)

	feed(p, 1024, []int{512}, false, constant(0.1))
	p.Stop()
	p.Stop()

	assert.True(t, p.Stopped())
	feed(p, 1024, []int{512}, false, constant(0.1))
	assert.EqualValues(t, 1024, p.Ring().Written())

	assert.NoError(t, p.Run(context.Background()))
}

func TestPipelineRun(t *testing.T) {
	p := newPipeline(t, WithChannels(1))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	feed(p, 2048, []int{512}, false, constant(0.5))

	select {
	case e := <-p.Events():
		assert.Equal(t, EventMetersUpdated, e)
	case <-time.After(5 * time.Second):
		t.Fatal("no meter update")
	}

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestPipelineSnapshotsNeverGoBack(t *testing.T) {
	p := newPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		_ = p.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		defer p.Stop()
		feed(p, 200*1024, []int{333}, false, constant(0.3))
	}()

	go func() {
		defer wg.Done()

		var last uint64
		for !p.Stopped() {
			seq := p.Snapshot().Sequence
			if seq < last {
				t.Errorf("sequence went back from %d to %d", last, seq)
				return
			}
			last = seq
		}
	}()

	wg.Wait()
}

func TestPipelineDropsOverwrittenChunks(t *testing.T) {
	p := newPipeline(t, WithChannels(1), WithRingCapacity(1536))

	feed(p, 10*1024, []int{1024}, false, constant(0.5))

	assert.Equal(t, 1, p.Drain())
	assert.EqualValues(t, 9, p.Dropped())
	assert.Zero(t, p.Drain())
}

func TestPipelineDetachedDisplay(t *testing.T) {
	p := newPipeline(t, WithChannels(1))
	p.SetDisplayAttached(false)
	assert.False(t, p.DisplayAttached())

	before := p.Snapshot().Sequence
	feed(p, 8*1024, []int{1024}, true, constant(0.5))
	assert.Equal(t, before, p.Snapshot().Sequence)

	p.SetDisplayAttached(true)
	snap := p.Snapshot()
	assert.Equal(t, before+1, snap.Sequence)
	assert.Equal(t, core.SilenceDB, snap.Channel(0).PeakDB)

	feed(p, 4*1024, []int{1024}, true, constant(0.5))
	assert.InDelta(t, 20*math.Log10(0.5), p.Snapshot().Channel(0).PeakDB, 1e-9)
}

func TestPipelineChunkSink(t *testing.T) {
	var chunks [][]float64
	sink := func(b *buffer.Buffer) {
		chunks = append(chunks, append([]float64(nil), b.Channel(0)...))
	}

	p := newPipeline(t, WithChannels(1), WithChunkSize(256), WithChunkSink(sink))
	p.SetDisplayAttached(false)

	feed(p, 1024, []int{100}, true, func(_, idx int) float64 { return float64(idx) })

	require.Len(t, chunks, 4)
	for k, chunk := range chunks {
		assert.Equal(t, testutil.Ramp(256*k, 256), chunk, "chunk %d", k)
	}
}

func TestPipelineSettersKeepOrResetMeters(t *testing.T) {
	p := newPipeline(t, WithChannels(1))
	feed(p, 8*1024, []int{1024}, true, constant(0.5))

	p.SetCrestFactor(14)
	assert.Equal(t, 14, p.CrestFactor())
	assert.InDelta(t, 20*math.Log10(0.5), p.Snapshot().Channel(0).PeakDB, 1e-9)

	feed(p, 1024, []int{1024}, true, constant(0.5))
	st := p.Snapshot().Channel(0)
	assert.Equal(t, 140, st.CrestFactorTenthsDB)
	assert.Less(t, st.RmsDB, 20*math.Log10(0.5), "RMS releases toward the lower scale")

	p.SetTransientMode(true)
	snap := p.Snapshot()
	assert.True(t, p.TransientMode())
	assert.True(t, snap.TransientMode)
	assert.Equal(t, 14, snap.CrestFactor)
	assert.Equal(t, core.SilenceDB, snap.Channel(0).PeakDB)

	p.Reset()
	assert.Zero(t, p.Snapshot().Channel(0).Overflows)
}

func TestPipelineResetRacingUpdates(t *testing.T) {
	p := newPipeline(t)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		feed(p, 100*1024, []int{512}, true, constant(1.0))
	}()

	go func() {
		defer wg.Done()
		for range 100 {
			p.Reset()
			p.SetCrestFactor(20)
			p.SetCrestFactor(0)
		}
	}()

	wg.Wait()

	for _, st := range p.Snapshot().Channels {
		testutil.RequireMeterValues(t, st.PeakDB, st.PeakHoldDB, st.RmsDB)
		assert.GreaterOrEqual(t, st.PeakHoldDB, st.PeakDB)
		assert.GreaterOrEqual(t, st.Overflows, 0)
	}
}

func TestMeasure(t *testing.T) {
	ring, err := buffer.NewRing(1, 64, 16)
	require.NoError(t, err)

	ring.AddSamples([][]float64{{0.5, -1, 0.5, -1}}, 4)

	m := Measure(ring.Cursor(), 0, 4, 0, 0.1)
	assert.Equal(t, 1.0, m.Peak)
	assert.InDelta(t, math.Sqrt(0.625), m.RMS, 1e-12)
	assert.Equal(t, 2, m.Overflows)
	assert.Equal(t, 0.1, m.Seconds)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "MetersUpdated", EventMetersUpdated.String())
	assert.Equal(t, "ValidationStopped", EventValidationStopped.String())
	assert.Equal(t, "Event(9)", Event(9).String())
}
