package metering

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logrus.NewEntry(logger)
}

func newPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()

	p, err := NewPipeline(append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)

	return p
}

// feed pushes total samples per channel through p in blocks of the given
// sizes, cycling through sizes, and drains after every block when drain
// is set.
func feed(p *Pipeline, total int, sizes []int, drain bool, gen func(ch, idx int) float64) {
	pos := 0
	for i := 0; pos < total; i++ {
		n := min(sizes[i%len(sizes)], total-pos)

		block := make([][]float64, p.Channels())
		for ch := range block {
			block[ch] = make([]float64, n)
			for idx := range n {
				block[ch][idx] = gen(ch, pos+idx)
			}
		}

		p.Process(block)
		pos += n

		if drain {
			p.Drain()
		}
	}
}

func constant(v float64) func(int, int) float64 {
	return func(int, int) float64 { return v }
}

// constStreamer is a beep.Streamer producing a fixed number of constant
// frames.
type constStreamer struct {
	left, right float64
	remaining   int
}

func (s *constStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.remaining <= 0 {
		return 0, false
	}

	n := min(len(samples), s.remaining)
	for i := range n {
		samples[i] = [2]float64{s.left, s.right}
	}
	s.remaining -= n

	return n, true
}

func (s *constStreamer) Err() error { return nil }
