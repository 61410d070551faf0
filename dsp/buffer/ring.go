package buffer

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
)

// ErrInvalidRing is returned by [NewRing] for an unusable geometry.
var ErrInvalidRing = errors.New("buffer: invalid ring geometry")

// Ring is a multichannel ring of samples shared between one producer and
// one consumer. The producer appends with [Ring.AddSamples]; the consumer
// reads through a [Cursor]. Slots hold float64 bits in atomic words, so
// concurrent access is race free; a window overwritten while it was being
// read is detected with [Cursor.Intact].
type Ring struct {
	channels  int
	capacity  int
	chunkSize int

	slots   [][]atomic.Uint64
	written atomic.Uint64
	// reserved runs ahead of written while AddSamples is storing slots.
	reserved atomic.Uint64
	ready    chan struct{}

	// consumer-owned
	scratch []float64
}

// NewRing allocates a ring holding capacity samples per channel.
// Capacity must be at least one chunk.
func NewRing(channels, capacity, chunkSize int) (*Ring, error) {
	switch {
	case channels < 1:
		return nil, fmt.Errorf("%w: channels must be >= 1: %d", ErrInvalidRing, channels)
	case chunkSize < 1:
		return nil, fmt.Errorf("%w: chunk size must be >= 1: %d", ErrInvalidRing, chunkSize)
	case capacity < chunkSize:
		return nil, fmt.Errorf("%w: capacity %d is smaller than chunk size %d", ErrInvalidRing, capacity, chunkSize)
	}

	r := &Ring{
		channels:  channels,
		capacity:  capacity,
		chunkSize: chunkSize,
		slots:     make([][]atomic.Uint64, channels),
		ready:     make(chan struct{}, 1),
		scratch:   make([]float64, capacity),
	}
	for ch := range r.slots {
		r.slots[ch] = make([]atomic.Uint64, capacity)
	}

	return r, nil
}

// Channels returns the channel count.
func (r *Ring) Channels() int { return r.channels }

// Capacity returns the number of samples held per channel.
func (r *Ring) Capacity() int { return r.capacity }

// ChunkSize returns the chunk length in samples.
func (r *Ring) ChunkSize() int { return r.chunkSize }

// Written returns the total number of samples written per channel.
func (r *Ring) Written() uint64 { return r.written.Load() }

// Chunks returns the number of chunk boundaries crossed so far.
func (r *Ring) Chunks() uint64 { return r.written.Load() / uint64(r.chunkSize) }

// Ready delivers a wake-up after a write that crossed at least one chunk
// boundary. Wake-ups coalesce; check [Ring.Chunks] for the actual count.
func (r *Ring) Ready() <-chan struct{} { return r.ready }

// AddSamples appends the first numSamples samples of every channel in
// block. Channels missing from block, or shorter than numSamples, are
// padded with silence. When numSamples exceeds the capacity only the last
// Capacity samples are stored, but the write counter still advances by
// numSamples. It returns the number of chunk boundaries crossed.
//
// AddSamples never blocks and never allocates. It must only be called
// from a single producer.
func (r *Ring) AddSamples(block [][]float64, numSamples int) int {
	if numSamples <= 0 {
		return 0
	}

	start := r.written.Load()
	end := start + uint64(numSamples)
	skip := max(numSamples-r.capacity, 0)

	// announce the overwrite before touching any slot
	r.reserved.Store(end)

	for ch, slots := range r.slots {
		var src []float64
		if ch < len(block) {
			src = block[ch]
		}

		pos := start + uint64(skip)
		for idx := skip; idx < numSamples; idx++ {
			var v float64
			if idx < len(src) {
				v = src[idx]
			}

			slots[pos%uint64(r.capacity)].Store(math.Float64bits(v))
			pos++
		}
	}

	r.written.Store(end)

	crossed := int(end/uint64(r.chunkSize) - start/uint64(r.chunkSize))
	if crossed > 0 {
		select {
		case r.ready <- struct{}{}:
		default:
		}
	}

	return crossed
}

// Cursor returns a cursor anchored at the newest write.
func (r *Ring) Cursor() Cursor {
	return Cursor{ring: r, end: r.written.Load()}
}

// CursorAt returns a cursor anchored at the absolute position end, the
// position one past the newest sample the cursor may read.
func (r *Ring) CursorAt(end uint64) Cursor {
	return Cursor{ring: r, end: end}
}

// Sample reads relative to the newest write. See [Cursor.Sample].
func (r *Ring) Sample(ch, index, preDelay int) float64 {
	return r.Cursor().Sample(ch, index, preDelay)
}

// Magnitude reads relative to the newest write. See [Cursor.Magnitude].
func (r *Ring) Magnitude(ch, length, preDelay int) float64 {
	return r.Cursor().Magnitude(ch, length, preDelay)
}

// RMSLevel reads relative to the newest write. See [Cursor.RMSLevel].
func (r *Ring) RMSLevel(ch, length, preDelay int) float64 {
	return r.Cursor().RMSLevel(ch, length, preDelay)
}

// CopyToBuffer reads relative to the newest write. See [Cursor.CopyTo].
func (r *Ring) CopyToBuffer(ch int, dest []float64, destOffset, length, preDelay int) int {
	return r.Cursor().CopyTo(ch, dest, destOffset, length, preDelay)
}

// Cursor reads a fixed region of ring history. All windows are measured
// backwards from the anchor: a window of length samples with pre-delay d
// covers positions [end-d-length, end-d). Positions before the start of
// the stream read as silence.
//
// A Cursor uses the ring's scratch space and belongs to the consumer; do
// not use cursors from several goroutines at once.
type Cursor struct {
	ring *Ring
	end  uint64
}

// End returns the absolute anchor position.
func (c Cursor) End() uint64 { return c.end }

// Sample returns the sample at position end-1-preDelay-index. Invalid
// arguments yield 0.
func (c Cursor) Sample(ch, index, preDelay int) float64 {
	r := c.ring
	if ch < 0 || ch >= r.channels || index < 0 || preDelay < 0 || index+preDelay >= r.capacity {
		return 0
	}

	back := uint64(1 + preDelay + index)
	if back > c.end {
		return 0
	}

	return r.load(ch, c.end-back)
}

// Magnitude returns the largest absolute sample value in the window.
func (c Cursor) Magnitude(ch, length, preDelay int) float64 {
	w := c.window(ch, length, preDelay)
	if w == nil {
		return 0
	}
	return vecmath.MaxAbs(w)
}

// RMSLevel returns the root mean square of the window.
func (c Cursor) RMSLevel(ch, length, preDelay int) float64 {
	w := c.window(ch, length, preDelay)
	if w == nil {
		return 0
	}
	return math.Sqrt(vecmath.DotProduct(w, w) / float64(len(w)))
}

// Overflows counts window samples whose magnitude reaches threshold.
func (c Cursor) Overflows(ch, length, preDelay int, threshold float64) int {
	w := c.window(ch, length, preDelay)

	count := 0
	for _, v := range w {
		if math.Abs(v) >= threshold {
			count++
		}
	}

	return count
}

// CopyTo copies the window of channel ch into dest starting at
// destOffset, oldest sample first. It returns the number of samples
// copied, which is 0 when the window or destination range is invalid.
func (c Cursor) CopyTo(ch int, dest []float64, destOffset, length, preDelay int) int {
	if destOffset < 0 || destOffset+length > len(dest) {
		return 0
	}

	w := c.window(ch, length, preDelay)

	return copy(dest[destOffset:], w)
}

// Intact reports whether no sample of the window has been overwritten
// by the producer, including a write still in progress. Check it after
// reading to validate the result.
func (c Cursor) Intact(length, preDelay int) bool {
	r := c.ring
	if length < 1 || preDelay < 0 || length+preDelay > r.capacity {
		return false
	}

	oldest := max(int64(c.end)-int64(preDelay+length), 0)

	return oldest >= int64(r.reserved.Load())-int64(r.capacity)
}

// window gathers the window into scratch in chronological order, or
// returns nil for invalid arguments.
func (c Cursor) window(ch, length, preDelay int) []float64 {
	r := c.ring
	if ch < 0 || ch >= r.channels || length < 1 || preDelay < 0 || length+preDelay > r.capacity {
		return nil
	}

	w := r.scratch[:length]
	first := int64(c.end) - int64(preDelay+length)

	for idx := range w {
		pos := first + int64(idx)
		if pos < 0 {
			w[idx] = 0
			continue
		}

		w[idx] = r.load(ch, uint64(pos))
	}

	return w
}

func (r *Ring) load(ch int, pos uint64) float64 {
	return math.Float64frombits(r.slots[ch][pos%uint64(r.capacity)].Load())
}
