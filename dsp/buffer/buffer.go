package buffer

// Buffer is a channel-major block of float64 samples. All channels share
// one backing array and always have the same length.
type Buffer struct {
	backing []float64
	data    [][]float64
	length  int
}

// New returns a zero-filled Buffer with the given channel count and
// length. Negative arguments are treated as 0.
func New(channels, length int) *Buffer {
	b := &Buffer{}
	b.Resize(channels, length)

	return b
}

// Data returns the channel slices, suitable for passing where a
// [][]float64 block is expected.
func (b *Buffer) Data() [][]float64 {
	return b.data
}

// Channel returns the samples of channel ch, or nil when ch is out of range.
func (b *Buffer) Channel(ch int) []float64 {
	if ch < 0 || ch >= len(b.data) {
		return nil
	}
	return b.data[ch]
}

// Channels returns the number of channels.
func (b *Buffer) Channels() int {
	return len(b.data)
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	return b.length
}

// Resize changes the shape to channels × length, reusing the backing
// array when it is large enough. Contents are not preserved.
func (b *Buffer) Resize(channels, length int) {
	channels = max(channels, 0)
	length = max(length, 0)

	total := channels * length
	if total > cap(b.backing) {
		b.backing = make([]float64, total)
	}
	b.backing = b.backing[:total]

	if channels > cap(b.data) {
		b.data = make([][]float64, channels)
	}
	b.data = b.data[:channels]

	for ch := range b.data {
		b.data[ch] = b.backing[ch*length : (ch+1)*length : (ch+1)*length]
	}
	b.length = length
}

// Zero sets all samples to 0.
func (b *Buffer) Zero() {
	clear(b.backing)
}

// CopyFrom copies as much of src as fits, channel by channel, and zeroes
// anything src does not cover. It returns the number of samples copied
// per channel (the shortest source channel wins).
func (b *Buffer) CopyFrom(src [][]float64) int {
	copied := b.length
	for ch, dst := range b.data {
		if ch >= len(src) {
			clear(dst)
			copied = 0
			continue
		}

		n := copy(dst, src[ch])
		clear(dst[n:])
		copied = min(copied, n)
	}

	return copied
}
