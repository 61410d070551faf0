package average

import "fmt"

// Averager computes a simple moving average over the last Size samples.
type Averager struct {
	samples []float64
	pos     int
	sum     float64
	valid   bool
	initial float64
}

// New returns an Averager holding size samples, all pre-filled with
// initial. The average is defined immediately but not [Averager.Valid]
// until size samples have been added.
func New(size int, initial float64) (*Averager, error) {
	if size < 1 {
		return nil, fmt.Errorf("average: size must be >= 1: %d", size)
	}

	a := &Averager{
		samples: make([]float64, size),
		initial: initial,
	}
	a.Reset()

	return a, nil
}

// AddSample replaces the oldest sample with v.
func (a *Averager) AddSample(v float64) {
	a.sum += v - a.samples[a.pos]
	a.samples[a.pos] = v

	a.pos++
	if a.pos == len(a.samples) {
		a.pos = 0
		a.valid = true
	}
}

// Valid reports whether the window has been filled at least once.
func (a *Averager) Valid() bool {
	return a.valid
}

// SimpleMovingAverage returns the mean of the window. Before Valid it is
// biased toward the initial fill value; callers should check Valid first.
func (a *Averager) SimpleMovingAverage() float64 {
	return a.sum / float64(len(a.samples))
}

// Size returns the window length.
func (a *Averager) Size() int {
	return len(a.samples)
}

// Reset refills the window with the initial value and clears validity.
func (a *Averager) Reset() {
	for i := range a.samples {
		a.samples[i] = a.initial
	}

	a.sum = a.initial * float64(len(a.samples))
	a.pos = 0
	a.valid = false
}
