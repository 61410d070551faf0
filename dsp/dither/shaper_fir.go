package dither

// FIRShaper implements error-feedback noise shaping with FIR coefficients
// over a circular history of past quantization errors. Coefficient i
// weights the error recorded i+1 samples ago.
type FIRShaper struct {
	coeffs  []float64
	history []float64
	pos     int // slot of the most recent error
}

// NewFIRShaper creates a new FIR noise shaper with the given coefficients.
// A nil or empty slice creates a pass-through (no shaping).
func NewFIRShaper(coeffs []float64) *FIRShaper {
	c := make([]float64, len(coeffs))
	copy(c, coeffs)

	return &FIRShaper{
		coeffs:  c,
		history: make([]float64, len(coeffs)),
	}
}

// Order returns the number of feedback taps.
func (s *FIRShaper) Order() int {
	return len(s.coeffs)
}

// Shape subtracts the weighted past errors from input.
func (s *FIRShaper) Shape(input float64) float64 {
	order := len(s.coeffs)
	for i := range order {
		idx := (s.pos - i + order) % order
		input -= s.coeffs[i] * s.history[idx]
	}

	return input
}

// RecordError stores the quantization error for the current sample.
// Must be called once after each Shape call.
func (s *FIRShaper) RecordError(quantizationError float64) {
	order := len(s.coeffs)
	if order == 0 {
		return
	}

	s.pos = (s.pos + 1) % order
	s.history[s.pos] = quantizationError
}

// Reset clears the error history.
func (s *FIRShaper) Reset() {
	for i := range s.history {
		s.history[i] = 0
	}
	s.pos = 0
}
