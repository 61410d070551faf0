package core

import "math"

const defaultEpsilon = 1e-12

// SilenceDB is the sentinel reported for levels at or below the noise
// floor. It stands in for -Inf so that meter state always stays finite.
const SilenceDB = -9999.8

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// IsFinite reports whether x is neither NaN nor ±Inf.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LevelToDB converts a linear level to dB, floored at [SilenceDB].
// Zero, negative and non-finite levels all map to SilenceDB, so the
// result is finite and monotonically non-decreasing in level.
func LevelToDB(level float64) float64 {
	if level <= 0 || !IsFinite(level) {
		return SilenceDB
	}

	db := 20 * math.Log10(level)
	if db < SilenceDB {
		return SilenceDB
	}

	return db
}
