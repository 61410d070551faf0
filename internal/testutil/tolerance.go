package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-kmeter/dsp/core"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair is further apart than eps, absolutely or relative to
// the larger magnitude (see core.NearlyEqual).
func RequireSliceNearlyEqual(t testing.TB, got, want []float64, eps float64) {
	t.Helper()
	require.Len(t, got, len(want))

	for i := range got {
		if core.NearlyEqual(got[i], want[i], eps) {
			continue
		}

		diff, _ := MaxAbsDiff(got, want)
		t.Fatalf("index %d: got %v, want %v (eps %g, max abs diff %g)", i, got[i], want[i], eps, diff)
	}
}

// RequireMeterValues fails t unless every value is a valid meter reading:
// finite and not below core.SilenceDB.
func RequireMeterValues(t testing.TB, dbs ...float64) {
	t.Helper()
	for i, v := range dbs {
		if !core.IsFinite(v) {
			t.Fatalf("value %d: non-finite reading %v", i, v)
		}
		if v < core.SilenceDB {
			t.Fatalf("value %d: %v below the silence floor", i, v)
		}
	}
}

// MaxAbsDiff returns the maximum absolute difference between two slices.
// Returns an error if the slices differ in length.
func MaxAbsDiff(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	maxDiff := 0.0
	for i := range a {
		maxDiff = max(maxDiff, math.Abs(a[i]-b[i]))
	}
	return maxDiff, nil
}
