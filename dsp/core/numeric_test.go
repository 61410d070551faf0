package core

import (
	"math"
	"testing"
)

func TestNearlyEqual(t *testing.T) {
	if !NearlyEqual(1.0, 1.0+1e-13, 1e-12) {
		t.Fatal("expected values to be nearly equal")
	}
	if NearlyEqual(1.0, 1.1, 1e-3) {
		t.Fatal("expected values to differ")
	}
}

func TestDBConversions(t *testing.T) {
	db := LevelToDB(DBToLinear(-6))
	if !NearlyEqual(db, -6, 1e-10) {
		t.Fatalf("LevelToDB(DBToLinear(-6)) = %v, want -6", db)
	}
	if !NearlyEqual(DBToLinear(20), 10, 1e-12) {
		t.Fatalf("DBToLinear(20) = %v, want 10", DBToLinear(20))
	}
}

func TestLevelToDBFloor(t *testing.T) {
	for _, level := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := LevelToDB(level); got != SilenceDB {
			t.Errorf("LevelToDB(%v) = %v, want %v", level, got, SilenceDB)
		}
	}

	if got := LevelToDB(1); got != 0 {
		t.Errorf("LevelToDB(1) = %v, want 0", got)
	}
}

func TestLevelToDBMonotonic(t *testing.T) {
	prev := LevelToDB(0)
	for i := 1; i <= 2000; i++ {
		level := math.Pow(10, float64(i-1000)/50)
		got := LevelToDB(level)
		if got < prev {
			t.Fatalf("LevelToDB not monotonic at %v: %v < %v", level, got, prev)
		}
		prev = got
	}
}
