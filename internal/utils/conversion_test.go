package utils

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Fatalf("Clamp above = %v, want 3", got)
	}
	if got := Clamp(-1, 0, 3); got != 0 {
		t.Fatalf("Clamp below = %v, want 0", got)
	}
	if got := Clamp01(0.4); got != 0.4 {
		t.Fatalf("Clamp01 in range changed the value: %v", got)
	}
	if got := ClampInt64(7000, 500, 5000); got != 5000 {
		t.Fatalf("ClampInt64 above = %d, want 5000", got)
	}
}

func TestRoundToInt64(t *testing.T) {
	if got := RoundToInt64(1.5, 0); got != 2 {
		t.Fatalf("RoundToInt64(1.5) = %d, want 2", got)
	}
	if got := RoundToInt64(-1.5, 0); got != -2 {
		t.Fatalf("RoundToInt64(-1.5) = %d, want -2", got)
	}
	if got := RoundToInt64(math.NaN(), 42); got != 42 {
		t.Fatalf("NaN must collapse to the fallback, got %d", got)
	}
	if got := RoundToInt64(math.Inf(1), 42); got != 42 {
		t.Fatalf("+Inf must collapse to the fallback, got %d", got)
	}
}

func TestBpsToFraction(t *testing.T) {
	if got := BpsToFraction(30); got != 0.003 {
		t.Fatalf("BpsToFraction(30) = %v, want 0.003", got)
	}
	if got := BpsToFraction(10000); got != 1.0 {
		t.Fatalf("BpsToFraction(10000) = %v, want 1", got)
	}
}

func TestRelativeChange(t *testing.T) {
	if got := RelativeChange(130, 100); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("RelativeChange(130,100) = %v, want 0.3", got)
	}
	if got := RelativeChange(70, 100); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("RelativeChange(70,100) = %v, want 0.3", got)
	}
	if got := RelativeChange(0, 0); got != 0 {
		t.Fatalf("RelativeChange(0,0) = %v, want 0", got)
	}
	if got := RelativeChange(5, 0); !math.IsInf(got, 1) {
		t.Fatalf("RelativeChange(5,0) = %v, want +Inf", got)
	}
}
