package bloodgas

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnionGap(t *testing.T) {
	ag := AnionGap(140, 104, 24)
	if !almostEqual(ag, 12) {
		t.Fatalf("AnionGap(140,104,24) = %v, want 12", ag)
	}
}

func TestAnionGapAlbuminCorrected(t *testing.T) {
	// Albumin 20 g/L adds 0.25*(40-20) = 5 to the gap.
	got := AnionGapAlbuminCorrected(12, 20)
	if !almostEqual(got, 17) {
		t.Fatalf("AnionGapAlbuminCorrected(12,20) = %v, want 17", got)
	}
	// Normal albumin leaves the gap unchanged.
	if got := AnionGapAlbuminCorrected(12, 40); !almostEqual(got, 12) {
		t.Fatalf("AnionGapAlbuminCorrected(12,40) = %v, want 12", got)
	}
}

func TestWintersExpectedPCO2(t *testing.T) {
	// HCO3 12 mmol/L: expected pCO2 = 1.5*12+8 = 26 mmHg = 3.4667 kPa.
	expected, tol := WintersExpectedPCO2(12)
	if !almostEqual(expected, 26.0/7.5) {
		t.Fatalf("expected = %v, want %v", expected, 26.0/7.5)
	}
	if !almostEqual(tol, 2.0/7.5) {
		t.Fatalf("tolerance = %v, want %v", tol, 2.0/7.5)
	}
}

func TestStewart(t *testing.T) {
	sida := StewartSIDa(140, 4, 104, 2)
	if !almostEqual(sida, 38) {
		t.Fatalf("SIDa = %v, want 38", sida)
	}
	side := StewartSIDe(24, 40, 7.40)
	want := 24 + 40*(0.123*7.40-0.631)
	if !almostEqual(side, want) {
		t.Fatalf("SIDe = %v, want %v", side, want)
	}
	if sig := StewartSIG(sida, side); !almostEqual(sig, sida-side) {
		t.Fatalf("SIG = %v, want %v", sig, sida-side)
	}
}

func TestPressureConversionFactors(t *testing.T) {
	if !almostEqual(KPaPerMmHg*MmHgPerKPa, 1) {
		t.Fatalf("conversion factors are not inverses: %v * %v", KPaPerMmHg, MmHgPerKPa)
	}
}
