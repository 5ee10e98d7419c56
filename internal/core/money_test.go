package core

import (
	"testing"
	"time"
)

func TestRoundCents(t *testing.T) {
	cases := []struct {
		in  float64
		out float64
	}{
		{10.004, 10.00},
		{10.005, 10.01}, // half-up
		{10.006, 10.01},
		{94.20083333, 94.20},
		{0, 0},
		{1000 * 0.01, 10.00},
	}
	for _, tc := range cases {
		if got := RoundCents(tc.in); got != tc.out {
			t.Fatalf("RoundCents(%v) = %v, want %v", tc.in, got, tc.out)
		}
	}
}

func TestCeilCents(t *testing.T) {
	cases := []struct {
		in  float64
		out float64
	}{
		{94.20083333, 94.21},
		{94.21, 94.21},
		{10.001, 10.01},
		{10.0, 10.0},
	}
	for _, tc := range cases {
		if got := CeilCents(tc.in); got != tc.out {
			t.Fatalf("CeilCents(%v) = %v, want %v", tc.in, got, tc.out)
		}
	}
}

func TestApproxZero(t *testing.T) {
	if !ApproxZero(0.01) || !ApproxZero(-0.01) || !ApproxZero(0) {
		t.Fatal("amounts within one cent should count as zero")
	}
	if ApproxZero(0.02) || ApproxZero(-0.02) {
		t.Fatal("amounts beyond one cent should not count as zero")
	}
}

func TestAddMonths(t *testing.T) {
	start, err := ParseDate("2024-01-15")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if got := FormatDate(AddMonths(start, 1)); got != "2024-02-15" {
		t.Fatalf("expected 2024-02-15, got %s", got)
	}
	if got := FormatDate(AddMonths(start, 12)); got != "2025-01-15" {
		t.Fatalf("expected 2025-01-15, got %s", got)
	}
}

func TestAddMonthsNormalizes(t *testing.T) {
	// Native semantics: no end-of-month clamping.
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(AddMonths(start, 1)); got != "2024-03-02" {
		t.Fatalf("expected 2024-03-02, got %s", got)
	}
}
