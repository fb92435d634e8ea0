package weather

import (
	"testing"

	"github.com/i474232898/meteoviz/internal/common"
)

func TestDeltaMissingValues(t *testing.T) {
	x := common.Ptr(12.0)
	if Delta(x, nil, 0) != nil || Delta(nil, x, 0.1) != nil || Delta(nil, nil, 0) != nil {
		t.Fatalf("delta with a missing value must be nil")
	}
}

func TestDeltaEqualValues(t *testing.T) {
	if d := Delta(common.Ptr(100.0), common.Ptr(100.0), 0); d != nil {
		t.Fatalf("expected nil for equal values, got %v", *d)
	}
}

func TestDeltaExact(t *testing.T) {
	d := Delta(common.Ptr(282.15), common.Ptr(282.65), 0)
	if d == nil || *d != -0.5 {
		t.Fatalf("expected -0.5, got %v", d)
	}
}

func TestDeltaWithinTolerance(t *testing.T) {
	cases := []struct {
		a, b, tol float64
	}{
		{100, 101, 0.01},
		{-50, -50.4, 0.01},
		{1e6, 1e6 + 1, 1e-6},
		{0.5, 0.55, 0.1},
	}
	for _, tc := range cases {
		if d := Delta(common.Ptr(tc.a), common.Ptr(tc.b), tc.tol); d != nil {
			t.Fatalf("Delta(%v, %v, %v) = %v, want nil", tc.a, tc.b, tc.tol, *d)
		}
	}

	if d := Delta(common.Ptr(100.0), common.Ptr(90.0), 0.01); d == nil || *d != 10 {
		t.Fatalf("expected 10 outside tolerance, got %v", d)
	}
}
