package vrange

import (
	"math"
	"testing"
)

func TestScrollMultiplier(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		want  float64
	}{
		{"empty", 0, 1},
		{"small", 50_000, 1},
		{"at ceiling", MaxSafeScrollHeight, 1},
		{"just over", MaxSafeScrollHeight * 2, 2},
		{"million rows of 50", 50_000_000, 50_000_000.0 / 15_000_000.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScrollMultiplier(tt.total)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ScrollMultiplier(%v) = %v, want %v", tt.total, got, tt.want)
			}
			if got < 1 {
				t.Errorf("ScrollMultiplier(%v) = %v, must be >= 1", tt.total, got)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	m := ScrollMultiplier(50_000_000)
	if math.Abs(m-3.333333) > 1e-6 {
		t.Fatalf("multiplier = %v, want ~3.333333", m)
	}

	for _, dom := range []float64{0, 1, 123.5, 7_500_000, MaxSafeScrollHeight} {
		back := ToDOM(ToVirtual(dom, m), m)
		if math.Abs(back-dom) > 1e-6 {
			t.Errorf("round trip %v -> %v", dom, back)
		}
	}
}

func TestVirtualRange_Helpers(t *testing.T) {
	var nilRange *VirtualRange
	if nilRange.Len() != 0 || nilRange.Contains(0) {
		t.Error("nil range should be empty")
	}

	r := &VirtualRange{StartIndex: 5, EndIndex: 9}
	if r.Len() != 4 {
		t.Errorf("Len = %d, want 4", r.Len())
	}
	if !r.Contains(5) || !r.Contains(8) || r.Contains(9) || r.Contains(4) {
		t.Error("Contains bounds wrong")
	}

	empty := EmptyRange()
	if empty.Len() != 0 || empty.TotalHeight != 0 || len(empty.Items) != 0 {
		t.Errorf("EmptyRange = %+v", empty)
	}
}

func TestClampHeight(t *testing.T) {
	if got := ClampHeight(2 * MaxSafeScrollHeight); got != MaxSafeScrollHeight {
		t.Errorf("ClampHeight = %v", got)
	}
	if got := ClampHeight(10); got != 10 {
		t.Errorf("ClampHeight = %v", got)
	}
}

func TestEnumStrings(t *testing.T) {
	if AxisVertical.String() != "vertical" || AxisHorizontal.String() != "horizontal" {
		t.Error("axis strings")
	}
	if BehaviorInstant.String() != "instant" || BehaviorSmooth.String() != "smooth" {
		t.Error("behavior strings")
	}
}
