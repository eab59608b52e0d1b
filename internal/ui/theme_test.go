package ui

import (
	"strings"
	"testing"
)

func TestBar(t *testing.T) {
	tests := []struct {
		pct        float64
		width      int
		wantFilled int
	}{
		{0, 10, 0},
		{0.5, 10, 5},
		{1, 10, 10},
		{1.7, 10, 10},
		{-0.2, 10, 0},
		{0.25, 4, 1},
	}
	for _, tt := range tests {
		got := Bar(tt.pct, tt.width)
		if n := strings.Count(got, "█"); n != tt.wantFilled {
			t.Errorf("Bar(%v, %d) filled = %d, want %d", tt.pct, tt.width, n, tt.wantFilled)
		}
		if n := strings.Count(got, "█") + strings.Count(got, "░"); n != tt.width {
			t.Errorf("Bar(%v, %d) has %d cells", tt.pct, tt.width, n)
		}
	}
	if Bar(0.5, 0) != "" {
		t.Error("zero width bar should be empty")
	}
}

func TestSigned(t *testing.T) {
	if !strings.Contains(Signed(5), "+5") {
		t.Errorf("Signed(5) = %q", Signed(5))
	}
	if !strings.Contains(Signed(-5), "-5") {
		t.Errorf("Signed(-5) = %q", Signed(-5))
	}
}

func TestLabelValue(t *testing.T) {
	if got := LabelValue("Level", 3); !strings.Contains(got, "Level:") || !strings.HasSuffix(got, " 3") {
		t.Errorf("LabelValue = %q", got)
	}
}
