package helper

import "testing"

func TestPrecisionFromStep(t *testing.T) {
	cases := []struct {
		step string
		want int
	}{
		{"0.01", 2},
		{"0.1", 1},
		{"1", 0},
		{"10", 0},
		{"0.001", 3},
		{"0.5", 1},
	}
	for _, c := range cases {
		if got := PrecisionFromStep(c.step); got != c.want {
			t.Errorf("PrecisionFromStep(%q) = %d, want %d", c.step, got, c.want)
		}
	}
}

func TestRoundToStep(t *testing.T) {
	cases := []struct {
		v, step, want float64
	}{
		{1.27, 0.1, 1.2},
		{1.2999, 0.1, 1.2},
		{0.30000000000000004, 0.1, 0.3},
		{5.0, 1, 5},
		{5.9, 1, 5},
		{0.0555, 0.01, 0.05},
		{7, 0, 7},
	}
	for _, c := range cases {
		if got := RoundToStep(c.v, c.step); got != c.want {
			t.Errorf("RoundToStep(%v, %v) = %v, want %v", c.v, c.step, got, c.want)
		}
	}
}

func TestRoundToTick(t *testing.T) {
	cases := []struct {
		px, tick, want float64
	}{
		{2989.97, 0.01, 2989.97},
		{2990.004, 0.01, 2990},
		{2990.006, 0.01, 2990.01},
		{100.26, 0.5, 100.5},
		{100.24, 0.5, 100},
		{7, 0, 7},
	}
	for _, c := range cases {
		if got := RoundToTick(c.px, c.tick); got != c.want {
			t.Errorf("RoundToTick(%v, %v) = %v, want %v", c.px, c.tick, got, c.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	if got := FormatFloat(2978); got != "2978" {
		t.Errorf("FormatFloat(2978) = %q", got)
	}
	if got := FormatFloat(0.1); got != "0.1" {
		t.Errorf("FormatFloat(0.1) = %q", got)
	}
}

func TestParseFloat(t *testing.T) {
	if got := ParseFloat(""); got != 0 {
		t.Errorf("ParseFloat(\"\") = %v", got)
	}
	if got := ParseFloat("2980.5"); got != 2980.5 {
		t.Errorf("ParseFloat(\"2980.5\") = %v", got)
	}
	if got := ParseFloat("garbage"); got != 0 {
		t.Errorf("ParseFloat(\"garbage\") = %v", got)
	}
}
