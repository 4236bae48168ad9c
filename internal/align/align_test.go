package align

import "testing"

func TestUpDown(t *testing.T) {
	g := Granularity()
	if g <= 0 {
		t.Fatalf("Granularity() = %d, want > 0", g)
	}

	cases := []struct {
		n        int64
		wantUp   int64
		wantDown int64
	}{
		{0, 0, 0},
		{1, g, 0},
		{g, g, g},
		{g + 1, 2 * g, g},
		{2 * g, 2 * g, 2 * g},
	}

	for _, c := range cases {
		if got := Up(c.n); got != c.wantUp {
			t.Errorf("Up(%d) = %d, want %d", c.n, got, c.wantUp)
		}

		if got := Down(c.n); got != c.wantDown {
			t.Errorf("Down(%d) = %d, want %d", c.n, got, c.wantDown)
		}
	}
}

func TestGranularityCached(t *testing.T) {
	a := Granularity()
	b := Granularity()

	if a != b {
		t.Errorf("Granularity() not stable across calls: %d != %d", a, b)
	}
}
