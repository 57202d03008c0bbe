package server

import "testing"

func TestKWToWatts(t *testing.T) {
	cases := []struct {
		kw   float64
		want int64
	}{
		{5.4, 5400},
		{0.001, 1},
		{0.0004, 0},
		{0.0005, 1},
		{320, 320000},
	}
	for _, tc := range cases {
		if got := kwToWatts(tc.kw); got != tc.want {
			t.Fatalf("kwToWatts(%v) = %d, want %d", tc.kw, got, tc.want)
		}
	}
}

func TestWattsToKWRoundTrip(t *testing.T) {
	for _, watts := range []int64{1, 999, 1000, 5400, 320000} {
		if got := kwToWatts(wattsToKW(watts)); got != watts {
			t.Fatalf("round trip of %d watts produced %d", watts, got)
		}
	}
}
