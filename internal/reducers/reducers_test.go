package reducers

import "testing"

func TestForStat(t *testing.T) {
	cases := map[string]string{
		"mean":   "mean",
		"min":    "min",
		"max":    "max",
		"median": "median",
		"sum":    "sum",
		"stddev": "stdDev",
		"std":    "stdDev",
	}
	for stat, want := range cases {
		if got := ForStat(stat); got != want {
			t.Errorf("ForStat(%q) = %q, want %q", stat, got, want)
		}
	}
}

func TestForStatFallsBackToMean(t *testing.T) {
	if got := ForStat("percentile_95"); got != "mean" {
		t.Errorf("ForStat(unknown) = %q, want mean", got)
	}
}

func TestKnown(t *testing.T) {
	if !Known("median") {
		t.Error("median should be known")
	}
	if Known("variance") {
		t.Error("variance should not be known")
	}
}
