// Package compare contrasts one variable of a dataset across two date
// ranges: summary statistics per period, the change between them, and the
// two series aligned row by row.
package compare

import (
	"context"
	"math"
	"sort"

	"github.com/yieldera/climate-datahub/internal/dataset"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

// Stats summarizes one period of the compared variable.
type Stats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Sum    float64 `json:"sum"`
	Count  int     `json:"count"`
}

// Change is the delta between the two period means.
type Change struct {
	Absolute float64 `json:"absolute"`
	Percent  float64 `json:"percent"`
	Severity string  `json:"severity"`
}

// AlignedPoint pairs the i-th rows of both periods. No-data values pass
// through unchanged so consumers can see gaps.
type AlignedPoint struct {
	Index  int     `json:"index"`
	Date1  string  `json:"date_1"`
	Date2  string  `json:"date_2"`
	Value1 float64 `json:"value_1"`
	Value2 float64 `json:"value_2"`
}

type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Result struct {
	Dataset  dataset.ID     `json:"dataset"`
	Variable string         `json:"variable"`
	Period1  Period         `json:"period_1"`
	Period2  Period         `json:"period_2"`
	Stats1   Stats          `json:"stats_1"`
	Stats2   Stats          `json:"stats_2"`
	Change   Change         `json:"change"`
	Aligned  []AlignedPoint `json:"aligned"`
}

// Run fetches both periods and builds the comparison. The variable defaults
// to the dataset's primary variable.
func Run(ctx context.Context, ex dataset.Extractor, id dataset.ID, q1, q2 dataset.Query, variable string) (*Result, error) {
	meta := ex.Metadata()
	if variable == "" {
		variable = meta.Primary
	}
	if !knownVariable(meta, variable) {
		return nil, errs.Validation("dataset %s has no variable %q", id, variable)
	}
	q1.Variables = []string{variable}
	q2.Variables = []string{variable}

	p1, err := ex.Timeseries(ctx, q1)
	if err != nil {
		return nil, err
	}
	p2, err := ex.Timeseries(ctx, q2)
	if err != nil {
		return nil, err
	}

	s1 := periodStats(p1, variable)
	s2 := periodStats(p2, variable)

	return &Result{
		Dataset:  id,
		Variable: variable,
		Period1:  Period{Start: q1.Range.StartString(), End: q1.Range.EndString()},
		Period2:  Period{Start: q2.Range.StartString(), End: q2.Range.EndString()},
		Stats1:   s1,
		Stats2:   s2,
		Change:   change(s1, s2, variable),
		Aligned:  align(p1, p2, variable),
	}, nil
}

func knownVariable(meta dataset.Metadata, name string) bool {
	for _, v := range meta.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

func periodStats(points []dataset.Point, variable string) Stats {
	var vs []float64
	for _, p := range points {
		if v, ok := p.Get(variable); ok && v != reducers.NoData {
			vs = append(vs, v)
		}
	}
	if len(vs) == 0 {
		return Stats{}
	}

	s := Stats{Min: vs[0], Max: vs[0], Count: len(vs)}
	for _, v := range vs {
		s.Sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = s.Sum / float64(len(vs))

	var variance float64
	for _, v := range vs {
		variance += (v - s.Mean) * (v - s.Mean)
	}
	variance /= float64(len(vs))
	s.StdDev = round2(math.Sqrt(variance))

	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	s.Median = round2(sorted[len(sorted)/2])

	s.Mean = round2(s.Mean)
	s.Min = round2(s.Min)
	s.Max = round2(s.Max)
	s.Sum = round2(s.Sum)
	return s
}

// change computes the mean delta and classifies its severity. A zero
// baseline mean yields a zero percent change rather than a division blowup.
func change(s1, s2 Stats, variable string) Change {
	abs := round2(s2.Mean - s1.Mean)
	var pct float64
	if s1.Mean != 0 {
		pct = round2((s2.Mean - s1.Mean) / s1.Mean * 100)
	}
	return Change{Absolute: abs, Percent: pct, Severity: severity(variable, pct)}
}

// severity buckets the relative change per variable family. Temperature
// trips at tighter thresholds than the water variables, so a small warming
// against a modest baseline mean still surfaces.
func severity(variable string, pctChange float64) string {
	if isTemperature(variable) {
		switch {
		case pctChange >= 15:
			return "much_hotter"
		case pctChange >= 5:
			return "hotter"
		case pctChange <= -15:
			return "much_cooler"
		case pctChange <= -5:
			return "cooler"
		}
		return "normal"
	}
	switch {
	case pctChange >= 30:
		return "much_wetter"
	case pctChange >= 15:
		return "wetter"
	case pctChange <= -30:
		return "much_drier"
	case pctChange <= -15:
		return "drier"
	}
	return "normal"
}

func isTemperature(variable string) bool {
	switch variable {
	case "tavg_c", "tmin_c", "tmax_c":
		return true
	}
	return false
}

// align zips both series by row index, truncating to the shorter one.
func align(p1, p2 []dataset.Point, variable string) []AlignedPoint {
	n := len(p1)
	if len(p2) < n {
		n = len(p2)
	}
	out := make([]AlignedPoint, 0, n)
	for i := 0; i < n; i++ {
		v1, _ := p1[i].Get(variable)
		v2, _ := p2[i].Get(variable)
		out = append(out, AlignedPoint{
			Index:  i,
			Date1:  p1[i].Date,
			Date2:  p2[i].Date,
			Value1: v1,
			Value2: v2,
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
