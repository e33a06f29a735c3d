package dataset

import (
	"sort"

	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

// VarStats summarizes one variable over the requested range. No-data rows
// are excluded; Count is the number of valid samples.
type VarStats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Count  int     `json:"count"`
}

// statisticsOf aggregates a series per variable, failing when the range held
// no valid sample at all.
func statisticsOf(points []Point) (map[string]VarStats, error) {
	stats := statsFromPoints(points)
	if len(stats) == 0 {
		return nil, errs.Validation("no valid data points in range")
	}
	return stats, nil
}

// statsFromPoints aggregates a series per variable.
func statsFromPoints(points []Point) map[string]VarStats {
	samples := map[string][]float64{}
	order := []string{}
	for _, p := range points {
		for i, name := range p.Names {
			v := p.Values[i]
			if v == reducers.NoData {
				continue
			}
			if _, seen := samples[name]; !seen {
				order = append(order, name)
			}
			samples[name] = append(samples[name], v)
		}
	}

	out := make(map[string]VarStats, len(order))
	for _, name := range order {
		out[name] = calcStats(samples[name])
	}
	return out
}

func calcStats(vs []float64) VarStats {
	if len(vs) == 0 {
		return VarStats{}
	}
	s := VarStats{Min: vs[0], Max: vs[0], Count: len(vs)}
	var sum float64
	for _, v := range vs {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = round2(sum / float64(len(vs)))
	s.Min = round2(s.Min)
	s.Max = round2(s.Max)

	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	s.Median = round2(sorted[len(sorted)/2])
	return s
}
