package dataset

import (
	"context"
	"math"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/dates"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/geo"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

// spatialReducer picks the backend reducer: points sample the containing
// pixel, regions aggregate with the requested statistic.
func spatialReducer(q Query) string {
	if q.IsPoint {
		return "first"
	}
	return reducers.ForStat(q.Stat)
}

func window(r dates.Range) backend.Window {
	return backend.Window{Start: r.StartString(), End: r.EndString()}
}

// fetchSeries reduces every granule of the range and indexes values by date.
func fetchSeries(ctx context.Context, c backend.Client, collection, band string, q Query, scaleM int) (map[string]*float64, error) {
	values, err := c.ReduceSeries(ctx, collection, band, window(q.Range), q.Region, spatialReducer(q), scaleM)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*float64, len(values))
	for _, v := range values {
		byDate[v.Date] = v.Value
	}
	return byDate, nil
}

// valueOrNoData applies conv to a present value and substitutes the sentinel
// for absent ones.
func valueOrNoData(v *float64, conv func(float64) float64) float64 {
	if v == nil {
		return reducers.NoData
	}
	if conv == nil {
		return round2(*v)
	}
	return round2(conv(*v))
}

// Export span caps. Multiband stacks tolerate a year of daily bands; zip
// archives of per-step files stay small.
const (
	maxMultibandDaily   = 366
	maxMultibandMonthly = 60
	maxZipDaily         = 31
	maxZipMonthly       = 60
)

type exportParams struct {
	Collection   string
	Band         string
	Cadence      string
	ResolutionM  int
	TemporalStat string
	Transform    *backend.Transform
	Variable     string
	MaxZipDaily  int // override, 0 means default
}

// buildExport validates the span, asks the backend to materialize the
// raster and shapes the result.
func buildExport(ctx context.Context, c backend.Client, q ExportQuery, p exportParams) (*Export, error) {
	mode := q.Mode
	if mode == "" {
		mode = ModeMultiband
	}
	if mode != ModeMultiband && mode != ModeZip {
		return nil, errs.Validation("unsupported export mode: %q", q.Mode)
	}

	var steps []string
	switch p.Cadence {
	case CadenceMonthly:
		for _, m := range q.Range.EachMonth() {
			steps = append(steps, m.Format("2006-01"))
		}
	default:
		for _, d := range q.Range.EachDay() {
			steps = append(steps, d.Format(dates.Layout))
		}
	}

	if err := checkExportSpan(mode, p, len(steps)); err != nil {
		return nil, err
	}

	scaleM := p.ResolutionM
	if q.ResolutionDeg != nil {
		if *q.ResolutionDeg < 0.01 || *q.ResolutionDeg > 0.5 {
			return nil, errs.Validation("resolution_deg must be in [0.01, 0.5]")
		}
		scaleM = int(*q.ResolutionDeg * geo.MetersPerDegree)
	}
	clip := true
	if q.Clip != nil {
		clip = *q.Clip
	}

	format := "tif"
	if mode == ModeZip {
		format = "zip"
	}
	url, err := c.ExportURL(ctx, backend.ExportSpec{
		Collection:   p.Collection,
		Band:         p.Band,
		Steps:        steps,
		TemporalStat: p.TemporalStat,
		Region:       q.Region,
		ScaleM:       scaleM,
		Clip:         clip,
		Transform:    p.Transform,
		Format:       format,
	})
	if err != nil {
		return nil, err
	}

	bands := make([]string, len(steps))
	for i, s := range steps {
		bands[i] = p.Variable + "_" + s
	}
	return &Export{
		Mode:          mode,
		URL:           url,
		Bands:         bands,
		Count:         len(steps),
		Variable:      p.Variable,
		ResolutionDeg: roundN(float64(scaleM)/geo.MetersPerDegree, 6),
		Format:        format,
	}, nil
}

func checkExportSpan(mode string, p exportParams, steps int) error {
	var limit int
	switch {
	case mode == ModeMultiband && p.Cadence == CadenceMonthly:
		limit = maxMultibandMonthly
	case mode == ModeMultiband:
		limit = maxMultibandDaily
	case p.Cadence == CadenceMonthly:
		limit = maxZipMonthly
	default:
		limit = maxZipDaily
		if p.MaxZipDaily > 0 {
			limit = p.MaxZipDaily
		}
	}
	if steps > limit {
		return errs.Validation("%s export limited to %d %s steps, got %d",
			mode, limit, p.Cadence, steps)
	}
	return nil
}

func roundN(v float64, digits int) float64 {
	m := math.Pow10(digits)
	return math.Round(v*m) / m
}
