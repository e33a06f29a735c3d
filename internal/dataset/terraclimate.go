package dataset

import (
	"context"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

// TerraClimate monthly climate and water balance, ~4.6 km grid. Temperature
// bands are stored as degC * 10.
const (
	terraCollection  = "IDAHO_EPSCOR/TERRACLIMATE"
	terraResolutionM = 4638
	terraStartDate   = "1958-01-01"
	terraMaxDays     = 5000

	terraTempScale = 0.1
)

type terraClimate struct {
	c backend.Client
}

func newTerraClimate(c backend.Client) *terraClimate { return &terraClimate{c: c} }

func (e *terraClimate) Metadata() Metadata {
	return Metadata{
		ID:          TerraClimate,
		Name:        "TerraClimate Monthly Climate",
		Description: "Monthly precipitation and temperature extremes.",
		Collection:  terraCollection,
		ResolutionM: terraResolutionM,
		Cadence:     CadenceMonthly,
		StartDate:   terraStartDate,
		Variables: []VariableMeta{
			{Name: "precip_mm", Unit: "mm", Description: "Monthly precipitation total"},
			{Name: "tmax_c", Unit: "degC", Description: "Monthly mean of daily maximum temperature"},
			{Name: "tmin_c", Unit: "degC", Description: "Monthly mean of daily minimum temperature"},
			{Name: "tavg_c", Unit: "degC", Description: "Midpoint of monthly min and max temperature"},
		},
		Primary: "precip_mm",
	}
}

func (e *terraClimate) MaxTimeseriesDays() int { return terraMaxDays }

func (e *terraClimate) Timeseries(ctx context.Context, q Query) ([]Point, error) {
	// tavg_c is derived from tmmx and tmmn, so requesting it pulls in both
	// temperature bands even when they are filtered out of the response.
	wantTavg := wantVar(q, "tavg_c")
	variables := []struct {
		name string
		band string
		conv func(float64) float64
	}{
		{"precip_mm", "pr", nil},
		{"tmax_c", "tmmx", func(v float64) float64 { return v * terraTempScale }},
		{"tmin_c", "tmmn", func(v float64) float64 { return v * terraTempScale }},
	}

	months := q.Range.EachMonth()
	points := make([]Point, 0, len(months))
	for _, m := range months {
		points = append(points, Point{Date: m.Format("2006-01")})
	}

	for _, v := range variables {
		needed := wantVar(q, v.name) || (wantTavg && v.name != "precip_mm")
		if !needed {
			continue
		}
		byDate, err := fetchSeries(ctx, e.c, terraCollection, v.band, q, terraResolutionM)
		if err != nil {
			return nil, err
		}
		for i, m := range months {
			raw := monthValue(byDate, m)
			if raw == nil {
				points[i].Set(v.name, reducers.NoData)
				continue
			}
			val := *raw
			if v.conv != nil {
				val = v.conv(val)
			}
			points[i].Set(v.name, round2(val))
		}
	}

	if wantTavg {
		for i := range points {
			tmin, okMin := points[i].Get("tmin_c")
			tmax, okMax := points[i].Get("tmax_c")
			if !okMin || !okMax || tmin == reducers.NoData || tmax == reducers.NoData {
				points[i].Set("tavg_c", reducers.NoData)
				continue
			}
			points[i].Set("tavg_c", round2((tmin+tmax)/2))
		}
	}
	return filterVars(points, q), nil
}

func (e *terraClimate) Statistics(ctx context.Context, q Query) (map[string]VarStats, error) {
	points, err := e.Timeseries(ctx, q)
	if err != nil {
		return nil, err
	}
	return statisticsOf(points)
}

func (e *terraClimate) ExportGeoTIFF(ctx context.Context, q ExportQuery) (*Export, error) {
	p := exportParams{
		Collection:   terraCollection,
		Band:         "pr",
		Cadence:      CadenceMonthly,
		ResolutionM:  terraResolutionM,
		TemporalStat: "sum",
		Variable:     "precip_mm",
	}
	switch q.Variable {
	case "", "precip_mm":
	case "tmax_c":
		p.Band, p.Variable = "tmmx", "tmax_c"
		p.TemporalStat = "mean"
		p.Transform = &backend.Transform{Scale: terraTempScale}
	case "tmin_c":
		p.Band, p.Variable = "tmmn", "tmin_c"
		p.TemporalStat = "mean"
		p.Transform = &backend.Transform{Scale: terraTempScale}
	case "tavg_c":
		return nil, errs.Validation("tavg_c is derived from two bands and cannot be exported; use tmin_c or tmax_c")
	default:
		return nil, errs.Validation("unknown variable: %q", q.Variable)
	}
	return buildExport(ctx, e.c, q, p)
}
