package dataset

import (
	"context"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/dates"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/logger"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

// ERA5-Land hourly 2m air temperature, ~11 km grid, aggregated to daily
// min/max/mean.
const (
	era5Collection  = "ECMWF/ERA5_LAND/HOURLY"
	era5Band        = "temperature_2m"
	era5ResolutionM = 11132
	era5StartDate   = "1950-01-02"
	era5MaxDays     = 366

	kelvinOffset = 273.15
)

type era5Land struct {
	c backend.Client
}

func newERA5Land(c backend.Client) *era5Land { return &era5Land{c: c} }

func (e *era5Land) Metadata() Metadata {
	return Metadata{
		ID:          ERA5Land,
		Name:        "ERA5-Land Temperature",
		Description: "Hourly reanalysis temperature aggregated to daily min/max/mean.",
		Collection:  era5Collection,
		ResolutionM: era5ResolutionM,
		Cadence:     CadenceDaily,
		StartDate:   era5StartDate,
		Variables: []VariableMeta{
			{Name: "tmin_c", Unit: "degC", Description: "Daily minimum temperature"},
			{Name: "tmax_c", Unit: "degC", Description: "Daily maximum temperature"},
			{Name: "tavg_c", Unit: "degC", Description: "Daily mean temperature"},
		},
		Primary: "tavg_c",
	}
}

// Each requested day costs one backend call per daily statistic, so the
// span cap is much tighter than for daily collections.
func (e *era5Land) MaxTimeseriesDays() int { return era5MaxDays }

func (e *era5Land) Timeseries(ctx context.Context, q Query) ([]Point, error) {
	if q.IsPoint {
		return e.pointSeries(ctx, q)
	}
	return e.regionSeries(ctx, q)
}

// pointSeries samples every hourly granule at the point and aggregates the
// day locally. A day that fails entirely becomes a no-data row rather than
// failing the whole series.
func (e *era5Land) pointSeries(ctx context.Context, q Query) ([]Point, error) {
	log := logger.Ctx(ctx)
	days := q.Range.EachDay()
	points := make([]Point, 0, len(days))
	for _, d := range days {
		date := d.Format(dates.Layout)
		w := backend.Window{Start: date, End: date}

		p := Point{Date: date}
		hourly, err := e.sampleDay(ctx, w, q)
		if err != nil {
			log.WarnContext(ctx, "temperature day failed", "date", date, "err", err)
			hourly = nil
		}
		if len(hourly) == 0 {
			p.Set("tmin_c", reducers.NoData)
			p.Set("tmax_c", reducers.NoData)
			p.Set("tavg_c", reducers.NoData)
			points = append(points, p)
			continue
		}

		minK, maxK, sum := hourly[0], hourly[0], 0.0
		for _, v := range hourly {
			if v < minK {
				minK = v
			}
			if v > maxK {
				maxK = v
			}
			sum += v
		}
		p.Set("tmin_c", round2(minK-kelvinOffset))
		p.Set("tmax_c", round2(maxK-kelvinOffset))
		p.Set("tavg_c", round2(sum/float64(len(hourly))-kelvinOffset))
		points = append(points, p)
	}
	return filterVars(points, q), nil
}

func (e *era5Land) sampleDay(ctx context.Context, w backend.Window, q Query) ([]float64, error) {
	images, err := e.c.ListImages(ctx, era5Collection, w, q.Region)
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, img := range images {
		v, err := e.c.ReduceRegion(ctx, img.ID, q.Region, "first", era5Band, era5ResolutionM)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

// regionSeries composites hourly granules per day on the backend with the
// matching temporal statistic, then reduces spatially.
func (e *era5Land) regionSeries(ctx context.Context, q Query) ([]Point, error) {
	log := logger.Ctx(ctx)
	reducer := spatialReducer(q)
	days := q.Range.EachDay()
	points := make([]Point, 0, len(days))

	stats := []struct {
		variable string
		temporal string
	}{
		{"tmin_c", "min"},
		{"tmax_c", "max"},
		{"tavg_c", "mean"},
	}

	for _, d := range days {
		date := d.Format(dates.Layout)
		w := backend.Window{Start: date, End: date}
		p := Point{Date: date}
		for _, st := range stats {
			if !wantVar(q, st.variable) {
				continue
			}
			v, err := e.c.ReduceComposite(ctx, era5Collection, era5Band, w, st.temporal, q.Region, reducer, era5ResolutionM)
			if err != nil {
				log.WarnContext(ctx, "temperature composite failed", "date", date, "stat", st.temporal, "err", err)
				p.Set(st.variable, reducers.NoData)
				continue
			}
			p.Set(st.variable, kelvinToCelsius(v))
		}
		points = append(points, p)
	}
	return points, nil
}

// kelvinToCelsius converts plausible Kelvin readings; non-positive values
// indicate a masked or failed composite and become no-data.
func kelvinToCelsius(v *float64) float64 {
	if v == nil || *v <= 0 {
		return reducers.NoData
	}
	return round2(*v - kelvinOffset)
}

func (e *era5Land) Statistics(ctx context.Context, q Query) (map[string]VarStats, error) {
	points, err := e.Timeseries(ctx, q)
	if err != nil {
		return nil, err
	}
	return statisticsOf(points)
}

func (e *era5Land) ExportGeoTIFF(ctx context.Context, q ExportQuery) (*Export, error) {
	variable := q.Variable
	if variable == "" {
		variable = "tavg_c"
	}
	var temporal string
	switch variable {
	case "tmin_c":
		temporal = "min"
	case "tmax_c":
		temporal = "max"
	case "tavg_c":
		temporal = "mean"
	default:
		return nil, errs.Validation("unknown temperature variable: %q", q.Variable)
	}
	return buildExport(ctx, e.c, q, exportParams{
		Collection:   era5Collection,
		Band:         era5Band,
		Cadence:      CadenceDaily,
		ResolutionM:  era5ResolutionM,
		TemporalStat: temporal,
		Transform:    &backend.Transform{Scale: 1, Offset: -kelvinOffset},
		Variable:     variable,
	})
}

// filterVars drops variables excluded by the query filter.
func filterVars(points []Point, q Query) []Point {
	if len(q.Variables) == 0 {
		return points
	}
	for i := range points {
		p := Point{Date: points[i].Date}
		for k, name := range points[i].Names {
			if wantVar(q, name) {
				p.Set(name, points[i].Values[k])
			}
		}
		points[i] = p
	}
	return points
}
