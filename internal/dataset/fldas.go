package dataset

import (
	"context"
	"time"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

// FLDAS monthly land surface model output, ~11 km grid. Soil moisture is
// reported as layer mass in kg/m2; 400 kg/m2 saturates a layer, so
// percent = value / 400 * 100.
const (
	fldasCollection  = "NASA/FLDAS/NOAH01/C/GL/M/V001"
	fldasResolutionM = 11000
	fldasStartDate   = "1982-01-01"
	fldasMaxDays     = 5000

	fldasSoilSaturation = 400.0
)

type fldas struct {
	c backend.Client
}

func newFLDAS(c backend.Client) *fldas { return &fldas{c: c} }

var fldasBands = []struct {
	variable string
	band     string
}{
	{"sm_surface", "SoilMoi00_10cm_tavg"},
	{"sm_rootzone", "SoilMoi10_40cm_tavg"},
}

func (e *fldas) Metadata() Metadata {
	return Metadata{
		ID:          FLDAS,
		Name:        "FLDAS Monthly Soil Moisture",
		Description: "Monthly surface and root-zone soil moisture from the FLDAS Noah model.",
		Collection:  fldasCollection,
		ResolutionM: fldasResolutionM,
		Cadence:     CadenceMonthly,
		StartDate:   fldasStartDate,
		Variables: []VariableMeta{
			{Name: "sm_surface", Unit: "%", Description: "0-10 cm soil moisture"},
			{Name: "sm_rootzone", Unit: "%", Description: "10-40 cm soil moisture"},
		},
		Primary: "sm_rootzone",
	}
}

func (e *fldas) MaxTimeseriesDays() int { return fldasMaxDays }

func (e *fldas) Timeseries(ctx context.Context, q Query) ([]Point, error) {
	months := q.Range.EachMonth()
	points := make([]Point, 0, len(months))
	for _, m := range months {
		points = append(points, Point{Date: m.Format("2006-01")})
	}

	for _, b := range fldasBands {
		if !wantVar(q, b.variable) {
			continue
		}
		byDate, err := fetchSeries(ctx, e.c, fldasCollection, b.band, q, fldasResolutionM)
		if err != nil {
			return nil, err
		}
		for i, m := range months {
			raw := monthValue(byDate, m)
			if raw == nil {
				points[i].Set(b.variable, reducers.NoData)
				continue
			}
			points[i].Set(b.variable, massToPercent(*raw))
		}
	}
	return points, nil
}

// massToPercent converts a layer mass in kg/m2 to percent of saturation,
// clamped to the physical range.
func massToPercent(v float64) float64 {
	pct := v / fldasSoilSaturation * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return round2(pct)
}

// monthValue finds the granule value for a month whether the backend dated
// it by month or by its first day.
func monthValue(byDate map[string]*float64, m time.Time) *float64 {
	if v, ok := byDate[m.Format("2006-01")]; ok {
		return v
	}
	return byDate[m.Format("2006-01-02")]
}

func (e *fldas) Statistics(ctx context.Context, q Query) (map[string]VarStats, error) {
	points, err := e.Timeseries(ctx, q)
	if err != nil {
		return nil, err
	}
	return statisticsOf(points)
}

func (e *fldas) ExportGeoTIFF(ctx context.Context, q ExportQuery) (*Export, error) {
	variable := q.Variable
	if variable == "" {
		variable = "sm_rootzone"
	}
	band := ""
	for _, b := range fldasBands {
		if b.variable == variable {
			band = b.band
		}
	}
	if band == "" {
		return nil, errs.Validation("unknown soil moisture variable: %q", q.Variable)
	}
	clampMin, clampMax := 0.0, 100.0
	return buildExport(ctx, e.c, q, exportParams{
		Collection:   fldasCollection,
		Band:         band,
		Cadence:      CadenceMonthly,
		ResolutionM:  fldasResolutionM,
		TemporalStat: "mean",
		Transform: &backend.Transform{
			Scale:    100 / fldasSoilSaturation,
			ClampMin: &clampMin,
			ClampMax: &clampMax,
		},
		Variable: variable,
	})
}
