package dataset

import (
	"context"
	"time"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/dates"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/logger"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

// SMAP L4 soil moisture, 3-hourly granules on a 9 km grid, composited to
// daily means.
const (
	smapCollection  = "NASA/SMAP/SPL4SMGP/007"
	smapResolutionM = 9000
	smapStartDate   = "2015-03-31"
	smapMaxDays     = 366
	smapMaxZipDays  = 31
)

type smap struct {
	c backend.Client
}

func newSMAP(c backend.Client) *smap { return &smap{c: c} }

var smapBands = []struct {
	variable string
	band     string
}{
	{"sm_surface", "sm_surface"},
	{"sm_rootzone", "sm_rootzone"},
}

func (e *smap) Metadata() Metadata {
	return Metadata{
		ID:          SMAP,
		Name:        "SMAP L4 Soil Moisture",
		Description: "Surface and root-zone soil moisture, daily means.",
		Collection:  smapCollection,
		ResolutionM: smapResolutionM,
		Cadence:     CadenceDaily,
		StartDate:   smapStartDate,
		Variables: []VariableMeta{
			{Name: "sm_surface", Unit: "%", Description: "Surface (0-5 cm) soil moisture"},
			{Name: "sm_rootzone", Unit: "%", Description: "Root-zone (0-100 cm) soil moisture"},
		},
		Primary: "sm_rootzone",
	}
}

func (e *smap) MaxTimeseriesDays() int { return smapMaxDays }

// checkStart rejects ranges predating the mission.
func (e *smap) checkStart(r dates.Range) error {
	missionStart, _ := time.ParseInLocation(dates.Layout, smapStartDate, time.UTC)
	if r.Start.Before(missionStart) {
		return errs.Validation("soil moisture data starts %s", smapStartDate)
	}
	return nil
}

func (e *smap) Timeseries(ctx context.Context, q Query) ([]Point, error) {
	if err := e.checkStart(q.Range); err != nil {
		return nil, err
	}
	log := logger.Ctx(ctx)
	reducer := spatialReducer(q)
	days := q.Range.EachDay()
	points := make([]Point, 0, len(days))

	for _, d := range days {
		date := d.Format(dates.Layout)
		w := backend.Window{Start: date, End: date}
		p := Point{Date: date}
		for _, b := range smapBands {
			if !wantVar(q, b.variable) {
				continue
			}
			v, err := e.c.ReduceComposite(ctx, smapCollection, b.band, w, "mean", q.Region, reducer, smapResolutionM)
			if err != nil {
				log.WarnContext(ctx, "soil moisture day failed", "date", date, "band", b.band, "err", err)
				p.Set(b.variable, reducers.NoData)
				continue
			}
			p.Set(b.variable, fractionToPercent(v))
		}
		points = append(points, p)
	}
	return points, nil
}

// fractionToPercent converts a volumetric fraction (m3/m3) to percent,
// clamped to the physical range.
func fractionToPercent(v *float64) float64 {
	if v == nil {
		return reducers.NoData
	}
	pct := *v * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return round2(pct)
}

func (e *smap) Statistics(ctx context.Context, q Query) (map[string]VarStats, error) {
	points, err := e.Timeseries(ctx, q)
	if err != nil {
		return nil, err
	}
	return statisticsOf(points)
}

func (e *smap) ExportGeoTIFF(ctx context.Context, q ExportQuery) (*Export, error) {
	if err := e.checkStart(q.Range); err != nil {
		return nil, err
	}
	variable := q.Variable
	if variable == "" {
		variable = "sm_rootzone"
	}
	band := ""
	for _, b := range smapBands {
		if b.variable == variable {
			band = b.band
		}
	}
	if band == "" {
		return nil, errs.Validation("unknown soil moisture variable: %q", q.Variable)
	}
	clampMin, clampMax := 0.0, 100.0
	return buildExport(ctx, e.c, q, exportParams{
		Collection:   smapCollection,
		Band:         band,
		Cadence:      CadenceDaily,
		ResolutionM:  smapResolutionM,
		TemporalStat: "mean",
		Transform:    &backend.Transform{Scale: 100, ClampMin: &clampMin, ClampMax: &clampMax},
		Variable:     variable,
		MaxZipDaily:  smapMaxZipDays,
	})
}
