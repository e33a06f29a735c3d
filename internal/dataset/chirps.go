package dataset

import (
	"context"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/dates"
)

// CHIRPS daily rainfall, ~5.5 km grid.
const (
	chirpsCollection  = "UCSB-CHG/CHIRPS/DAILY"
	chirpsBand        = "precipitation"
	chirpsResolutionM = 5566
	chirpsStartDate   = "1981-01-01"
	chirpsMaxDays     = 5000
)

type chirps struct {
	c backend.Client
}

func newCHIRPS(c backend.Client) *chirps { return &chirps{c: c} }

func (e *chirps) Metadata() Metadata {
	return Metadata{
		ID:          CHIRPS,
		Name:        "CHIRPS Daily Precipitation",
		Description: "Rainfall estimates from satellite and station data.",
		Collection:  chirpsCollection,
		ResolutionM: chirpsResolutionM,
		Cadence:     CadenceDaily,
		StartDate:   chirpsStartDate,
		Variables: []VariableMeta{
			{Name: "precip_mm", Unit: "mm", Description: "Daily precipitation total"},
		},
		Primary: "precip_mm",
	}
}

func (e *chirps) MaxTimeseriesDays() int { return chirpsMaxDays }

func (e *chirps) Timeseries(ctx context.Context, q Query) ([]Point, error) {
	byDate, err := fetchSeries(ctx, e.c, chirpsCollection, chirpsBand, q, chirpsResolutionM)
	if err != nil {
		return nil, err
	}
	days := q.Range.EachDay()
	points := make([]Point, 0, len(days))
	for _, d := range days {
		date := d.Format(dates.Layout)
		p := Point{Date: date}
		p.Set("precip_mm", valueOrNoData(byDate[date], nil))
		points = append(points, p)
	}
	return points, nil
}

func (e *chirps) Statistics(ctx context.Context, q Query) (map[string]VarStats, error) {
	points, err := e.Timeseries(ctx, q)
	if err != nil {
		return nil, err
	}
	return statisticsOf(points)
}

func (e *chirps) ExportGeoTIFF(ctx context.Context, q ExportQuery) (*Export, error) {
	return buildExport(ctx, e.c, q, exportParams{
		Collection:   chirpsCollection,
		Band:         chirpsBand,
		Cadence:      CadenceDaily,
		ResolutionM:  chirpsResolutionM,
		TemporalStat: "sum",
		Variable:     "precip_mm",
	})
}
