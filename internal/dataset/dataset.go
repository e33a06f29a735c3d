// Package dataset implements the per-collection extractors. Each extractor
// knows its backend collection, bands, native resolution and unit
// conversions, and produces API-shaped time series, statistics and raster
// exports.
package dataset

import (
	"context"
	"sort"
	"strings"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/dates"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/geo"
)

// ID identifies a supported dataset. The set is closed; anything else is a
// validation error at the API boundary.
type ID string

const (
	CHIRPS       ID = "chirps"
	ERA5Land     ID = "era5land"
	SMAP         ID = "smap"
	FLDAS        ID = "fldas"
	TerraClimate ID = "terraclimate"
)

func ParseID(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	switch id {
	case CHIRPS, ERA5Land, SMAP, FLDAS, TerraClimate:
		return id, nil
	}
	return "", errs.Validation("unknown dataset: %q", s)
}

// Cadence of a collection's granules.
const (
	CadenceDaily   = "daily"
	CadenceMonthly = "monthly"
)

// Export modes.
const (
	ModeMultiband = "multiband"
	ModeZip       = "zip"
)

// Query is a normalized extraction request.
type Query struct {
	Region    geo.Region
	IsPoint   bool
	Range     dates.Range
	Stat      string   // spatial statistic for region geometries
	Variables []string // optional variable subset, empty means all
}

// ExportQuery adds the raster-export parameters. ResolutionDeg overrides
// the dataset's native scale; Clip defaults to true.
type ExportQuery struct {
	Query
	Variable      string
	Mode          string // multiband or zip
	ResolutionDeg *float64
	Clip          *bool
}

// Export describes a completed raster export.
type Export struct {
	Mode          string   `json:"mode"`
	URL           string   `json:"url"`
	Bands         []string `json:"bands,omitempty"`
	Count         int      `json:"count"`
	Variable      string   `json:"variable"`
	ResolutionDeg float64  `json:"resolution_deg"`
	Format        string   `json:"format"`
}

// VariableMeta documents one output variable of a dataset.
type VariableMeta struct {
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

// Metadata is the public description of a dataset.
type Metadata struct {
	ID          ID             `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Collection  string         `json:"collection"`
	ResolutionM int            `json:"resolution_m"`
	Cadence     string         `json:"cadence"`
	StartDate   string         `json:"start_date"`
	Variables   []VariableMeta `json:"variables"`
	Primary     string         `json:"primary_variable"`
}

// Extractor is one dataset's façade over the compute backend.
type Extractor interface {
	Metadata() Metadata

	// MaxTimeseriesDays caps the request span in calendar days.
	MaxTimeseriesDays() int

	// Timeseries returns one Point per calendar step of the range, in
	// ascending date order with no gaps; missing backend values appear as
	// the no-data sentinel.
	Timeseries(ctx context.Context, q Query) ([]Point, error)

	// Statistics aggregates the series per variable, ignoring no-data rows.
	Statistics(ctx context.Context, q Query) (map[string]VarStats, error)

	// ExportGeoTIFF materializes a raster export through the backend.
	ExportGeoTIFF(ctx context.Context, q ExportQuery) (*Export, error)
}

// Registry holds the extractor for every supported dataset.
type Registry struct {
	byID map[ID]Extractor
}

func NewRegistry(c backend.Client) *Registry {
	return &Registry{byID: map[ID]Extractor{
		CHIRPS:       newCHIRPS(c),
		ERA5Land:     newERA5Land(c),
		SMAP:         newSMAP(c),
		FLDAS:        newFLDAS(c),
		TerraClimate: newTerraClimate(c),
	}}
}

func (r *Registry) Get(id ID) (Extractor, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// IDs returns the supported dataset IDs in stable order.
func (r *Registry) IDs() []ID {
	out := make([]ID, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// wantVar reports whether name passes the optional variable filter.
func wantVar(q Query, name string) bool {
	if len(q.Variables) == 0 {
		return true
	}
	for _, v := range q.Variables {
		if v == name {
			return true
		}
	}
	return false
}
