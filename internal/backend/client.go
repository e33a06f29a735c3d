// Package backend defines the compute-backend client used by the dataset
// extractors. The backend owns imagery, geometry algebra and raster export;
// this service only orchestrates calls against it.
package backend

import (
	"context"

	"github.com/yieldera/climate-datahub/internal/geo"
)

// Image is one raster granule of a collection.
type Image struct {
	ID   string `json:"id"`
	Date string `json:"date"` // YYYY-MM-DD
}

// SeriesValue is a single dated sample of a reduced series. Value is nil
// when the backend had no usable pixel for that date.
type SeriesValue struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Window is an inclusive date interval, YYYY-MM-DD on both ends.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Transform is an optional per-pixel linear transform applied server-side
// before export: v' = clamp(v*Scale + Offset).
type Transform struct {
	Scale    float64  `json:"scale,omitempty"`
	Offset   float64  `json:"offset,omitempty"`
	ClampMin *float64 `json:"clamp_min,omitempty"`
	ClampMax *float64 `json:"clamp_max,omitempty"`
}

// ExportSpec describes a raster export the backend materializes into a
// downloadable artifact.
type ExportSpec struct {
	Collection   string     `json:"collection"`
	Band         string     `json:"band"`
	Steps        []string   `json:"steps"` // dates (daily) or YYYY-MM months
	TemporalStat string     `json:"temporal_stat"`
	Region       geo.Region `json:"region"`
	ScaleM       int        `json:"scale_m"`
	Clip         bool       `json:"clip"`
	Transform    *Transform `json:"transform,omitempty"`
	Format       string     `json:"format,omitempty"` // tif (default) or zip
}

// Client is the minimal surface the extractors need from the compute
// backend. Implementations must be safe for concurrent use.
type Client interface {
	// ListImages enumerates granules of a collection overlapping the region
	// within the inclusive date window.
	ListImages(ctx context.Context, collection string, w Window, region geo.Region) ([]Image, error)

	// ReduceRegion reduces a single image over the region with the named
	// reducer. A nil value means the region had no valid pixels.
	ReduceRegion(ctx context.Context, imageID string, region geo.Region, reducer, band string, scaleM int) (*float64, error)

	// ReduceSeries reduces every granule of a collection in the window,
	// returning one dated value per granule.
	ReduceSeries(ctx context.Context, collection, band string, w Window, region geo.Region, reducer string, scaleM int) ([]SeriesValue, error)

	// ReduceComposite composites the collection over the window with
	// temporalStat (min/max/mean/sum), then reduces spatially.
	ReduceComposite(ctx context.Context, collection, band string, w Window, temporalStat string, region geo.Region, reducer string, scaleM int) (*float64, error)

	// ExportURL asks the backend to materialize spec and returns a signed
	// download URL for the artifact.
	ExportURL(ctx context.Context, spec ExportSpec) (string, error)

	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error
}
