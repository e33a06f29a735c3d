package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/yieldera/climate-datahub/internal/dataset"
	"github.com/yieldera/climate-datahub/internal/dates"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/geo"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

const maxRequestBody = 1 << 20

// dataRequest is the shared body of the extraction endpoints.
type dataRequest struct {
	Geometry  geo.Input `json:"geometry"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Stat      string    `json:"stat,omitempty"`
	Variables []string  `json:"variables,omitempty"`
}

// geotiffRequest adds the raster-export parameters.
type geotiffRequest struct {
	dataRequest
	Band          string   `json:"band,omitempty"`
	Mode          string   `json:"tiff_mode,omitempty"`
	ResolutionDeg *float64 `json:"resolution_deg,omitempty"`
	Clip          *bool    `json:"clip_to_geometry,omitempty"`
}

// comparePeriod is one leg of a comparison request.
type comparePeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type compareRequest struct {
	Dataset  string        `json:"dataset"`
	Geometry geo.Input     `json:"geometry"`
	Variable string        `json:"variable,omitempty"`
	Stat     string        `json:"stat,omitempty"`
	Period1  comparePeriod `json:"period_1"`
	Period2  comparePeriod `json:"period_2"`
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return errs.Validation("cannot read request body")
	}
	if len(body) == 0 {
		return errs.Validation("request body required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errs.Validation("invalid JSON body: %v", err)
	}
	return nil
}

// normalized is a fully validated extraction request.
type normalized struct {
	Query   dataset.Query
	Summary geo.Summary
}

// normalize validates geometry, dates and statistic against the dataset's
// limits. All failures surface before any backend call is made.
func (s *Server) normalize(req dataRequest, ex dataset.Extractor) (normalized, error) {
	region, summary, isPoint, err := geo.Normalize(req.Geometry)
	if err != nil {
		return normalized{}, err
	}
	if s.cfg.MaxAreaKm2 > 0 && summary.AreaKm2 != nil && *summary.AreaKm2 > s.cfg.MaxAreaKm2 {
		return normalized{}, errs.Validation("region too large: %.1f km2 (max: %.1f)",
			*summary.AreaKm2, s.cfg.MaxAreaKm2)
	}

	r, err := dates.Parse(req.StartDate, req.EndDate)
	if err != nil {
		return normalized{}, err
	}
	r = dates.CapEndToPresent(r, s.now)

	maxDays := ex.MaxTimeseriesDays()
	if s.cfg.MaxDays > 0 && s.cfg.MaxDays < maxDays {
		maxDays = s.cfg.MaxDays
	}
	if err := dates.Validate(r, maxDays); err != nil {
		return normalized{}, err
	}

	if req.Stat != "" && !reducers.Known(req.Stat) {
		return normalized{}, errs.Validation("unknown statistic %q, use one of %v",
			req.Stat, reducers.Stats())
	}
	stat := req.Stat
	if stat == "" {
		stat = "mean"
	}

	meta := ex.Metadata()
	for _, v := range req.Variables {
		if !hasVariable(meta, v) {
			return normalized{}, errs.Validation("dataset %s has no variable %q", meta.ID, v)
		}
	}

	return normalized{
		Query: dataset.Query{
			Region:    region,
			IsPoint:   isPoint,
			Range:     r,
			Stat:      stat,
			Variables: req.Variables,
		},
		Summary: summary,
	}, nil
}

func hasVariable(meta dataset.Metadata, name string) bool {
	for _, v := range meta.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// cacheParams builds the canonical parameter map hashed into the cache key.
func cacheParams(op string, id dataset.ID, n normalized, extra map[string]any) map[string]any {
	params := map[string]any{
		"op":      op,
		"dataset": string(id),
		"start":   n.Query.Range.StartString(),
		"end":     n.Query.Range.EndString(),
		"stat":    n.Query.Stat,
		"geometry": map[string]any{
			"type":     n.Query.Region.Type,
			"lat":      n.Query.Region.Lat,
			"lon":      n.Query.Region.Lon,
			"wkt":      n.Query.Region.WKT,
			"buffer_m": n.Query.Region.BufferMeters,
		},
	}
	if len(n.Query.Variables) > 0 {
		params["variables"] = n.Query.Variables
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}
