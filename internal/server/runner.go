package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yieldera/climate-datahub/internal/dataset"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/jobs"
	"github.com/yieldera/climate-datahub/internal/logger"
	"github.com/yieldera/climate-datahub/internal/storage"
)

// RunExport executes one queued GeoTIFF job: re-validate the stored
// request, ask the backend for the raster, pull it into the output
// directory and hand back the public download URLs.
func (s *Server) RunExport(ctx context.Context, job *jobs.Job) (map[string]string, error) {
	id, ok := strings.CutSuffix(job.Type, "_geotiff")
	if !ok {
		return nil, fmt.Errorf("unknown job type %q", job.Type)
	}
	dsID, err := dataset.ParseID(id)
	if err != nil {
		return nil, err
	}
	ex, found := s.datasets.Get(dsID)
	if !found {
		return nil, errs.Validation("unknown dataset: %q", dsID)
	}

	var req geotiffRequest
	if err := json.Unmarshal(job.RequestData, &req); err != nil {
		return nil, fmt.Errorf("stored request corrupt: %w", err)
	}
	n, err := s.normalize(req.dataRequest, ex)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithJobID(logger.WithDataset(ctx, string(dsID)), job.ID)
	export, err := ex.ExportGeoTIFF(ctx, dataset.ExportQuery{
		Query:         n.Query,
		Variable:      req.Band,
		Mode:          req.Mode,
		ResolutionDeg: req.ResolutionDeg,
		Clip:          req.Clip,
	})
	if err != nil {
		return nil, err
	}
	s.store.SetProgress(job.ID, 60)

	filename, err := s.outputs.Fetch(export.URL, fmt.Sprintf("%s_%s", dsID, export.Variable), export.Format)
	if err != nil {
		return nil, errs.Backend(err, "fetch export artifact")
	}

	return map[string]string{
		export.Format: storage.DownloadURL(filename),
	}, nil
}
