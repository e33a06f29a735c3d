package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yieldera/climate-datahub/internal/cache"
	"github.com/yieldera/climate-datahub/internal/compare"
	"github.com/yieldera/climate-datahub/internal/dataset"
	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/geo"
	"github.com/yieldera/climate-datahub/internal/jobs"
	"github.com/yieldera/climate-datahub/internal/logger"
	"github.com/yieldera/climate-datahub/internal/observability"
	"github.com/yieldera/climate-datahub/internal/storage"
)

type timeseriesResponse struct {
	Dataset   dataset.ID      `json:"dataset"`
	Geometry  geo.Summary     `json:"geometry"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Stat      string          `json:"stat"`
	Count     int             `json:"count"`
	Cached    bool            `json:"cached"`
	Data      []dataset.Point `json:"data"`
}

func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	id, ex, err := s.extractor(r)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}

	var req dataRequest
	if err := decodeJSON(r, &req); err != nil {
		errs.Write(w, s.log, err)
		return
	}
	n, err := s.normalize(req, ex)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	ctx := logger.WithDataset(r.Context(), string(id))

	if r.URL.Query().Get("format") == "csv" {
		s.timeseriesCSV(w, r.WithContext(ctx), id, ex, n)
		return
	}

	key := cache.Key(cacheParams("timeseries", id, n, nil))
	var resp timeseriesResponse
	if s.cache.GetJSON(key, &resp) {
		observability.IncCacheHit("json")
		resp.Cached = true
		writeJSON(w, http.StatusOK, resp)
		return
	}
	observability.IncCacheMiss("json")

	points, err := ex.Timeseries(ctx, n.Query)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	resp = timeseriesResponse{
		Dataset:   id,
		Geometry:  n.Summary,
		StartDate: n.Query.Range.StartString(),
		EndDate:   n.Query.Range.EndString(),
		Stat:      n.Query.Stat,
		Count:     len(points),
		Data:      points,
	}
	s.cache.SetJSON(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

type csvResponse struct {
	Dataset     dataset.ID `json:"dataset"`
	Format      string     `json:"format"`
	Count       int        `json:"count,omitempty"`
	Cached      bool       `json:"cached"`
	Filename    string     `json:"filename"`
	DownloadURL string     `json:"download_url"`
}

// timeseriesCSV writes the series to a CSV artifact and returns its
// download URL. The cache holds a durable copy of the file so a hit never
// re-queries the backend even after the output directory is cleaned.
func (s *Server) timeseriesCSV(w http.ResponseWriter, r *http.Request, id dataset.ID, ex dataset.Extractor, n normalized) {
	key := cache.Key(cacheParams("timeseries", id, n, map[string]any{"format": "csv"}))
	prefix := fmt.Sprintf("%s_timeseries", id)

	if cached := s.cache.GetFile(key, "csv"); cached != "" {
		filename, err := s.outputs.Import(cached, prefix, "csv")
		if err == nil {
			observability.IncCacheHit("csv")
			writeJSON(w, http.StatusOK, csvResponse{
				Dataset:     id,
				Format:      "csv",
				Cached:      true,
				Filename:    filename,
				DownloadURL: storage.DownloadURL(filename),
			})
			return
		}
		s.log.Warn("cannot restore cached csv", "err", err)
	}
	observability.IncCacheMiss("csv")

	points, err := ex.Timeseries(r.Context(), n.Query)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}

	header, rows := csvRows(points)
	filename, err := s.outputs.WriteCSV(prefix, header, rows)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	s.cache.SetFile(key, "csv", s.outputs.Path(filename))
	writeJSON(w, http.StatusOK, csvResponse{
		Dataset:     id,
		Format:      "csv",
		Count:       len(points),
		Filename:    filename,
		DownloadURL: storage.DownloadURL(filename),
	})
}

// csvRows flattens a series into a header and data rows, unioning variable
// names across rows in first-seen order.
func csvRows(points []dataset.Point) ([]string, [][]string) {
	var names []string
	seen := map[string]bool{}
	for _, p := range points {
		for _, n := range p.Names {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	header := append([]string{"date"}, names...)
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		row := make([]string, 0, len(header))
		row = append(row, p.Date)
		for _, n := range names {
			v, _ := p.Get(n)
			row = append(row, storage.FormatValue(v))
		}
		rows = append(rows, row)
	}
	return header, rows
}

type statisticsResponse struct {
	Dataset    dataset.ID                  `json:"dataset"`
	Geometry   geo.Summary                 `json:"geometry"`
	StartDate  string                      `json:"start_date"`
	EndDate    string                      `json:"end_date"`
	Stat       string                      `json:"stat"`
	Cached     bool                        `json:"cached"`
	Statistics map[string]dataset.VarStats `json:"statistics"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	id, ex, err := s.extractor(r)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	var req dataRequest
	if err := decodeJSON(r, &req); err != nil {
		errs.Write(w, s.log, err)
		return
	}
	n, err := s.normalize(req, ex)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	ctx := logger.WithDataset(r.Context(), string(id))

	key := cache.Key(cacheParams("statistics", id, n, nil))
	var resp statisticsResponse
	if s.cache.GetJSON(key, &resp) {
		observability.IncCacheHit("json")
		resp.Cached = true
		writeJSON(w, http.StatusOK, resp)
		return
	}
	observability.IncCacheMiss("json")

	stats, err := ex.Statistics(ctx, n.Query)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	resp = statisticsResponse{
		Dataset:    id,
		Geometry:   n.Summary,
		StartDate:  n.Query.Range.StartString(),
		EndDate:    n.Query.Range.EndString(),
		Stat:       n.Query.Stat,
		Statistics: stats,
	}
	s.cache.SetJSON(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGeoTIFF(w http.ResponseWriter, r *http.Request) {
	id, ex, err := s.extractor(r)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	var req geotiffRequest
	if err := decodeJSON(r, &req); err != nil {
		errs.Write(w, s.log, err)
		return
	}
	// validate everything up front so bad requests never reach the queue
	if _, err := s.normalize(req.dataRequest, ex); err != nil {
		errs.Write(w, s.log, err)
		return
	}
	if req.Mode != "" && req.Mode != dataset.ModeMultiband && req.Mode != dataset.ModeZip {
		errs.Write(w, s.log, errs.Validation("unsupported export mode: %q", req.Mode))
		return
	}
	if req.Band != "" && !hasVariable(ex.Metadata(), req.Band) {
		errs.Write(w, s.log, errs.Validation("dataset %s has no variable %q", id, req.Band))
		return
	}
	if req.ResolutionDeg != nil && (*req.ResolutionDeg < 0.01 || *req.ResolutionDeg > 0.5) {
		errs.Write(w, s.log, errs.Validation("resolution_deg must be in [0.01, 0.5]"))
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	job, err := s.store.Create(fmt.Sprintf("%s_geotiff", id), body, r.Header.Get("X-User-ID"))
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	if err := s.worker.Enqueue(job.ID); err != nil {
		if _, merr := s.store.MarkError(job.ID, err); merr != nil {
			s.log.Error("cannot fail unqueued job", "job_id", job.ID, "err", merr)
		}
		errs.Write(w, s.log, &errs.Error{
			Name:    "QueueFullError",
			Message: "export queue is full, retry later",
			Code:    http.StatusServiceUnavailable,
		})
		return
	}

	s.log.Info("export job accepted", "job_id", job.ID, "job_type", job.Type)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"job_type":   job.Type,
		"status":     job.Status,
		"status_url": fmt.Sprintf("/api/data/jobs/%s/status", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobDownload(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	if job.Status != jobs.StatusDone {
		errs.Write(w, s.log, &errs.Error{
			Name:    "JobNotReadyError",
			Message: fmt.Sprintf("job %s is %s", job.ID, job.Status),
			Code:    http.StatusBadRequest,
			Hint:    "poll the status endpoint until the job is done",
		})
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "tif"
	}
	url, ok := job.DownloadURLs[format]
	if !ok {
		// fall back to the only artifact if the job produced exactly one
		if len(job.DownloadURLs) == 1 {
			for _, u := range job.DownloadURLs {
				url = u
			}
		} else {
			errs.Write(w, s.log, errs.Validation("job %s has no %q artifact", job.ID, format))
			return
		}
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	list, err := s.store.List(r.Header.Get("X-User-ID"), limit)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "jobs": list})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	path, ok := s.outputs.Resolve(filename)
	if !ok {
		errs.Write(w, s.log, &errs.Error{
			Name:    "NotFoundError",
			Message: fmt.Sprintf("no artifact named %q", filename),
			Code:    http.StatusNotFound,
		})
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleDatasets(w http.ResponseWriter, _ *http.Request) {
	ids := s.datasets.IDs()
	list := make([]dataset.Metadata, 0, len(ids))
	for _, id := range ids {
		if ex, ok := s.datasets.Get(id); ok {
			list = append(list, ex.Metadata())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "datasets": list})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	backendStatus := "ok"
	code := http.StatusOK
	if err := s.backend.Ping(ctx); err != nil {
		status = "degraded"
		backendStatus = err.Error()
		code = http.StatusServiceUnavailable
		s.log.Warn("backend health check failed", "err", err)
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"backend":  backendStatus,
		"version":  s.version,
		"datasets": len(s.datasets.IDs()),
		"cache":    s.cache.Stats(),
		"outputs":  s.outputs.Stats(),
		"time":     s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		errs.Write(w, s.log, err)
		return
	}
	id, err := dataset.ParseID(req.Dataset)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	ex, ok := s.datasets.Get(id)
	if !ok {
		errs.Write(w, s.log, errs.Validation("unknown dataset: %q", req.Dataset))
		return
	}

	n1, err := s.normalize(dataRequest{
		Geometry:  req.Geometry,
		StartDate: req.Period1.StartDate,
		EndDate:   req.Period1.EndDate,
		Stat:      req.Stat,
	}, ex)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	n2, err := s.normalize(dataRequest{
		Geometry:  req.Geometry,
		StartDate: req.Period2.StartDate,
		EndDate:   req.Period2.EndDate,
		Stat:      req.Stat,
	}, ex)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	ctx := logger.WithDataset(r.Context(), string(id))

	key := cache.Key(cacheParams("compare", id, n1, map[string]any{
		"variable": req.Variable,
		"start_2":  n2.Query.Range.StartString(),
		"end_2":    n2.Query.Range.EndString(),
	}))
	var cached compare.Result
	if s.cache.GetJSON(key, &cached) {
		observability.IncCacheHit("json")
		writeJSON(w, http.StatusOK, cached)
		return
	}
	observability.IncCacheMiss("json")

	result, err := compare.Run(ctx, ex, id, n1.Query, n2.Query, req.Variable)
	if err != nil {
		errs.Write(w, s.log, err)
		return
	}
	s.cache.SetJSON(key, result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) extractor(r *http.Request) (dataset.ID, dataset.Extractor, error) {
	id, err := dataset.ParseID(chi.URLParam(r, "dataset"))
	if err != nil {
		return "", nil, err
	}
	ex, ok := s.datasets.Get(id)
	if !ok {
		return "", nil, errs.Validation("unknown dataset: %q", id)
	}
	return id, ex, nil
}
