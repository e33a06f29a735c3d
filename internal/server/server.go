// Package server wires the HTTP API over the extractors, cache and job
// machinery.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/cache"
	"github.com/yieldera/climate-datahub/internal/config"
	"github.com/yieldera/climate-datahub/internal/dataset"
	"github.com/yieldera/climate-datahub/internal/jobs"
	"github.com/yieldera/climate-datahub/internal/storage"
)

type Server struct {
	cfg      config.Config
	log      *slog.Logger
	backend  backend.Client
	datasets *dataset.Registry
	cache    *cache.Cache
	store    *jobs.Store
	worker   *jobs.Worker
	outputs  *storage.Store
	version  string
	now      func() time.Time
}

type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Backend  backend.Client
	Datasets *dataset.Registry
	Cache    *cache.Cache
	Jobs     *jobs.Store
	Outputs  *storage.Store
	Version  string
	Now      func() time.Time
}

func New(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{
		cfg:      d.Config,
		log:      d.Log,
		backend:  d.Backend,
		datasets: d.Datasets,
		cache:    d.Cache,
		store:    d.Jobs,
		outputs:  d.Outputs,
		version:  d.Version,
		now:      d.Now,
	}
}

// SetWorker attaches the export worker pool after construction; the pool
// needs the server's runner, so the two are wired in stages.
func (s *Server) SetWorker(w *jobs.Worker) { s.worker = w }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
