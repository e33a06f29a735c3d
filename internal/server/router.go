package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/yieldera/climate-datahub/internal/middleware"
	"github.com/yieldera/climate-datahub/internal/observability"
)

// Router assembles the public HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover())
	r.Use(middleware.CORS())
	r.Use(middleware.Logging(s.log))
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/data", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/datasets", s.handleDatasets)
		r.Get("/download/{filename}", s.handleDownload)

		r.Route("/{dataset}", func(r chi.Router) {
			r.Post("/timeseries", s.handleTimeseries)
			r.Post("/statistics", s.handleStatistics)
			r.Post("/geotiff", s.handleGeoTIFF)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleJobList)
			r.Get("/{id}/status", s.handleJobStatus)
			r.Get("/{id}/download", s.handleJobDownload)
		})

		r.Post("/compare/timeseries", s.handleCompare)
	})

	return r
}

// instrument records request count and latency per chi route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		observability.ObserveHTTP(r.Method, route, ww.Status(), time.Since(start).Seconds())
	})
}
