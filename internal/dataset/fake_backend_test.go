package dataset

import (
	"context"
	"sync"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/geo"
)

// fakeBackend is an in-memory backend.Client recording every call so tests
// can assert on what the extractors asked for.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	// last arguments seen, keyed by operation
	lastReducer  string
	lastTemporal string
	lastBand     string

	seriesFn    func(collection, band string, w backend.Window) []backend.SeriesValue
	compositeFn func(collection, band string, w backend.Window, temporalStat string) *float64
	imagesFn    func(w backend.Window) []backend.Image
	reduceFn    func(imageID string) *float64
	exportURL   string
	err         error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: map[string]int{}, exportURL: "https://backend.example/artifact"}
}

func (f *fakeBackend) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) ListImages(_ context.Context, _ string, w backend.Window, _ geo.Region) ([]backend.Image, error) {
	f.record("list_images")
	if f.err != nil {
		return nil, f.err
	}
	if f.imagesFn == nil {
		return nil, nil
	}
	return f.imagesFn(w), nil
}

func (f *fakeBackend) ReduceRegion(_ context.Context, imageID string, _ geo.Region, reducer, band string, _ int) (*float64, error) {
	f.record("reduce_region")
	f.mu.Lock()
	f.lastReducer, f.lastBand = reducer, band
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.reduceFn == nil {
		return nil, nil
	}
	return f.reduceFn(imageID), nil
}

func (f *fakeBackend) ReduceSeries(_ context.Context, collection, band string, w backend.Window, _ geo.Region, reducer string, _ int) ([]backend.SeriesValue, error) {
	f.record("reduce_series")
	f.mu.Lock()
	f.lastReducer, f.lastBand = reducer, band
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.seriesFn == nil {
		return nil, nil
	}
	return f.seriesFn(collection, band, w), nil
}

func (f *fakeBackend) ReduceComposite(_ context.Context, collection, band string, w backend.Window, temporalStat string, _ geo.Region, reducer string, _ int) (*float64, error) {
	f.record("reduce_composite")
	f.mu.Lock()
	f.lastReducer, f.lastTemporal, f.lastBand = reducer, temporalStat, band
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.compositeFn == nil {
		return nil, nil
	}
	return f.compositeFn(collection, band, w, temporalStat), nil
}

func (f *fakeBackend) ExportURL(_ context.Context, _ backend.ExportSpec) (string, error) {
	f.record("export")
	if f.err != nil {
		return "", f.err
	}
	return f.exportURL, nil
}

func (f *fakeBackend) Ping(_ context.Context) error {
	f.record("ping")
	return f.err
}

func ptr(v float64) *float64 { return &v }

func pointQuery(start, end string) Query {
	r := mustRange(start, end)
	return Query{
		Region:  geo.Region{Type: "point", Lat: -17.83, Lon: 31.05},
		IsPoint: true,
		Range:   r,
		Stat:    "mean",
	}
}

func regionQuery(start, end, stat string) Query {
	r := mustRange(start, end)
	return Query{
		Region: geo.Region{Type: "wkt", WKT: "POLYGON((30 -18, 31 -18, 31 -17, 30 -17, 30 -18))"},
		Range:  r,
		Stat:   stat,
	}
}
