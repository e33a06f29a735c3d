package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

func TestEra5PointDailyAggregation(t *testing.T) {
	fb := newFakeBackend()
	fb.imagesFn = func(w backend.Window) []backend.Image {
		return []backend.Image{
			{ID: w.Start + "T00", Date: w.Start},
			{ID: w.Start + "T06", Date: w.Start},
			{ID: w.Start + "T12", Date: w.Start},
		}
	}
	hourly := map[string]float64{"T00": 280.15, "T06": 290.15, "T12": 300.15}
	fb.reduceFn = func(imageID string) *float64 {
		v := hourly[imageID[len(imageID)-3:]]
		return &v
	}
	ex := newERA5Land(fb)

	points, err := ex.Timeseries(context.Background(), pointQuery("2023-01-01", "2023-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
	p := points[0]
	if v, _ := p.Get("tmin_c"); v != 7 {
		t.Errorf("tmin_c = %v, want 7", v)
	}
	if v, _ := p.Get("tmax_c"); v != 27 {
		t.Errorf("tmax_c = %v, want 27", v)
	}
	if v, _ := p.Get("tavg_c"); v != 17 {
		t.Errorf("tavg_c = %v, want 17", v)
	}
	if fb.count("reduce_region") != 3 {
		t.Errorf("reduce_region calls = %d, want 3", fb.count("reduce_region"))
	}
}

func TestEra5KelvinConversion(t *testing.T) {
	fb := newFakeBackend()
	fb.imagesFn = func(w backend.Window) []backend.Image {
		return []backend.Image{{ID: w.Start, Date: w.Start}}
	}
	fb.reduceFn = func(string) *float64 { return ptr(300) }
	ex := newERA5Land(fb)

	points, err := ex.Timeseries(context.Background(), pointQuery("2023-01-01", "2023-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := points[0].Get("tavg_c"); v != 26.85 {
		t.Fatalf("300 K = %v degC, want 26.85", v)
	}
}

func TestEra5PointDayFailureBecomesNoData(t *testing.T) {
	fb := newFakeBackend()
	fb.err = errors.New("backend down")
	ex := newERA5Land(fb)

	points, err := ex.Timeseries(context.Background(), pointQuery("2023-01-01", "2023-01-02"))
	if err != nil {
		t.Fatalf("per-day failure should not fail the series: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	for _, p := range points {
		for _, name := range []string{"tmin_c", "tmax_c", "tavg_c"} {
			if v, _ := p.Get(name); v != reducers.NoData {
				t.Errorf("%s on %s = %v, want no-data", name, p.Date, v)
			}
		}
	}
}

func TestEra5RegionComposites(t *testing.T) {
	fb := newFakeBackend()
	fb.compositeFn = func(_, _ string, _ backend.Window, temporalStat string) *float64 {
		switch temporalStat {
		case "min":
			return ptr(278.15)
		case "max":
			return ptr(303.15)
		default:
			return ptr(290.15)
		}
	}
	ex := newERA5Land(fb)

	points, err := ex.Timeseries(context.Background(), regionQuery("2023-01-01", "2023-01-01", "mean"))
	if err != nil {
		t.Fatal(err)
	}
	p := points[0]
	if v, _ := p.Get("tmin_c"); v != 5 {
		t.Errorf("tmin_c = %v, want 5", v)
	}
	if v, _ := p.Get("tmax_c"); v != 30 {
		t.Errorf("tmax_c = %v, want 30", v)
	}
	if v, _ := p.Get("tavg_c"); v != 17 {
		t.Errorf("tavg_c = %v, want 17", v)
	}
	if fb.count("reduce_composite") != 3 {
		t.Errorf("composite calls = %d, want 3", fb.count("reduce_composite"))
	}
}

func TestEra5RegionNonPositiveKelvinIsNoData(t *testing.T) {
	fb := newFakeBackend()
	fb.compositeFn = func(_, _ string, _ backend.Window, _ string) *float64 {
		return ptr(-5)
	}
	ex := newERA5Land(fb)

	points, err := ex.Timeseries(context.Background(), regionQuery("2023-01-01", "2023-01-01", "mean"))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := points[0].Get("tavg_c"); v != reducers.NoData {
		t.Fatalf("masked composite = %v, want no-data", v)
	}
}

func TestEra5VariableFilter(t *testing.T) {
	fb := newFakeBackend()
	fb.compositeFn = func(_, _ string, _ backend.Window, _ string) *float64 {
		return ptr(290.15)
	}
	ex := newERA5Land(fb)

	q := regionQuery("2023-01-01", "2023-01-01", "mean")
	q.Variables = []string{"tavg_c"}
	points, err := ex.Timeseries(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if fb.count("reduce_composite") != 1 {
		t.Errorf("filtered query made %d composite calls, want 1", fb.count("reduce_composite"))
	}
	if _, ok := points[0].Get("tmin_c"); ok {
		t.Error("filtered-out variable present")
	}
	if _, ok := points[0].Get("tavg_c"); !ok {
		t.Error("requested variable missing")
	}
}
