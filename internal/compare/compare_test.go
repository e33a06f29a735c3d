package compare

import (
	"context"
	"testing"

	"github.com/yieldera/climate-datahub/internal/dataset"
	"github.com/yieldera/climate-datahub/internal/dates"
	"github.com/yieldera/climate-datahub/internal/reducers"
)

// stubExtractor serves canned series keyed by the range start date.
type stubExtractor struct {
	meta   dataset.Metadata
	series map[string][]dataset.Point
}

func (s *stubExtractor) Metadata() dataset.Metadata { return s.meta }
func (s *stubExtractor) MaxTimeseriesDays() int     { return 5000 }

func (s *stubExtractor) Timeseries(_ context.Context, q dataset.Query) ([]dataset.Point, error) {
	return s.series[q.Range.StartString()], nil
}

func (s *stubExtractor) Statistics(ctx context.Context, q dataset.Query) (map[string]dataset.VarStats, error) {
	return nil, nil
}

func (s *stubExtractor) ExportGeoTIFF(_ context.Context, _ dataset.ExportQuery) (*dataset.Export, error) {
	return nil, nil
}

func mustRange(t *testing.T, start, end string) dates.Range {
	t.Helper()
	r, err := dates.Parse(start, end)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func tempSeries(start string, vals []float64) []dataset.Point {
	r, _ := dates.Parse(start, start)
	days := r.Start
	out := make([]dataset.Point, len(vals))
	for i, v := range vals {
		p := dataset.Point{Date: days.AddDate(0, 0, i).Format(dates.Layout)}
		p.Set("tavg_c", v)
		out[i] = p
	}
	return out
}

func newTempStub() *stubExtractor {
	return &stubExtractor{
		meta: dataset.Metadata{
			ID:        dataset.ERA5Land,
			Primary:   "tavg_c",
			Variables: []dataset.VariableMeta{{Name: "tavg_c"}},
		},
		series: map[string][]dataset.Point{},
	}
}

func runCompare(t *testing.T, ex *stubExtractor, variable string) *Result {
	t.Helper()
	q1 := dataset.Query{Range: mustRange(t, "2022-01-01", "2022-01-03")}
	q2 := dataset.Query{Range: mustRange(t, "2023-01-01", "2023-01-03")}
	res, err := Run(context.Background(), ex, ex.meta.ID, q1, q2, variable)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRunComputesStatsAndChange(t *testing.T) {
	ex := newTempStub()
	ex.series["2022-01-01"] = tempSeries("2022-01-01", []float64{20, 22, 24})
	ex.series["2023-01-01"] = tempSeries("2023-01-01", []float64{22, 24, 26})

	res := runCompare(t, ex, "")
	if res.Variable != "tavg_c" {
		t.Fatalf("variable = %s, want primary tavg_c", res.Variable)
	}
	if res.Stats1.Mean != 22 || res.Stats2.Mean != 24 {
		t.Fatalf("means = %v / %v", res.Stats1.Mean, res.Stats2.Mean)
	}
	if res.Change.Absolute != 2 {
		t.Fatalf("absolute change = %v, want 2", res.Change.Absolute)
	}
	if res.Change.Percent != 9.09 {
		t.Fatalf("percent change = %v, want 9.09", res.Change.Percent)
	}
	// a 9% warming clears the 5% temperature threshold
	if res.Change.Severity != "hotter" {
		t.Fatalf("severity = %s, want hotter", res.Change.Severity)
	}
}

func TestTemperatureSeverityTracksRelativeChange(t *testing.T) {
	ex := newTempStub()
	// +2 degrees on a 20 degree mean is a 10% shift
	ex.series["2022-01-01"] = tempSeries("2022-01-01", []float64{20, 20, 20})
	ex.series["2023-01-01"] = tempSeries("2023-01-01", []float64{22, 22, 22})
	res := runCompare(t, ex, "")
	if res.Change.Absolute != 2 {
		t.Fatalf("absolute change = %v, want 2", res.Change.Absolute)
	}
	if res.Change.Severity != "hotter" {
		t.Fatalf("severity = %s, want hotter", res.Change.Severity)
	}

	// the same +2 degrees against a 50 degree mean stays under 5%
	ex.series["2022-01-01"] = tempSeries("2022-01-01", []float64{50, 50, 50})
	ex.series["2023-01-01"] = tempSeries("2023-01-01", []float64{52, 52, 52})
	if res := runCompare(t, ex, ""); res.Change.Severity != "normal" {
		t.Fatalf("severity = %s, want normal", res.Change.Severity)
	}

	// -90% is far past the -15% band
	ex.series["2022-01-01"] = tempSeries("2022-01-01", []float64{20, 20, 20})
	ex.series["2023-01-01"] = tempSeries("2023-01-01", []float64{2, 2, 2})
	if res := runCompare(t, ex, ""); res.Change.Severity != "much_cooler" {
		t.Fatalf("severity = %s, want much_cooler", res.Change.Severity)
	}
}

func precipStub() *stubExtractor {
	ex := &stubExtractor{
		meta: dataset.Metadata{
			ID:        dataset.CHIRPS,
			Primary:   "precip_mm",
			Variables: []dataset.VariableMeta{{Name: "precip_mm"}},
		},
		series: map[string][]dataset.Point{},
	}
	return ex
}

func precipSeries(start string, vals []float64) []dataset.Point {
	out := tempSeries(start, vals)
	for i := range out {
		v := out[i].Values[0]
		out[i] = dataset.Point{Date: out[i].Date}
		out[i].Set("precip_mm", v)
	}
	return out
}

func TestPrecipSeverityUsesPercentChange(t *testing.T) {
	ex := precipStub()
	ex.series["2022-01-01"] = precipSeries("2022-01-01", []float64{100, 100, 100})
	ex.series["2023-01-01"] = precipSeries("2023-01-01", []float64{80, 80, 80})

	res := runCompare(t, ex, "")
	if res.Change.Percent != -20 {
		t.Fatalf("percent = %v, want -20", res.Change.Percent)
	}
	if res.Change.Severity != "drier" {
		t.Fatalf("severity = %s, want drier", res.Change.Severity)
	}

	ex.series["2023-01-01"] = precipSeries("2023-01-01", []float64{140, 140, 140})
	if res := runCompare(t, ex, ""); res.Change.Severity != "much_wetter" {
		t.Fatalf("severity = %s, want much_wetter", res.Change.Severity)
	}
}

func TestZeroBaselineMean(t *testing.T) {
	ex := precipStub()
	ex.series["2022-01-01"] = precipSeries("2022-01-01", []float64{0, 0, 0})
	ex.series["2023-01-01"] = precipSeries("2023-01-01", []float64{10, 10, 10})

	res := runCompare(t, ex, "")
	if res.Change.Percent != 0 {
		t.Fatalf("percent with zero baseline = %v, want 0", res.Change.Percent)
	}
	if res.Change.Absolute != 10 {
		t.Fatalf("absolute = %v, want 10", res.Change.Absolute)
	}
}

func TestAlignTruncatesToShorter(t *testing.T) {
	ex := precipStub()
	ex.series["2022-01-01"] = precipSeries("2022-01-01", []float64{1, 2, 3})
	ex.series["2023-01-01"] = precipSeries("2023-01-01", []float64{4, 5})

	res := runCompare(t, ex, "")
	if len(res.Aligned) != 2 {
		t.Fatalf("aligned length = %d, want 2", len(res.Aligned))
	}
	a := res.Aligned[1]
	if a.Index != 1 || a.Value1 != 2 || a.Value2 != 5 {
		t.Fatalf("aligned[1] = %+v", a)
	}
	if a.Date1 != "2022-01-02" || a.Date2 != "2023-01-02" {
		t.Fatalf("aligned dates = %s / %s", a.Date1, a.Date2)
	}
}

func TestNoDataPassesThroughAlignment(t *testing.T) {
	ex := precipStub()
	ex.series["2022-01-01"] = precipSeries("2022-01-01", []float64{1, reducers.NoData})
	ex.series["2023-01-01"] = precipSeries("2023-01-01", []float64{2, 3})

	res := runCompare(t, ex, "")
	if res.Aligned[1].Value1 != reducers.NoData {
		t.Fatalf("no-data not passed through: %v", res.Aligned[1].Value1)
	}
	// but stats must exclude it
	if res.Stats1.Count != 1 {
		t.Fatalf("stats1 count = %d, want 1", res.Stats1.Count)
	}
}

func TestUnknownVariableRejected(t *testing.T) {
	ex := newTempStub()
	q := dataset.Query{Range: mustRange(t, "2022-01-01", "2022-01-03")}
	if _, err := Run(context.Background(), ex, ex.meta.ID, q, q, "precip_mm"); err == nil {
		t.Fatal("unknown variable accepted")
	}
}

func TestStdDevPopulation(t *testing.T) {
	ex := precipStub()
	ex.series["2022-01-01"] = precipSeries("2022-01-01", []float64{2, 4, 6})
	ex.series["2023-01-01"] = precipSeries("2023-01-01", []float64{2, 4, 6})

	res := runCompare(t, ex, "")
	// population stddev of {2,4,6} = sqrt(8/3) = 1.63
	if res.Stats1.StdDev != 1.63 {
		t.Fatalf("stddev = %v, want 1.63", res.Stats1.StdDev)
	}
	if res.Stats1.Sum != 12 {
		t.Fatalf("sum = %v, want 12", res.Stats1.Sum)
	}
}
