package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/yieldera/climate-datahub/internal/errs"
)

func f(v float64) *float64 { return &v }

func TestNormalizePoint(t *testing.T) {
	region, sum, isPoint, err := Normalize(Input{Type: "point", Lat: f(-17.83), Lon: f(31.05)})
	if err != nil {
		t.Fatal(err)
	}
	if !isPoint {
		t.Error("point not flagged as point")
	}
	if region.Type != "point" || region.Lat != -17.83 || region.Lon != 31.05 {
		t.Errorf("bad region: %+v", region)
	}
	if sum.Type != "Point" || sum.AreaKm2 != nil {
		t.Errorf("bad summary: %+v", sum)
	}
	if sum.Centroid != [2]float64{31.05, -17.83} {
		t.Errorf("centroid = %v", sum.Centroid)
	}
}

func TestNormalizePointBounds(t *testing.T) {
	cases := []Input{
		{Type: "point", Lat: f(91), Lon: f(0)},
		{Type: "point", Lat: f(-91), Lon: f(0)},
		{Type: "point", Lat: f(0), Lon: f(181)},
		{Type: "point", Lat: f(0), Lon: f(-181)},
		{Type: "point", Lon: f(0)},
		{Type: "point", Lat: f(0)},
	}
	for i, in := range cases {
		if _, _, _, err := Normalize(in); err == nil {
			t.Errorf("case %d accepted: %+v", i, in)
		}
	}
}

func TestNormalizeBufferedPoint(t *testing.T) {
	_, sum, isPoint, err := Normalize(Input{Type: "point", Lat: f(0), Lon: f(0), BufferMeters: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if !isPoint {
		t.Error("buffered point should still sample as a point")
	}
	if sum.Type != "BufferedPoint" {
		t.Errorf("type = %s", sum.Type)
	}
	if sum.AreaKm2 == nil {
		t.Fatal("buffered point has no area")
	}
	want := math.Pi // pi * 1km^2
	if math.Abs(*sum.AreaKm2-round4(want)) > 1e-9 {
		t.Errorf("area = %v, want %v", *sum.AreaKm2, round4(want))
	}
}

func TestNormalizeBufferBounds(t *testing.T) {
	if _, _, _, err := Normalize(Input{Type: "point", Lat: f(0), Lon: f(0), BufferMeters: -1}); err == nil {
		t.Error("negative buffer accepted")
	}
	if _, _, _, err := Normalize(Input{Type: "point", Lat: f(0), Lon: f(0), BufferMeters: 100001}); err == nil {
		t.Error("oversized buffer accepted")
	}
}

func TestNormalizeWKTPolygon(t *testing.T) {
	in := Input{Type: "wkt", WKT: "POLYGON((30 -18, 31 -18, 31 -17, 30 -17, 30 -18))"}
	region, sum, isPoint, err := Normalize(in)
	if err != nil {
		t.Fatal(err)
	}
	if isPoint {
		t.Error("polygon flagged as point")
	}
	if region.Type != "wkt" || region.WKT != in.WKT {
		t.Errorf("bad region: %+v", region)
	}
	if sum.Type != "Polygon" {
		t.Errorf("type = %s", sum.Type)
	}
	if sum.AreaKm2 == nil {
		t.Fatal("polygon has no area")
	}
	// 1 deg^2 at the planar approximation
	want := 111.32 * 111.32
	if math.Abs(*sum.AreaKm2-round4(want)) > 0.01 {
		t.Errorf("area = %v, want ~%v", *sum.AreaKm2, want)
	}
	if math.Abs(sum.Centroid[0]-30.5) > 1e-6 || math.Abs(sum.Centroid[1]-(-17.5)) > 1e-6 {
		t.Errorf("centroid = %v", sum.Centroid)
	}
}

func TestNormalizeWKTTinyPolygonAreaNull(t *testing.T) {
	in := Input{Type: "wkt", WKT: "POLYGON((0 0, 0.00001 0, 0.00001 0.00001, 0 0.00001, 0 0))"}
	_, sum, _, err := Normalize(in)
	if err != nil {
		t.Fatal(err)
	}
	if sum.AreaKm2 != nil {
		t.Errorf("negligible area should be null, got %v", *sum.AreaKm2)
	}
}

func TestNormalizeWKTInvalid(t *testing.T) {
	_, _, _, err := Normalize(Input{Type: "wkt", WKT: "POLYGON((oops"})
	if err == nil {
		t.Fatal("invalid WKT accepted")
	}
	var se *errs.Error
	if !errors.As(err, &se) || se.Name != "GeometryError" {
		t.Fatalf("want GeometryError, got %v", err)
	}
}

func TestNormalizeUnknownType(t *testing.T) {
	if _, _, _, err := Normalize(Input{Type: "geojson"}); err == nil {
		t.Fatal("unknown geometry type accepted")
	}
}
