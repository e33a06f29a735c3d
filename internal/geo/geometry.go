// Package geo normalizes request geometries into the backend-native region
// handle and a lightweight shape summary.
//
// All metric conversions use the fixed equatorial approximation
// 1 degree ~= 111,320 m. That is not geodetically exact and is acceptable
// only for small buffers and regions near the equator.
package geo

import (
	"math"
	"strings"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/yieldera/climate-datahub/internal/errs"
)

const (
	// MetersPerDegree at the equator.
	MetersPerDegree = 111320.0
	// KmPerDegree used for planar area conversion.
	KmPerDegree = 111.32

	maxBufferMeters = 100000.0
)

// Input is the request-side geometry descriptor.
type Input struct {
	Type         string   `json:"type"` // "point" or "wkt"
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	WKT          string   `json:"wkt,omitempty"`
	BufferMeters float64  `json:"buffer_m,omitempty"`
}

// Region is the handle forwarded verbatim to the compute backend; the
// backend owns the geometry algebra (buffering, reprojection).
type Region struct {
	Type         string  `json:"type"`
	Lat          float64 `json:"lat,omitempty"`
	Lon          float64 `json:"lon,omitempty"`
	WKT          string  `json:"wkt,omitempty"`
	BufferMeters float64 `json:"buffer_m,omitempty"`
}

type Summary struct {
	Type     string     `json:"type"`
	Centroid [2]float64 `json:"centroid"` // [lon, lat]
	AreaKm2  *float64   `json:"area_km2"`
}

// Normalize validates the descriptor and returns the region handle, its
// summary and whether the geometry is a point (buffered points included,
// matching the sampling behavior of the extractors).
func Normalize(in Input) (Region, Summary, bool, error) {
	if in.BufferMeters < 0 || in.BufferMeters > maxBufferMeters {
		return Region{}, Summary{}, false, errs.Validation("buffer_m must be in [0, %d]", int(maxBufferMeters))
	}

	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "point":
		return normalizePoint(in)
	case "wkt":
		return normalizeWKT(in)
	default:
		return Region{}, Summary{}, false, errs.Validation("unsupported geometry type: %q", in.Type)
	}
}

func normalizePoint(in Input) (Region, Summary, bool, error) {
	if in.Lat == nil || in.Lon == nil {
		return Region{}, Summary{}, false, errs.Validation("lat and lon required for point geometry")
	}
	lat, lon := *in.Lat, *in.Lon
	if lat < -90 || lat > 90 {
		return Region{}, Summary{}, false, errs.Validation("latitude must be in [-90, 90]")
	}
	if lon < -180 || lon > 180 {
		return Region{}, Summary{}, false, errs.Validation("longitude must be in [-180, 180]")
	}

	region := Region{Type: "point", Lat: lat, Lon: lon, BufferMeters: in.BufferMeters}

	sum := Summary{Type: "Point", Centroid: [2]float64{lon, lat}}
	if in.BufferMeters > 0 {
		sum.Type = "BufferedPoint"
		area := round4(math.Pi * in.BufferMeters * in.BufferMeters / 1e6)
		sum.AreaKm2 = &area
	}
	return region, sum, true, nil
}

func normalizeWKT(in Input) (Region, Summary, bool, error) {
	if strings.TrimSpace(in.WKT) == "" {
		return Region{}, Summary{}, false, errs.Validation("wkt string required for wkt geometry")
	}
	g, err := wkt.Unmarshal(in.WKT)
	if err != nil {
		return Region{}, Summary{}, false, errs.Geometry("invalid WKT string: %v", err)
	}

	region := Region{Type: "wkt", WKT: in.WKT, BufferMeters: in.BufferMeters}
	sum := summarize(g, in.BufferMeters)
	return region, sum, false, nil
}

// summarize computes centroid and a planar area approximation. The area is
// only meaningful near the equator, a known limitation.
func summarize(g geom.T, bufferM float64) Summary {
	s := Summary{Type: "Unknown", Centroid: [2]float64{0, 0}}

	switch t := g.(type) {
	case *geom.Point:
		s.Type = "Point"
		s.Centroid = [2]float64{t.X(), t.Y()}
		if bufferM > 0 {
			area := round4(math.Pi * bufferM * bufferM / 1e6)
			s.AreaKm2 = &area
		}
	case *geom.MultiPoint:
		s.Type = "MultiPoint"
		s.Centroid = vertexCentroid(t.FlatCoords(), t.Stride())
		if n := t.NumPoints(); n > 0 && bufferM > 0 {
			area := round4(float64(n) * math.Pi * bufferM * bufferM / 1e6)
			s.AreaKm2 = &area
		}
	case *geom.LineString:
		s.Type = "LineString"
		s.Centroid = vertexCentroid(t.FlatCoords(), t.Stride())
		if bufferM > 0 {
			lengthKm := lineLengthDeg(t.Coords()) * KmPerDegree
			rKm := bufferM / 1e3
			area := round4(lengthKm*2*rKm + math.Pi*rKm*rKm)
			s.AreaKm2 = &area
		}
	case *geom.Polygon:
		s.Type = "Polygon"
		s.Centroid = ringCentroid(t.Coords())
		s.AreaKm2 = planarAreaKm2(t.Area())
	case *geom.MultiPolygon:
		s.Type = "MultiPolygon"
		if t.NumPolygons() > 0 {
			s.Centroid = ringCentroid(t.Polygon(0).Coords())
		}
		s.AreaKm2 = planarAreaKm2(t.Area())
	}
	return s
}

// planarAreaKm2 converts a deg^2 area to km^2; areas at or below 0.0001 km^2
// are reported as null.
func planarAreaKm2(areaDeg2 float64) *float64 {
	km2 := round4(math.Abs(areaDeg2) * KmPerDegree * KmPerDegree)
	if km2 <= 0.0001 {
		return nil
	}
	return &km2
}

func vertexCentroid(flat []float64, stride int) [2]float64 {
	if stride <= 0 || len(flat) < stride {
		return [2]float64{0, 0}
	}
	var sx, sy float64
	n := len(flat) / stride
	for i := 0; i < len(flat); i += stride {
		sx += flat[i]
		sy += flat[i+1]
	}
	return [2]float64{sx / float64(n), sy / float64(n)}
}

// ringCentroid is the area-weighted centroid of the outer ring.
func ringCentroid(rings [][]geom.Coord) [2]float64 {
	if len(rings) == 0 || len(rings[0]) == 0 {
		return [2]float64{0, 0}
	}
	ring := rings[0]
	var a, cx, cy float64
	for i := 0; i < len(ring)-1; i++ {
		cross := ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
		a += cross
		cx += (ring[i][0] + ring[i+1][0]) * cross
		cy += (ring[i][1] + ring[i+1][1]) * cross
	}
	if a == 0 {
		// degenerate ring, fall back to vertex average
		var sx, sy float64
		for _, c := range ring {
			sx += c[0]
			sy += c[1]
		}
		return [2]float64{sx / float64(len(ring)), sy / float64(len(ring))}
	}
	a /= 2
	return [2]float64{cx / (6 * a), cy / (6 * a)}
}

func lineLengthDeg(coords []geom.Coord) float64 {
	var l float64
	for i := 0; i < len(coords)-1; i++ {
		dx := coords[i+1][0] - coords[i][0]
		dy := coords[i+1][1] - coords[i][1]
		l += math.Hypot(dx, dy)
	}
	return l
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
