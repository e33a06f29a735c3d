package dataset

import (
	"bytes"
	"encoding/json"
	"math"
)

// Point is one dated row of a time series. Variable order is preserved so
// the JSON and CSV renderings stay stable across requests.
type Point struct {
	Date   string
	Names  []string
	Values []float64
}

// Set appends or replaces a variable on the row.
func (p *Point) Set(name string, value float64) {
	for i, n := range p.Names {
		if n == name {
			p.Values[i] = value
			return
		}
	}
	p.Names = append(p.Names, name)
	p.Values = append(p.Values, value)
}

// Get returns the value for name and whether it is present.
func (p Point) Get(name string) (float64, bool) {
	for i, n := range p.Names {
		if n == name {
			return p.Values[i], true
		}
	}
	return 0, false
}

// MarshalJSON emits {"date": ..., "<var>": <value>, ...} preserving the
// declared variable order.
func (p Point) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"date":`)
	d, err := json.Marshal(p.Date)
	if err != nil {
		return nil, err
	}
	buf.Write(d)
	for i, name := range p.Names {
		buf.WriteByte(',')
		n, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(n)
		buf.WriteByte(':')
		v, err := json.Marshal(p.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a row from its flat object form. Variable order
// follows Go's map iteration and is therefore unspecified, which cached
// consumers tolerate.
func (p *Point) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	p.Names = p.Names[:0]
	p.Values = p.Values[:0]
	if d, ok := m["date"].(string); ok {
		p.Date = d
	}
	for k, v := range m {
		if k == "date" {
			continue
		}
		if f, ok := v.(float64); ok {
			p.Set(k, f)
		}
	}
	return nil
}

// round2 is the service-wide value precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
