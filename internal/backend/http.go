package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yieldera/climate-datahub/internal/errs"
	"github.com/yieldera/climate-datahub/internal/geo"
	"github.com/yieldera/climate-datahub/internal/observability"
)

const maxErrBody = 8 << 10 // keep error snippets bounded

// HTTPClient talks to the compute backend over its JSON API.
type HTTPClient struct {
	base        string
	credentials string
	hc          *http.Client
	now         func() time.Time
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, credentialsJSON string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		base:        baseURL,
		credentials: credentialsJSON,
		hc:          &http.Client{Timeout: timeout},
		now:         time.Now,
	}
}

type listImagesRequest struct {
	Collection string     `json:"collection"`
	Window     Window     `json:"window"`
	Region     geo.Region `json:"region"`
}

type listImagesResponse struct {
	Images []Image `json:"images"`
}

func (c *HTTPClient) ListImages(ctx context.Context, collection string, w Window, region geo.Region) ([]Image, error) {
	var out listImagesResponse
	err := c.do(ctx, "list_images", "/v1/images", listImagesRequest{
		Collection: collection,
		Window:     w,
		Region:     region,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Images, nil
}

type reduceRequest struct {
	ImageID string     `json:"image_id"`
	Region  geo.Region `json:"region"`
	Reducer string     `json:"reducer"`
	Band    string     `json:"band"`
	ScaleM  int        `json:"scale_m"`
}

type reduceResponse struct {
	Value *float64 `json:"value"`
}

func (c *HTTPClient) ReduceRegion(ctx context.Context, imageID string, region geo.Region, reducer, band string, scaleM int) (*float64, error) {
	var out reduceResponse
	err := c.do(ctx, "reduce_region", "/v1/reduce", reduceRequest{
		ImageID: imageID,
		Region:  region,
		Reducer: reducer,
		Band:    band,
		ScaleM:  scaleM,
	}, &out)
	if err != nil {
		return nil, err
	}
	return normalize(out.Value), nil
}

type reduceSeriesRequest struct {
	Collection string     `json:"collection"`
	Band       string     `json:"band"`
	Window     Window     `json:"window"`
	Region     geo.Region `json:"region"`
	Reducer    string     `json:"reducer"`
	ScaleM     int        `json:"scale_m"`
}

type reduceSeriesResponse struct {
	Values []SeriesValue `json:"values"`
}

func (c *HTTPClient) ReduceSeries(ctx context.Context, collection, band string, w Window, region geo.Region, reducer string, scaleM int) ([]SeriesValue, error) {
	var out reduceSeriesResponse
	err := c.do(ctx, "reduce_series", "/v1/reduce/series", reduceSeriesRequest{
		Collection: collection,
		Band:       band,
		Window:     w,
		Region:     region,
		Reducer:    reducer,
		ScaleM:     scaleM,
	}, &out)
	if err != nil {
		return nil, err
	}
	for i := range out.Values {
		out.Values[i].Value = normalize(out.Values[i].Value)
	}
	return out.Values, nil
}

type reduceCompositeRequest struct {
	Collection   string     `json:"collection"`
	Band         string     `json:"band"`
	Window       Window     `json:"window"`
	TemporalStat string     `json:"temporal_stat"`
	Region       geo.Region `json:"region"`
	Reducer      string     `json:"reducer"`
	ScaleM       int        `json:"scale_m"`
}

func (c *HTTPClient) ReduceComposite(ctx context.Context, collection, band string, w Window, temporalStat string, region geo.Region, reducer string, scaleM int) (*float64, error) {
	var out reduceResponse
	err := c.do(ctx, "reduce_composite", "/v1/reduce/composite", reduceCompositeRequest{
		Collection:   collection,
		Band:         band,
		Window:       w,
		TemporalStat: temporalStat,
		Region:       region,
		Reducer:      reducer,
		ScaleM:       scaleM,
	}, &out)
	if err != nil {
		return nil, err
	}
	return normalize(out.Value), nil
}

type exportResponse struct {
	URL string `json:"url"`
}

func (c *HTTPClient) ExportURL(ctx context.Context, spec ExportSpec) (string, error) {
	var out exportResponse
	if err := c.do(ctx, "export", "/v1/export", spec, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errs.Backend(nil, "backend returned no export URL")
	}
	return out.URL, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	start := c.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/health", nil)
	if err != nil {
		return errs.Backend(err, "build health request")
	}
	c.auth(req)
	resp, err := c.hc.Do(req)
	observability.ObserveUpstreamLatency("ping", c.now().Sub(start).Seconds())
	if err != nil {
		return errs.Backend(err, "backend unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.Backend(nil, "backend health check returned %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errs.Backend(err, "encode %s request", op)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return errs.Backend(err, "build %s request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	start := c.now()
	resp, err := c.hc.Do(req)
	observability.ObserveUpstreamLatency(op, c.now().Sub(start).Seconds())
	if err != nil {
		return errs.Backend(err, "%s call failed", op)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return errs.Backend(fmt.Errorf("status %d: %s", resp.StatusCode, snippet), "%s call rejected", op)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Backend(err, "decode %s response", op)
	}
	return nil
}

func (c *HTTPClient) auth(req *http.Request) {
	if c.credentials != "" {
		req.Header.Set("Authorization", "Bearer "+c.credentials)
	}
}

// normalize drops sentinel and physically implausible values so callers can
// treat nil uniformly as "no data".
func normalize(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if *v < -900 || *v > 1e6 {
		return nil
	}
	return v
}
