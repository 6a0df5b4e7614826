package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/censusgeo/internal/resilience"
)

// Options configures the feature service client.
type Options struct {
	// BaseURL is the map service root, e.g.
	// https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb/tigerWMS_Current/MapServer
	BaseURL string

	UserAgent string
	Timeout   time.Duration

	// PageSize is the default pagination window. Default: 100.
	PageSize int

	// ChunkSize bounds the number of concurrent page requests per wave.
	// Default: 100.
	ChunkSize int

	// PageRetries is the number of shrink-and-retry passes after a transient
	// service failure during a paged fetch. Default: 2.
	PageRetries int

	// RetrySleep is the fixed sleep between paged-fetch retries. Default: 2s.
	RetrySleep time.Duration

	// RatePerSecond bounds outbound request rate. Default: 20.
	RatePerSecond int

	// OutSR is the output spatial reference for geometry requests.
	// Default: "4236".
	OutSR string

	// GeomPrecision is the requested geometry coordinate precision.
	// Default: 6.
	GeomPrecision int

	// LayerPageSizes overrides the page window for specific layer names
	// whose geometries are too heavy for the default window.
	LayerPageSizes map[string]int
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = "censusgeo/1.0"
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.PageSize <= 0 {
		o.PageSize = 100
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 100
	}
	if o.PageRetries <= 0 {
		o.PageRetries = 2
	}
	if o.RetrySleep <= 0 {
		o.RetrySleep = 2 * time.Second
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 20
	}
	if o.OutSR == "" {
		o.OutSR = "4236"
	}
	if o.GeomPrecision <= 0 {
		o.GeomPrecision = 6
	}
	return o
}

// Client talks to one ArcGIS-style map service. It is safe for concurrent use.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	stats   Stats
}

// NewClient creates a feature service client for the given map service.
func NewClient(opts Options) *Client {
	opts = opts.withDefaults()
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		opts: opts,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RatePerSecond),
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			ShouldTrip: IsTransient,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("feature service circuit state change",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
	}
}

// BaseURL returns the map service root the client is bound to.
func (c *Client) BaseURL() string { return c.opts.BaseURL }

// BreakerState exposes the circuit state for observability.
func (c *Client) BreakerState() resilience.CircuitState { return c.breaker.State() }

// errorEnvelope is the ArcGIS in-band error payload, returned with HTTP 200.
type errorEnvelope struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// queryResponse covers every response shape a layer query can produce:
// a count probe, a GeoJSON feature collection (with the transfer-limit flag
// either top-level or tucked under properties), or an error envelope.
type queryResponse struct {
	Error                 *errorEnvelope      `json:"error"`
	Count                 *int                `json:"count"`
	Features              []*geojson.Feature  `json:"features"`
	ExceededTransferLimit bool                `json:"exceededTransferLimit"`
	Properties            *responseProperties `json:"properties"`
}

type responseProperties struct {
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
}

func (r *queryResponse) truncated() bool {
	return r.ExceededTransferLimit || (r.Properties != nil && r.Properties.ExceededTransferLimit)
}

// get issues one HTTP GET against the service with transport-level retries.
// The returned body is the raw response payload.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	rawURL := c.opts.BaseURL + "/" + path + "?" + params.Encode()

	policy := resilience.DefaultPolicy()
	policy.ShouldRetry = IsRetriableTransport
	policy.OnRetry = resilience.RetryLogger("feature-service", path)

	return resilience.DoVal(ctx, policy, func(ctx context.Context) ([]byte, error) {
		var body []byte
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "arcgis: rate limiter wait")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return eris.Wrap(err, "arcgis: create request")
			}
			req.Header.Set("User-Agent", c.opts.UserAgent)

			c.stats.requests.Add(1)
			resp, err := c.http.Do(req)
			if err != nil {
				c.stats.transportErrors.Add(1)
				return &TransportError{URL: rawURL, Err: err}
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				c.stats.serviceErrors.Add(1)
				return &ServiceError{Code: resp.StatusCode, Message: resp.Status}
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				c.stats.transportErrors.Add(1)
				return &TransportError{URL: rawURL, Err: err}
			}
			return nil
		})
		return body, err
	})
}

// query issues one layer query and decodes the combined response shape.
func (c *Client) query(ctx context.Context, layerID int, params url.Values) (*queryResponse, error) {
	path := fmt.Sprintf("%d/query", layerID)
	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		c.stats.decodeErrors.Add(1)
		return nil, &DecodeError{URL: c.opts.BaseURL + "/" + path, Err: err}
	}
	if qr.Error != nil {
		c.stats.serviceErrors.Add(1)
		return nil, &ServiceError{Code: qr.Error.Code, Message: qr.Error.Message, Details: qr.Error.Details}
	}
	return &qr, nil
}

// baseParams assembles the query parameters shared by count probes and pages.
func (c *Client) baseParams(spec FetchSpec, format string) url.Values {
	params := url.Values{}
	params.Set("where", spec.where())
	params.Set("outFields", spec.OutFields)
	params.Set("f", format)
	if spec.WantGeometry {
		params.Set("returnGeometry", "true")
		params.Set("geometryPrecision", fmt.Sprint(c.opts.GeomPrecision))
		params.Set("outSR", c.opts.OutSR)
	} else {
		params.Set("returnGeometry", "false")
	}
	if spec.Geometry != nil {
		params.Set("geometry", spec.Geometry.param())
		params.Set("geometryType", "esriGeometryEnvelope")
		params.Set("inSR", c.opts.OutSR)
		params.Set("spatialRel", "esriSpatialRelIntersects")
	}
	return params
}
