// Package upstream implements the HTTP client for the remote IP metadata API.
package upstream

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	ipscope "github.com/eugener/ipscope/internal"
	"github.com/eugener/ipscope/internal/circuitbreaker"
	"github.com/eugener/ipscope/internal/telemetry"
)

// Edition selects which flavor of the lookup API single lookups go to.
type Edition string

// Supported API editions.
const (
	EditionStandard Edition = "standard"
	EditionLite     Edition = "lite"
	EditionCore     Edition = "core"
	EditionPlus     Edition = "plus"
)

const (
	defaultStandardURL = "https://ipinfo.io"
	defaultLiteURL     = "https://api.ipinfo.io/lite"
	defaultLookupURL   = "https://api.ipinfo.io/lookup"
	defaultBatchURL    = "https://ipinfo.io/batch"
	defaultMapURL      = "https://ipinfo.io/tools/map?cli=1"

	// selfKey resolves the caller's own address on the newer editions.
	selfKey = "me"

	// maxResponseBytes caps single lookup and map responses. Batch
	// responses get batchBytesPerKey per requested key on top.
	maxResponseBytes = 1 << 20
	batchBytesPerKey = 16 << 10
)

// ParseEdition validates an edition name. Empty selects the standard edition.
func ParseEdition(s string) (Edition, error) {
	switch e := Edition(strings.ToLower(s)); e {
	case "":
		return EditionStandard, nil
	case EditionStandard, EditionLite, EditionCore, EditionPlus:
		return e, nil
	default:
		return "", fmt.Errorf("%w: edition %q", ipscope.ErrUnsupported, s)
	}
}

var _ ipscope.Upstream = (*Client)(nil)

// Options configures a Client. Zero values select the public endpoints.
type Options struct {
	Edition    Edition
	BaseURL    string // overrides the edition's lookup endpoint
	BatchURL   string
	MapURL     string
	UserAgent  string
	HTTPClient *http.Client            // auth is expected in its transport chain
	Metrics    *telemetry.Metrics      // nil = no metrics
	Breaker    *circuitbreaker.Breaker // nil = never short-circuit
}

// Client talks to the remote lookup, batch and map endpoints.
type Client struct {
	edition   Edition
	baseURL   string
	batchURL  string
	mapURL    string
	userAgent string
	http      *http.Client
	metrics   *telemetry.Metrics
	breaker   *circuitbreaker.Breaker
}

// New creates a Client for the configured edition.
func New(opts Options) (*Client, error) {
	edition, err := ParseEdition(string(opts.Edition))
	if err != nil {
		return nil, err
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		switch edition {
		case EditionLite:
			baseURL = defaultLiteURL
		case EditionCore, EditionPlus:
			baseURL = defaultLookupURL
		default:
			baseURL = defaultStandardURL
		}
	}
	c := &Client{
		edition:   edition,
		baseURL:   strings.TrimRight(baseURL, "/"),
		batchURL:  cmp.Or(opts.BatchURL, defaultBatchURL),
		mapURL:    cmp.Or(opts.MapURL, defaultMapURL),
		userAgent: cmp.Or(opts.UserAgent, "ipscope/dev"),
		http:      opts.HTTPClient,
		metrics:   opts.Metrics,
		breaker:   opts.Breaker,
	}
	if c.http == nil {
		c.http = &http.Client{Transport: NewTransport(nil)}
	}
	return c, nil
}

// Edition returns the configured API edition.
func (c *Client) Edition() Edition { return c.edition }

// Lookup fetches metadata for a single address or identifier. An empty ip
// resolves the caller's own address.
func (c *Client) Lookup(ctx context.Context, ip string) (ipscope.Value, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "upstream.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("ipscope.edition", string(c.edition)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lookupURL(ip), nil)
	if err != nil {
		return nil, fmt.Errorf("upstream lookup: create request: %w", err)
	}
	c.setHeaders(httpReq)

	body, err := c.do(httpReq, "lookup", maxResponseBytes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("upstream lookup: %w: invalid JSON response", ipscope.ErrUpstream)
	}
	return ipscope.Value(body), nil
}

// FetchBatch resolves many identifiers with one POST to the batch endpoint.
// The response maps each resolvable identifier to its raw value.
func (c *Client) FetchBatch(ctx context.Context, keys []string, filter bool) (map[string]ipscope.Value, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "upstream.batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("ipscope.batch.keys", len(keys)),
		attribute.Bool("ipscope.batch.filter", filter),
	)

	body, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("upstream batch: marshal request: %w", err)
	}

	u := c.batchURL
	if filter {
		u = withQuery(u, "filter", "1")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream batch: create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq, "batch", batchResponseLimit(len(keys)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var out map[string]ipscope.Value
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("upstream batch: decode response: %w", err)
	}
	return out, nil
}

// MapReport uploads addresses to the map tool and returns the report URL.
func (c *Client) MapReport(ctx context.Context, ips []string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "upstream.map")
	defer span.End()

	body, err := json.Marshal(ips)
	if err != nil {
		return "", fmt.Errorf("upstream map: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mapURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("upstream map: create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq, "map", maxResponseBytes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	reportURL := gjson.GetBytes(respBody, "reportUrl").String()
	if reportURL == "" {
		return "", fmt.Errorf("upstream map: %w: response has no reportUrl", ipscope.ErrUpstream)
	}
	return reportURL, nil
}

// do executes req and returns the response body of a 2xx response.
// Non-2xx responses become *APIError. While the breaker is open, requests
// fail with ErrUpstream without touching the network. Failures caused by the
// caller's own context ending are not held against the remote API.
func (c *Client) do(req *http.Request, op string, limit int64) ([]byte, error) {
	if c.breaker == nil {
		return c.roundTrip(req, op, limit)
	}
	var body []byte
	err := c.breaker.Guard(req.Context(), func() error {
		var err error
		body, err = c.roundTrip(req, op, limit)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		c.recordError(op, "circuit_open")
		return nil, fmt.Errorf("upstream %s: %w: %w", op, ipscope.ErrUpstream, err)
	}
	return body, err
}

func (c *Client) roundTrip(req *http.Request, op string, limit int64) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	c.observe(op, start)
	if err != nil {
		c.recordError(op, "transport")
		return nil, fmt.Errorf("upstream %s: %w: %w", op, ipscope.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordError(op, strconv.Itoa(resp.StatusCode))
		return nil, ParseAPIError(op, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		c.recordError(op, "read")
		return nil, fmt.Errorf("upstream %s: read response: %w", op, err)
	}
	if int64(len(body)) > limit {
		c.recordError(op, "too_large")
		return nil, fmt.Errorf("upstream %s: %w: response exceeds %d bytes", op, ipscope.ErrUpstream, limit)
	}
	return body, nil
}

// batchResponseLimit sizes the body cap for a batch of n keys.
func batchResponseLimit(n int) int64 {
	return maxResponseBytes + int64(n)*batchBytesPerKey
}

func (c *Client) lookupURL(ip string) string {
	if ip == "" {
		if c.edition == EditionStandard {
			return c.baseURL + "/json"
		}
		ip = selfKey
	}
	segments := strings.Split(ip, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(segments, "/")
}

// setHeaders applies the user agent and accept headers to an outbound request.
// Auth is handled by the transport chain.
func (c *Client) setHeaders(r *http.Request) {
	r.Header.Set("User-Agent", c.userAgent)
	r.Header.Set("Accept", "application/json")
}

func (c *Client) observe(op string, start time.Time) {
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (c *Client) recordError(op, status string) {
	if c.metrics != nil {
		c.metrics.UpstreamErrors.WithLabelValues(op, status).Inc()
	}
}

func withQuery(rawURL, key, val string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(val)
}
