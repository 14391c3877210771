package adapters

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
)

// HTTPClient wraps resty with span instrumentation and context
// propagation for outbound requests.
type HTTPClient struct {
	rec    *trace.Recorder
	client *resty.Client
	logger *zap.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*resty.Client)

// WithRetry overrides the retry policy. max of zero disables retries.
func WithRetry(max int, minWait, maxWait time.Duration) HTTPClientOption {
	return func(c *resty.Client) {
		c.SetRetryCount(max).
			SetRetryWaitTime(minWait).
			SetRetryMaxWaitTime(maxWait)
	}
}

// NewHTTPClient creates a production-ready outbound client: retryable
// transport under resty, spans around every request.
func NewHTTPClient(rec *trace.Recorder, logger *zap.Logger, opts ...HTTPClientOption) *HTTPClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = nil // Disable logging

	restyClient := resty.New()
	restyClient.
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		SetHeader("User-Agent", "tracewire/1.0")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)
	for _, opt := range opts {
		opt(restyClient)
	}

	return &HTTPClient{
		rec:    rec,
		client: restyClient,
		logger: logger,
	}
}

// SetBaseURL sets the base URL for relative request paths.
func (c *HTTPClient) SetBaseURL(base string) {
	c.client.SetBaseURL(base)
}

// Get performs a traced GET. The span context from ctx is propagated to
// the remote service via the trace header; the response (and any error)
// is returned exactly as resty produced it.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) (*resty.Response, error) {
	return c.do(ctx, "GET", rawURL, nil)
}

// Post performs a traced POST with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, rawURL string, body any) (*resty.Response, error) {
	return c.do(ctx, "POST", rawURL, body)
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL string, body any) (*resty.Response, error) {
	parent, _ := trace.FromContext(ctx)
	span, sc := c.rec.Start(fmt.Sprintf("HTTP %s %s", method, pathOf(rawURL)), parent)
	span.SetAttribute("http.method", method)
	span.SetAttribute("http.url", rawURL)

	req := c.client.R().
		SetContext(trace.ContextWith(ctx, sc)).
		SetHeader(trace.Header, sc.String())
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, rawURL)
	if err != nil {
		c.rec.RecordError(span, err)
		endSpan(c.rec, span, trace.StatusError, nil, c.logger)
		return resp, err
	}

	endSpan(c.rec, span, trace.StatusOK, map[string]any{
		"http.status_code": resp.StatusCode(),
	}, c.logger)
	return resp, nil
}

// pathOf keeps span names low-cardinality: scheme, host and query are
// attributes, the path names the operation.
func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return u.Path
}
