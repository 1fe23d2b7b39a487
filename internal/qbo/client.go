// Package qbo calls the QuickBooks Online accounting API on behalf of one
// connected company.
package qbo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/qbportal/internal/credentials"
)

// Environments understood by BaseURL.
const (
	Sandbox    = "sandbox"
	Production = "production"
)

const (
	sandboxHost    = "https://sandbox-quickbooks.api.intuit.com"
	productionHost = "https://quickbooks.api.intuit.com"

	maxBodyBytes = 16 << 20
)

// BaseURL returns the API host for an environment, defaulting to sandbox.
func BaseURL(environment string) string {
	if strings.EqualFold(environment, Production) {
		return productionHost
	}
	return sandboxHost
}

// Recorder receives one observation per upstream call.
type Recorder interface {
	ObserveUpstreamCall(call, outcome string, elapsed time.Duration)
}

// Config configures a Client.
type Config struct {
	Environment  string
	BaseURL      string
	Timeout      time.Duration
	MinorVersion int
	HTTPClient   *http.Client
	Metrics      Recorder
	Logger       *slog.Logger
}

// Client is a stateless authenticated caller. It never retries.
type Client struct {
	baseURL      string
	timeout      time.Duration
	minorVersion int
	http         *http.Client
	metrics      Recorder
	logger       *slog.Logger
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL(cfg.Environment)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(base, "/"),
		timeout:      timeout,
		minorVersion: cfg.MinorVersion,
		http:         httpClient,
		metrics:      cfg.Metrics,
		logger:       logger,
	}
}

type callNameKey struct{}

// WithCallName labels calls made with ctx for metrics and logs.
func WithCallName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, callNameKey{}, name)
}

// CallNameFromContext returns the label set by WithCallName.
func CallNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(callNameKey{}).(string)
	return name
}

func callName(ctx context.Context, path string) string {
	if name := CallNameFromContext(ctx); name != "" {
		return name
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Call issues method against /v3/company/{realm}/{path} and returns the raw
// JSON body. Non-2xx statuses and bodies that are not valid JSON fail with
// *HTTPError; network errors and timeouts are returned wrapped.
func (c *Client) Call(ctx context.Context, cred credentials.Credential, method, path string, params url.Values) (json.RawMessage, error) {
	if cred.AccessToken == "" || cred.RealmID == "" {
		return nil, errors.New("qbo: credential has no access token or realm")
	}
	name := callName(ctx, path)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.do(ctx, cred, method, path, params)
	c.observe(name, outcome(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("qbo: %s: %w", name, err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, cred credentials.Credential, method, path string, params url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + "/v3/company/" + url.PathEscape(cred.RealmID) + "/" + strings.TrimLeft(path, "/")
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	if c.minorVersion > 0 && query.Get("minorversion") == "" {
		query.Set("minorversion", strconv.Itoa(c.minorVersion))
	}
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(raw), Fault: faultMessage(raw)}
	}
	if !json.Valid(raw) {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(raw), Malformed: true}
	}
	return json.RawMessage(raw), nil
}

func (c *Client) observe(name, result string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveUpstreamCall(name, result, elapsed)
	}
}

func outcome(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &httpErr):
		switch {
		case httpErr.Malformed:
			return "malformed"
		case httpErr.Unauthorized():
			return "unauthorized"
		}
		return "http_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
