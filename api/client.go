package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://api.bitvavo.com/v2"
	DefaultAccessWindow = 10 * time.Second
	DefaultTimeout      = 10 * time.Second

	defaultRequestsPerSecond = 15
	defaultBurst             = 10
	defaultMinRemaining      = 10
)

// Client is the Bitvavo REST facade. One method per endpoint; each performs a
// single round trip. A Client is safe for concurrent use.
type Client struct {
	http         *resty.Client
	baseURL      string
	signPrefix   string
	signer       *Signer
	accessWindow time.Duration
	timeout      time.Duration
	retries      int
	userAgent    string
	limiter      *rate.Limiter
	guard        *rateLimitGuard
	now          func() time.Time
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithCredentials(key, secret string) Option {
	return func(c *Client) { c.signer = NewSigner(key, secret) }
}

func WithAccessWindow(window time.Duration) Option {
	return func(c *Client) { c.accessWindow = window }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithRateLimit sets the client-side token bucket.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// WithMinRemaining sets the server weight floor below which requests wait for
// the rate limit reset.
func WithMinRemaining(n int) Option {
	return func(c *Client) { c.guard.minRemaining = n }
}

// WithRetries retries GET requests on transport errors and 5xx responses.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		accessWindow: DefaultAccessWindow,
		timeout:      DefaultTimeout,
		userAgent:    "bitvavo-go/" + Version,
		limiter:      rate.NewLimiter(defaultRequestsPerSecond, defaultBurst),
		guard:        newRateLimitGuard(defaultMinRemaining),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if u, err := url.Parse(c.baseURL); err == nil {
		c.signPrefix = u.Path
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeader("User-Agent", c.userAgent).
		SetLogger(restyLogger{})
	if c.retries > 0 {
		c.http.
			SetRetryCount(c.retries).
			SetRetryWaitTime(250 * time.Millisecond).
			AddRetryCondition(retryIdempotent)
	}

	return c
}

// HasCredentials reports whether authenticated endpoints can be called.
func (c *Client) HasCredentials() bool {
	return c.signer.Valid()
}

// Signer exposes the request signer, nil without credentials.
func (c *Client) Signer() *Signer {
	return c.signer
}

// RateLimit returns the last rate-limit weight reported by the exchange.
func (c *Client) RateLimit() RateLimitState {
	return c.guard.snapshot()
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	if r.auth && !c.HasCredentials() {
		return ErrMissingCredentials
	}

	endpoint := r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("error encoding request body: %w", err)
		}
	}

	if err := c.guard.wait(ctx); err != nil {
		return fmt.Errorf("%w: waiting for rate limit reset: %w", ErrTransport, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit error: %w", ErrTransport, err)
	}

	req := c.http.R().SetContext(ctx)
	if payload != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(payload)
	}
	if r.auth {
		req.SetHeaders(c.signer.Headers(c.now().UnixMilli(), r.method, c.signPrefix+endpoint, payload, c.accessWindow))
	}

	log.Debug().Str("method", r.method).Str("endpoint", endpoint).Msg("Sending request")

	resp, err := req.Execute(r.method, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, r.method, endpoint, err)
	}
	c.guard.observe(resp.Header())

	if err := decodeResponse(resp.StatusCode(), resp.Body(), out); err != nil {
		log.Debug().Err(err).Str("method", r.method).Str("endpoint", endpoint).Int("status", resp.StatusCode()).Msg("Request failed")
		return err
	}
	return nil
}

func decodeResponse(status int, body []byte, out any) error {
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: error unmarshaling JSON: %w", ErrDecode, err)
		}
		return nil
	}

	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr = &APIError{Message: strings.TrimSpace(string(body))}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	apiErr.StatusCode = status
	return apiErr
}

func retryIdempotent(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || r.StatusCode() >= http.StatusInternalServerError
}

func marketPath(market, suffix string) string {
	return "/" + url.PathEscape(market) + suffix
}

func setString(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setInt(q url.Values, key string, value int) {
	if value > 0 {
		q.Set(key, fmt.Sprint(value))
	}
}

func setTime(q url.Values, key string, t time.Time) {
	if !t.IsZero() {
		q.Set(key, fmt.Sprint(t.UnixMilli()))
	}
}

// restyLogger routes resty's internal warnings through zerolog.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	log.Error().Str("component", "resty").Msgf(format, v...)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	log.Warn().Str("component", "resty").Msgf(format, v...)
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	log.Debug().Str("component", "resty").Msgf(format, v...)
}
