package client

import (
	"net/http"
	"time"
)

// RetryPolicy controls how often a request that failed on the network or
// with a 5xx answer is sent again. Waits double from MinWait and are capped
// at MaxWait.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy is used when no WithRetryPolicy option is given.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, MinWait: 500 * time.Millisecond, MaxWait: 5 * time.Second}

// NoRetry sends every request exactly once.
var NoRetry = RetryPolicy{}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.MinWait < 0 {
		p.MinWait = 0
	}
	if p.MaxWait < p.MinWait {
		p.MaxWait = p.MinWait
	}
	return p
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sends requests through hc. A Timeout set on hc applies on
// top of WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each attempt, not the whole retry sequence; use the
// call's context for that. Zero removes the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.attemptTimeout = d
		}
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p.normalized() }
}

func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent puts product, e.g. "risk-dashboard/2.1", in front of the
// client's own User-Agent token.
func WithUserAgent(product string) Option {
	return func(c *Client) {
		if product != "" {
			c.userAgent = product + " " + defaultUserAgent
		}
	}
}

// WithRequestIDs makes gen produce the X-Request-ID of every attempt, so
// callers can reuse their own trace ids. The id is echoed in APIError.
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.newRequestID = gen
		}
	}
}
