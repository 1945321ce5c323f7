// Package client is a Go client for the ledger REST API served by
// derivctl serve.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

const Version = "0.1.0"

const apiPrefix = "/api/v1"

const defaultTimeout = 30 * time.Second

var defaultUserAgent = "derivatives-go-client/" + Version

// Logger defines the logging interface used by the Client
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client talks to one ledger API endpoint. It is safe for concurrent use.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	attemptTimeout time.Duration
	retry          RetryPolicy
	userAgent      string
	newRequestID   func() string
	logger         Logger

	risks           *RisksClient
	risksOnce       sync.Once
	obligations     *ObligationsClient
	obligationsOnce sync.Once
	derivatives     *DerivativesClient
	derivativesOnce sync.Once
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, e.Message, e.RequestID)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (e *APIError) IsBadRequest() bool {
	return e.StatusCode == http.StatusBadRequest
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// NewClient creates a client for the API at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.NewValidation("base URL is required")
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Validationf("invalid base URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.NewValidation("base URL scheme must be http or https")
	}

	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     &http.Client{},
		attemptTimeout: defaultTimeout,
		retry:          DefaultRetryPolicy,
		userAgent:      defaultUserAgent,
		newRequestID:   func() string { return uuid.New().String() },
		logger:         noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Risks returns the risk catalogue sub-client.
func (c *Client) Risks() *RisksClient {
	c.risksOnce.Do(func() {
		c.risks = &RisksClient{client: c}
	})
	return c.risks
}

// Obligations returns the obligations sub-client.
func (c *Client) Obligations() *ObligationsClient {
	c.obligationsOnce.Do(func() {
		c.obligations = &ObligationsClient{client: c}
	})
	return c.obligations
}

// Derivatives returns the derivatives sub-client.
func (c *Client) Derivatives() *DerivativesClient {
	c.derivativesOnce.Do(func() {
		c.derivatives = &DerivativesClient{client: c}
	})
	return c.derivatives
}

// Ready fetches the readiness report. The error is an *APIError with
// status 503 when a component is down; the report is returned either way.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	var out Readiness
	if err := c.get(ctx, "/readyz", &out); err != nil {
		return &out, err
	}
	return &out, nil
}

// do performs an HTTP request with retry logic. Only network errors and 5xx
// answers are retried.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	fullURL := c.baseURL + path

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "marshal request body")
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debugf("Retry attempt %d after %v", attempt, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		requestID := c.newRequestID()
		status, respBody, err := c.send(ctx, method, fullURL, payload, requestID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var appErr *errors.AppError
			if stderrors.As(err, &appErr) {
				return err
			}
			c.logger.Errorf("Request failed: %v", err)
			lastErr = err
			continue
		}
		c.logger.Debugf("%s %s %d", method, path, status)

		if status >= 400 {
			apiErr := &APIError{StatusCode: status, RequestID: requestID}
			if len(respBody) > 0 {
				var errResp struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				}
				if err := json.Unmarshal(respBody, &errResp); err == nil {
					apiErr.Code = errResp.Code
					apiErr.Message = errResp.Message
				} else {
					apiErr.Message = string(respBody)
				}
			}
			// A failed readiness answer carries the component report.
			if status == http.StatusServiceUnavailable && result != nil {
				_ = json.Unmarshal(respBody, result)
				return apiErr
			}
			lastErr = apiErr
			if apiErr.IsServerError() {
				continue
			}
			return apiErr
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal response")
			}
		}
		return nil
	}
	return lastErr
}

// send performs one attempt under the per-attempt timeout and returns the
// status and the fully read body. Transport failures come back unwrapped so
// the caller can retry them.
func (c *Client) send(ctx context.Context, method, fullURL string, payload []byte, requestID string) (int, []byte, error) {
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.ErrCodeInternal, "create request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retry.MinWait * time.Duration(1<<uint(attempt-1))
	if backoff > c.retry.MaxWait || backoff <= 0 {
		backoff = c.retry.MaxWait
	}
	if backoff < 4 {
		return backoff
	}
	// up to 25% jitter
	return backoff + time.Duration(rand.Int63n(int64(backoff/4)))
}

func idPath(base string, id int64) string {
	return apiPrefix + base + "/" + strconv.FormatInt(id, 10)
}
