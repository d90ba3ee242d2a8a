package base

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/netdocs/ragserver/internal/config"
)

// Provider call budgets from the concurrency & resource model: embedding
// calls get a long fixed timeout since batches can carry real payloads;
// chat and rerank are "short calls" with a smaller timeout. Every client,
// embedding included, retries up to MaxRetries times after the first
// attempt; the per-attempt timeout stays fixed across retries.
const (
	EmbeddingTimeout   = 60 * time.Second
	ShortCallTimeout   = 10 * time.Second
	ShortCallRetryStep = 10 * time.Second
	MaxRetries         = 3
)

// ClientError wraps a provider HTTP failure with enough context to decide
// whether it's worth surfacing to the caller as a validation error or a
// provider error.
type ClientError struct {
	Op         string
	Service    string
	StatusCode int
	Err        error
}

func (e *ClientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s failed with status %d: %v", e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

func NewClientError(service, op string, err error) *ClientError {
	return &ClientError{Op: op, Service: service, Err: err}
}

func NewHTTPError(service, op string, statusCode int, body string) *ClientError {
	return &ClientError{
		Op:         op,
		Service:    service,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, body),
	}
}

// HTTPClient is the shared resty wrapper every provider client builds on:
// bearer auth, a per-service timeout, and a bounded retry on 5xx/network
// failures (spec.md §5 cancellation and timeouts).
type HTTPClient struct {
	client  *resty.Client
	service string
}

// NewHTTPClient configures a resty client against cfg.BaseURL with the
// given timeout. It makes at most MaxRetries retries (MaxRetries+1
// attempts); the wait between attempts follows resty's backoff, starting
// at ShortCallRetryStep and capped at MaxRetries*ShortCallRetryStep.
func NewHTTPClient(service string, cfg config.ServiceConfig, timeout time.Duration) *HTTPClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(MaxRetries).
		SetRetryWaitTime(ShortCallRetryStep).
		SetRetryMaxWaitTime(ShortCallRetryStep * MaxRetries)

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &HTTPClient{client: client, service: service}
}

// Post performs a POST request with standardized error handling.
func (h *HTTPClient) Post(endpoint string, body, result interface{}) error {
	resp, err := h.client.R().
		SetBody(body).
		SetResult(result).
		Post(endpoint)
	if err != nil {
		return NewClientError(h.service, "POST "+endpoint, err)
	}
	if resp.StatusCode() != 200 {
		return NewHTTPError(h.service, "POST "+endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}

// Get performs a GET request with standardized error handling.
func (h *HTTPClient) Get(endpoint string, params map[string]string, result interface{}) error {
	req := h.client.R().SetResult(result)
	for k, v := range params {
		req.SetQueryParam(k, v)
	}
	resp, err := req.Get(endpoint)
	if err != nil {
		return NewClientError(h.service, "GET "+endpoint, err)
	}
	if resp.StatusCode() != 200 {
		return NewHTTPError(h.service, "GET "+endpoint, resp.StatusCode(), resp.String())
	}
	return nil
}
