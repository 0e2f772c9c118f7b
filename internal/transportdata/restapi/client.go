// Package restapi provides an HTTP JSON client for the transport-data search API.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/transferroute/internal/provider/resilience"
	"github.com/tripwise/transferroute/internal/transportdata"
)

const (
	// ProviderName identifies this provider in logs and the health registry.
	ProviderName = "transport-api"

	// DefaultTimeout bounds one HTTP attempt.
	DefaultTimeout = 8 * time.Second

	searchPath = "/v1/search"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the transport API client.
type ClientConfig struct {
	// BaseURL is the API base URL (required).
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt timeout (optional, defaults to 8s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client queries the transport search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new transport API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type searchResponse struct {
	Results []transportdata.Candidate `json:"results"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search posts the query and returns the candidates in provider order.
// An empty result list is not an error.
func (c *Client) Search(ctx context.Context, q transportdata.Query) ([]transportdata.Candidate, error) {
	if q.Domain == "" {
		q.Domain = transportdata.DomainTransport
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug().
		Str("mode", string(q.Parameters.Mode)).
		Float64("origin_lat", q.Parameters.Origin.Lat).
		Float64("origin_lng", q.Parameters.Origin.Lng).
		Float64("dest_lat", q.Parameters.Destination.Lat).
		Float64("dest_lng", q.Parameters.Destination.Lng).
		Msg("searching transport candidates")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportdata.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach transport provider",
			Err:      errors.Join(transportdata.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, respBody)
	}

	var out searchResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug().
		Str("mode", string(q.Parameters.Mode)).
		Int("candidates", len(out.Results)).
		Msg("received transport candidates")

	return out.Results, nil
}

// handleErrorResponse maps provider status codes to domain errors.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)
	message := apiErr.Error.Message

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &transportdata.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "transport API rate limit exceeded",
			Err:      transportdata.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusNotFound:
		return &transportdata.Error{
			Provider: ProviderName,
			Code:     "NO_CANDIDATES",
			Message:  "no transport candidates for query",
			Err:      transportdata.ErrNoCandidates,
		}
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		if message == "" {
			message = "transport provider rejected the query"
		}
		return &transportdata.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  message,
			Err:      transportdata.ErrInvalidQuery,
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &transportdata.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "transport API access denied - check API key configuration",
			Err:      transportdata.ErrProviderUnavailable,
		}
	case statusCode >= 500:
		return &transportdata.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "transport provider is temporarily unavailable",
			Err:      transportdata.ErrProviderUnavailable,
		}
	default:
		if message == "" {
			message = fmt.Sprintf("transport provider returned status %d", statusCode)
		}
		return &transportdata.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  message,
			Err:      transportdata.ErrProviderUnavailable,
		}
	}
}
