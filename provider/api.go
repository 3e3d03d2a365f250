package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/archivault/connect-widget/instrumentation"
)

// ErrNotConnected is returned by API calls when no usable access token is
// available.
var ErrNotConnected = errors.New("not connected")

// APIError is a non-2xx response from the Archivault REST API.
type APIError struct {
	HTTPStatus int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("archivault api returned HTTP %d", e.HTTPStatus)
	}
	return fmt.Sprintf("archivault api returned HTTP %d: %s: %s", e.HTTPStatus, e.Code, e.Message)
}

// AccessTokenSource supplies a current access token for outgoing API calls.
// The widget controller implements this with its proactive-refresh path, so
// every API call rides on a token that is valid past the skew buffer.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// APIConfig configures an APIClient.
type APIConfig struct {
	// BaseURL of the Archivault REST API, derived from the environment.
	// Required.
	BaseURL string

	// Tokens supplies the bearer token per call. Required.
	Tokens AccessTokenSource

	// HTTPClient for API calls. Defaults to a 30 second timeout client.
	HTTPClient *http.Client

	// Logger for request diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Instrumentation for metrics. Optional.
	Instrumentation *instrumentation.Instrumentation
}

// APIClient is the authenticated Archivault REST API client.
type APIClient struct {
	baseURL    string
	tokens     AccessTokenSource
	httpClient *http.Client
	logger     *slog.Logger
	instr      *instrumentation.Instrumentation
}

// NewAPIClient creates an APIClient.
func NewAPIClient(cfg APIConfig) (*APIClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("access token source is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &APIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     cfg.Tokens,
		httpClient: httpClient,
		logger:     logger,
		instr:      cfg.Instrumentation,
	}, nil
}

// Get performs an authenticated GET and decodes the JSON response into out.
func (c *APIClient) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs an authenticated POST with a JSON body, decoding the
// response into out when out is non-nil.
func (c *APIClient) Post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// Put performs an authenticated PUT with a JSON body.
func (c *APIClient) Put(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPut, path, in, out)
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}
	if token == "" {
		return ErrNotConnected
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	op := method + " " + path
	if err != nil {
		c.instr.Metrics().RecordProviderAPICall(ctx, op, 0, float64(elapsed.Milliseconds()), err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.instr.Metrics().RecordProviderAPICall(ctx, op, resp.StatusCode, float64(elapsed.Milliseconds()), err)
		return &NetworkError{Op: op, Err: err}
	}
	c.instr.Metrics().RecordProviderAPICall(ctx, op, resp.StatusCode, float64(elapsed.Milliseconds()), nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		c.logger.Warn("api call failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("malformed api response: %w", err)
		}
	}
	return nil
}
