// Package provider is the Archivault-facing client surface: the OAuth token
// endpoint client (code exchange and refresh) and the authenticated REST API
// client. The token endpoint speaks JSON request bodies, not form encoding.
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
	"time"

	"golang.org/x/oauth2"

	"github.com/archivault/connect-widget/credentials"
	"github.com/archivault/connect-widget/instrumentation"
	"github.com/archivault/connect-widget/internal/util"
	"github.com/archivault/connect-widget/security"
)

const (
	// DefaultTimeout bounds a single token endpoint call.
	DefaultTimeout = 20 * time.Second

	// maxResponseBytes bounds how much of a token endpoint response is read.
	maxResponseBytes = 1 << 20
)

// TokenEndpointError is a structured error response from the token endpoint.
type TokenEndpointError struct {
	HTTPStatus  int    // HTTP status of the response
	Code        string // provider error code, e.g. "invalid_grant"
	Description string // provider error description
}

// Error implements the error interface.
func (e *TokenEndpointError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("token endpoint returned HTTP %d", e.HTTPStatus)
	}
	return fmt.Sprintf("token endpoint returned HTTP %d: %s: %s", e.HTTPStatus, e.Code, e.Description)
}

// NetworkError indicates the token endpoint could not be reached at all, as
// opposed to reached-and-rejected.
type NetworkError struct {
	Op  string // "exchange_code" or "refresh"
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *NetworkError) Unwrap() error { return e.Err }

// Config configures an OAuth Client.
type Config struct {
	// ClientConfiguration is the resolved widget configuration. Required.
	ClientConfiguration *credentials.ClientConfiguration

	// HTTPClient for token endpoint calls. Defaults to a client with
	// DefaultTimeout.
	HTTPClient *http.Client

	// Timeout per token endpoint call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger for request diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Instrumentation for metrics and tracing. Optional.
	Instrumentation *instrumentation.Instrumentation

	// Now is the time source, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Client talks to the Archivault authorization server.
type Client struct {
	cfg        *credentials.ClientConfiguration
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	instr      *instrumentation.Instrumentation
	now        func() time.Time
}

// NewClient creates an OAuth client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientConfiguration == nil {
		return nil, errors.New("client configuration is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		cfg:        cfg.ClientConfiguration,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
		instr:      cfg.Instrumentation,
		now:        now,
	}, nil
}

// AuthorizationURL builds the user-facing authorization request URL for one
// attempt. The state parameter carries the encoded authorization state; the
// PKCE challenge is always S256.
func (c *Client) AuthorizationURL(state *security.AuthorizationState, challenge string) (string, error) {
	encoded, err := state.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode authorization state: %w", err)
	}

	oc := oauth2.Config{
		ClientID:    c.cfg.ClientID,
		RedirectURL: c.cfg.RedirectURI,
		Scopes:      []string{c.cfg.Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL: c.cfg.AuthorizationEndpoint,
		},
	}
	return oc.AuthCodeURL(encoded,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("audience", c.cfg.Audience),
	), nil
}

// tokenRequest is the JSON body posted to the token endpoint.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Code         string `json:"code,omitempty"`
	CodeVerifier string `json:"code_verifier,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Audience     string `json:"audience,omitempty"`
}

// tokenResponse is the token endpoint's success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// errorResponse is the token endpoint's failure body.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode redeems an authorization code with its PKCE verifier.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	if verifier == "" {
		return nil, errors.New("code verifier is required")
	}
	return c.postToken(ctx, "exchange_code", &tokenRequest{
		GrantType:    "authorization_code",
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Code:         code,
		CodeVerifier: verifier,
		RedirectURI:  c.cfg.RedirectURI,
		Audience:     c.cfg.Audience,
	})
}

// Refresh redeems a refresh token for a fresh token set. The provider may
// rotate the refresh token; callers must check RefreshToken on the result.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}
	return c.postToken(ctx, "refresh", &tokenRequest{
		GrantType:    "refresh_token",
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RefreshToken: refreshToken,
		Audience:     c.cfg.Audience,
	})
}

func (c *Client) postToken(ctx context.Context, op string, req *tokenRequest) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := c.now().Sub(start)
	if err != nil {
		c.logger.Warn("token endpoint unreachable", "operation", op, "error", err)
		c.instr.Metrics().RecordProviderAPICall(ctx, op, 0, float64(elapsed.Milliseconds()), err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.instr.Metrics().RecordProviderAPICall(ctx, op, resp.StatusCode, float64(elapsed.Milliseconds()), err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	c.instr.Metrics().RecordProviderAPICall(ctx, op, resp.StatusCode, float64(elapsed.Milliseconds()), nil)

	if resp.StatusCode != http.StatusOK {
		var eresp errorResponse
		_ = json.Unmarshal(data, &eresp)
		c.logger.Warn("token endpoint rejected request",
			"operation", op,
			"status", resp.StatusCode,
			"provider_error", eresp.Error)
		return nil, &TokenEndpointError{
			HTTPStatus:  resp.StatusCode,
			Code:        eresp.Error,
			Description: eresp.ErrorDescription,
		}
	}

	var tresp tokenResponse
	if err := json.Unmarshal(data, &tresp); err != nil {
		return nil, fmt.Errorf("malformed token response: %w", err)
	}
	if tresp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	token := &oauth2.Token{
		AccessToken:  tresp.AccessToken,
		TokenType:    tresp.TokenType,
		RefreshToken: tresp.RefreshToken,
	}
	if tresp.ExpiresIn > 0 {
		token.Expiry = c.now().Add(time.Duration(tresp.ExpiresIn) * time.Second)
	}

	c.logger.Debug("token endpoint call succeeded",
		"operation", op,
		"token_prefix", util.SafeTruncate(token.AccessToken, 8),
		"rotated_refresh", tresp.RefreshToken != "")
	return token, nil
}
