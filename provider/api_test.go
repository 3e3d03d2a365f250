package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticTokenSource struct {
	token string
	err   error
}

func (s *staticTokenSource) AccessToken(_ context.Context) (string, error) {
	return s.token, s.err
}

func TestAPIClientAttachesBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "doc-1"})
	}))
	defer srv.Close()

	c, err := NewAPIClient(APIConfig{
		BaseURL: srv.URL,
		Tokens:  &staticTokenSource{token: "access-1"},
	})
	if err != nil {
		t.Fatalf("NewAPIClient() error = %v", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.Get(context.Background(), "/v1/documents/doc-1", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotAuth != "Bearer access-1" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if out.ID != "doc-1" {
		t.Errorf("decoded id = %q", out.ID)
	}
}

func TestAPIClientNotConnected(t *testing.T) {
	c, err := NewAPIClient(APIConfig{
		BaseURL: "https://api.example.invalid",
		Tokens:  &staticTokenSource{token: ""},
	})
	if err != nil {
		t.Fatalf("NewAPIClient() error = %v", err)
	}
	if err := c.Get(context.Background(), "/v1/plans", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Get() error = %v, want ErrNotConnected", err)
	}
}

func TestAPIClientErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "insufficient_scope",
			"message": "tenants:manage required",
		})
	}))
	defer srv.Close()

	c, _ := NewAPIClient(APIConfig{
		BaseURL: srv.URL,
		Tokens:  &staticTokenSource{token: "access-1"},
	})

	err := c.Post(context.Background(), "/v1/tenants", map[string]string{"name": "acme"}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Post() error = %T, want *APIError", err)
	}
	if apiErr.HTTPStatus != http.StatusForbidden || apiErr.Code != "insufficient_scope" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestAPIClientTokenSourceFailure(t *testing.T) {
	c, _ := NewAPIClient(APIConfig{
		BaseURL: "https://api.example.invalid",
		Tokens:  &staticTokenSource{err: errors.New("session terminated")},
	})
	if err := c.Get(context.Background(), "/v1/plans", nil); err == nil {
		t.Error("Get() ignored token source failure")
	}
}
