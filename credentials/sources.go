package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/archivault/connect-widget/storage"
)

// Parameter and variable names shared by the URL and widget-variable sources.
const (
	paramClientID     = "client_id"
	paramClientSecret = "client_secret"
	paramEnvironment  = "environment"
	paramRedirectURI  = "redirect_uri"
	paramScope        = "scope"
)

// localFallbackKey is where the resolver persists URL-resolved configuration
// so a popup/redirect round trip that drops the query string still resolves
// the same configuration.
const localFallbackKey = "archivault.connect.client_config"

// Source contributes a partial configuration. Sources are consulted in
// priority order and merged field-by-field; a source returning nil simply
// contributes nothing.
type Source interface {
	// Name identifies the source in logs ("shared_config", "url_params", ...).
	Name() string

	// Resolve returns this source's contribution, or nil.
	Resolve(ctx context.Context) (*Partial, error)
}

// ---- Widget variables ----

// WidgetVarsSource reads host-platform widget variables. The host hands the
// widget a flat string map at construction time.
type WidgetVarsSource struct {
	Vars map[string]string
}

// Name identifies the source.
func (s *WidgetVarsSource) Name() string { return "widget_vars" }

// Resolve returns the variables' contribution.
func (s *WidgetVarsSource) Resolve(_ context.Context) (*Partial, error) {
	if len(s.Vars) == 0 {
		return nil, nil
	}
	return &Partial{
		ClientID:     s.Vars[paramClientID],
		ClientSecret: s.Vars[paramClientSecret],
		Environment:  s.Vars[paramEnvironment],
		RedirectURI:  s.Vars[paramRedirectURI],
		Scope:        s.Vars[paramScope],
	}, nil
}

// ---- URL query parameters ----

// URLParamsSource reads configuration from the page URL's query parameters.
// Development/bootstrap only; a successful resolution that used any of these
// fields is persisted to local fallback storage by the resolver.
type URLParamsSource struct {
	Query url.Values
}

// Name identifies the source.
func (s *URLParamsSource) Name() string { return "url_params" }

// Resolve returns the query string's contribution.
func (s *URLParamsSource) Resolve(_ context.Context) (*Partial, error) {
	if len(s.Query) == 0 {
		return nil, nil
	}
	return &Partial{
		ClientID:     s.Query.Get(paramClientID),
		ClientSecret: s.Query.Get(paramClientSecret),
		Environment:  s.Query.Get(paramEnvironment),
		RedirectURI:  s.Query.Get(paramRedirectURI),
		Scope:        s.Query.Get(paramScope),
	}, nil
}

// ---- Local fallback storage ----

// LocalFallbackSource reads the configuration persisted by an earlier
// URL-parameter resolution. Standalone/offline development mode only.
type LocalFallbackSource struct {
	Store storage.LocalStore
}

// Name identifies the source.
func (s *LocalFallbackSource) Name() string { return "local_fallback" }

// Resolve returns the persisted contribution.
func (s *LocalFallbackSource) Resolve(ctx context.Context) (*Partial, error) {
	if s.Store == nil {
		return nil, nil
	}
	raw, err := s.Store.Get(ctx, localFallbackKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read local fallback config: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var p Partial
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// Corrupted fallback data contributes nothing rather than failing
		// resolution; another source may still complete the configuration.
		return nil, nil
	}
	return &p, nil
}

// persistLocalFallback writes a partial to local fallback storage.
func persistLocalFallback(ctx context.Context, store storage.LocalStore, p *Partial) error {
	if store == nil || p.IsEmpty() {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode fallback config: %w", err)
	}
	if err := store.Set(ctx, localFallbackKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist fallback config: %w", err)
	}
	return nil
}
