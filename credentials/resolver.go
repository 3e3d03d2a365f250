package credentials

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archivault/connect-widget/storage"
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Sources are consulted in order; earlier sources win on a per-field
	// basis. A typical embedded widget passes shared config, widget vars,
	// URL params, then local fallback.
	Sources []Source

	// FallbackStore receives URL-resolved configuration so a redirect round
	// trip that drops the query string still resolves identically. Optional.
	FallbackStore storage.LocalStore

	// Logger for resolution diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Resolver merges partial configurations from an ordered source list into a
// complete ClientConfiguration.
type Resolver struct {
	sources       []Source
	fallbackStore storage.LocalStore
	logger        *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		sources:       cfg.Sources,
		fallbackStore: cfg.FallbackStore,
		logger:        logger,
	}
}

// DefaultSources builds the standard source chain for an embedded widget:
// shared configuration, widget variables, URL parameters, local fallback.
func DefaultSources(shared *SharedConfig, vars *WidgetVarsSource, urlParams *URLParamsSource, fallback *LocalFallbackSource) []Source {
	sources := make([]Source, 0, 4)
	if shared != nil {
		sources = append(sources, shared)
	}
	if vars != nil {
		sources = append(sources, vars)
	}
	if urlParams != nil {
		sources = append(sources, urlParams)
	}
	if fallback != nil {
		sources = append(sources, fallback)
	}
	return sources
}

// Resolve walks the source chain, merges contributions field-by-field, and
// returns the complete configuration. ErrConfigurationMissing is returned
// when no source supplies a client id or redirect URI; that error is fatal
// and must be surfaced to the user rather than retried.
func (r *Resolver) Resolve(ctx context.Context) (*ClientConfiguration, error) {
	merged := &Partial{}
	var urlContribution *Partial

	for _, src := range r.sources {
		p, err := src.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("source %s failed: %w", src.Name(), err)
		}
		if p.IsEmpty() {
			continue
		}
		r.logger.Debug("configuration source contributed",
			"source", src.Name(),
			"has_client_id", p.ClientID != "")
		if _, ok := src.(*URLParamsSource); ok {
			urlContribution = p
		}
		merged = merge(merged, p)
	}

	if merged.ClientID == "" || merged.RedirectURI == "" {
		r.logger.Warn("configuration incomplete after consulting all sources",
			"sources", len(r.sources),
			"has_client_id", merged.ClientID != "",
			"has_redirect_uri", merged.RedirectURI != "")
		return nil, fmt.Errorf("%w: client_id and redirect_uri are required", ErrConfigurationMissing)
	}

	env := Environment(merged.Environment)
	if merged.Environment == "" {
		env = EnvironmentSandbox
	}
	if !env.Valid() {
		return nil, fmt.Errorf("%w: unknown environment %q", ErrConfigurationMissing, merged.Environment)
	}

	eps, err := EndpointsFor(env)
	if err != nil {
		return nil, err
	}

	scope := merged.Scope
	if scope == "" {
		scope = DefaultScope
	}

	// URL-sourced fields survive redirect round trips via local fallback.
	if urlContribution != nil && r.fallbackStore != nil {
		if err := persistLocalFallback(ctx, r.fallbackStore, merged); err != nil {
			r.logger.Warn("failed to persist configuration to local fallback", "error", err)
		}
	}

	return &ClientConfiguration{
		ClientID:              merged.ClientID,
		ClientSecret:          merged.ClientSecret,
		Environment:           env,
		RedirectURI:           merged.RedirectURI,
		Scope:                 scope,
		AuthorizationEndpoint: eps.AuthorizationEndpoint,
		TokenEndpoint:         eps.TokenEndpoint,
		Audience:              eps.Audience,
		APIBaseURL:            eps.APIBaseURL,
	}, nil
}
