// Package credentials resolves the OAuth client configuration for a widget
// instance from an ordered list of sources, merged field-by-field: the
// host-managed shared configuration record, host widget variables, URL query
// parameters (development bootstrap), and local fallback storage (standalone
// mode). Endpoint URLs are never resolved from any source; they derive
// deterministically from the resolved environment.
package credentials

import (
	"errors"
	"fmt"
)

// Environment selects which Archivault deployment the widget talks to.
// Sandbox and production map to disjoint, fixed endpoint sets.
type Environment string

const (
	// EnvironmentSandbox is the default environment.
	EnvironmentSandbox Environment = "sandbox"

	// EnvironmentProduction is the live Archivault deployment.
	EnvironmentProduction Environment = "production"
)

// Valid reports whether the environment is one of the known values.
func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// Endpoints is the fixed endpoint set of one environment.
type Endpoints struct {
	// AuthorizationEndpoint is where the user-facing authorization request
	// navigates.
	AuthorizationEndpoint string

	// TokenEndpoint is the JSON token endpoint for code exchange and refresh.
	TokenEndpoint string

	// Audience identifies the Archivault API the issued tokens are for.
	Audience string

	// APIBaseURL is the base URL of the Archivault REST API.
	APIBaseURL string
}

// endpointSets maps each environment to its endpoint set. These are the only
// endpoint values the widget ever uses; no source can override them.
var endpointSets = map[Environment]Endpoints{
	EnvironmentSandbox: {
		AuthorizationEndpoint: "https://auth.sandbox.archivault.io/oauth/authorize",
		TokenEndpoint:         "https://auth.sandbox.archivault.io/oauth/token",
		Audience:              "https://api.sandbox.archivault.io/",
		APIBaseURL:            "https://api.sandbox.archivault.io",
	},
	EnvironmentProduction: {
		AuthorizationEndpoint: "https://auth.archivault.io/oauth/authorize",
		TokenEndpoint:         "https://auth.archivault.io/oauth/token",
		Audience:              "https://api.archivault.io/",
		APIBaseURL:            "https://api.archivault.io",
	},
}

// EndpointsFor returns the endpoint set of an environment.
func EndpointsFor(env Environment) (Endpoints, error) {
	eps, ok := endpointSets[env]
	if !ok {
		return Endpoints{}, fmt.Errorf("unknown environment %q", env)
	}
	return eps, nil
}

// DefaultScope is requested when no source supplies a scope.
const DefaultScope = "openid offline_access documents:read documents:write tenants:manage"

// ErrConfigurationMissing indicates that clientId or redirectUri could not
// be resolved from any source. Fatal: surfaced to the user, never retried
// silently.
var ErrConfigurationMissing = errors.New("client configuration missing")

// ClientConfiguration is the fully resolved OAuth client configuration for
// one widget instance. Resolved once per page load and immutable thereafter.
// The endpoint fields are always consistent with Environment; they are set
// by the resolver and never independently settable.
type ClientConfiguration struct {
	ClientID     string
	ClientSecret string // optional; omitted from token requests when empty
	Environment  Environment
	RedirectURI  string
	Scope        string

	// Derived from Environment.
	AuthorizationEndpoint string
	TokenEndpoint         string
	Audience              string
	APIBaseURL            string
}

// Partial is an incomplete configuration contributed by one source.
// Empty fields mean "not provided by this source".
type Partial struct {
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Environment  string `json:"environment,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// IsEmpty reports whether the partial carries no fields at all.
func (p *Partial) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.ClientID == "" && p.ClientSecret == "" && p.Environment == "" && p.RedirectURI == "" && p.Scope == ""
}

// merge fills empty fields of p from next, field-by-field. p wins on conflict.
func merge(p, next *Partial) *Partial {
	if p == nil {
		p = &Partial{}
	}
	if next == nil {
		return p
	}
	if p.ClientID == "" {
		p.ClientID = next.ClientID
	}
	if p.ClientSecret == "" {
		p.ClientSecret = next.ClientSecret
	}
	if p.Environment == "" {
		p.Environment = next.Environment
	}
	if p.RedirectURI == "" {
		p.RedirectURI = next.RedirectURI
	}
	if p.Scope == "" {
		p.Scope = next.Scope
	}
	return p
}
