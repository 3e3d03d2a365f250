package security

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AuthorizationState is the payload the widget serializes into the OAuth
// state parameter. The provider returns the parameter unmodified, so the
// popup context that receives the redirect can recover the PKCE verifier
// without any shared storage with the opener.
//
// The nonce binds a callback to the attempt that issued it: the issuing
// context records the nonce in its session-scoped storage, and a callback is
// only accepted when the decoded nonce matches the most recently recorded
// one. A stale callback from an earlier attempt therefore fails validation
// even though its state decodes cleanly.
type AuthorizationState struct {
	// CodeVerifier is the PKCE secret for this attempt.
	CodeVerifier string `json:"code_verifier"`

	// ClientID is the OAuth client id the attempt was issued for.
	ClientID string `json:"client_id"`

	// RedirectURI is the redirect URI the attempt was issued with. The token
	// exchange must repeat it exactly.
	RedirectURI string `json:"redirect_uri"`

	// Nonce is a single-use random value identifying this attempt.
	Nonce string `json:"nonce"`
}

// NewAuthorizationState creates a state payload with a fresh nonce.
func NewAuthorizationState(codeVerifier, clientID, redirectURI string) *AuthorizationState {
	return &AuthorizationState{
		CodeVerifier: codeVerifier,
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		Nonce:        uuid.NewString(),
	}
}

// Encode serializes the state into the opaque form carried by the state
// query parameter: base64url without padding over compact JSON.
func (s *AuthorizationState) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode authorization state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeState parses a state parameter produced by Encode. A parameter that
// does not decode is treated by callers as a potential CSRF/replay attempt;
// the error deliberately carries no detail about what failed to parse.
func DecodeState(param string) (*AuthorizationState, error) {
	data, err := base64.RawURLEncoding.DecodeString(param)
	if err != nil {
		return nil, fmt.Errorf("malformed state parameter")
	}
	var s AuthorizationState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("malformed state parameter")
	}
	if s.Nonce == "" || s.CodeVerifier == "" {
		return nil, fmt.Errorf("malformed state parameter")
	}
	return &s, nil
}

// ValidateNonce compares a callback nonce against the nonce recorded by the
// issuing context in constant time. Constant-time comparison prevents timing
// probes against the recorded value.
func ValidateNonce(recorded, received string) bool {
	if recorded == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(recorded), []byte(received)) == 1
}
