package security

import (
	"strings"
	"testing"
)

func TestAuthorizationStateRoundTrip(t *testing.T) {
	state := NewAuthorizationState("verifier-abc", "client-123", "https://crm.example.com/widget/callback")

	encoded, err := state.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Must be safe to carry in a query parameter.
	if strings.ContainsAny(encoded, "+/= &?") {
		t.Errorf("encoded state contains unsafe characters: %q", encoded)
	}

	decoded, err := DecodeState(encoded)
	if err != nil {
		t.Fatalf("DecodeState() error = %v", err)
	}

	if decoded.CodeVerifier != state.CodeVerifier {
		t.Errorf("CodeVerifier = %q, want %q", decoded.CodeVerifier, state.CodeVerifier)
	}
	if decoded.ClientID != state.ClientID {
		t.Errorf("ClientID = %q, want %q", decoded.ClientID, state.ClientID)
	}
	if decoded.RedirectURI != state.RedirectURI {
		t.Errorf("RedirectURI = %q, want %q", decoded.RedirectURI, state.RedirectURI)
	}
	if decoded.Nonce != state.Nonce {
		t.Errorf("Nonce = %q, want %q", decoded.Nonce, state.Nonce)
	}
}

func TestNewAuthorizationStateUniqueNonces(t *testing.T) {
	a := NewAuthorizationState("v", "c", "https://example.com/cb")
	b := NewAuthorizationState("v", "c", "https://example.com/cb")
	if a.Nonce == b.Nonce {
		t.Error("two attempts produced the same nonce")
	}
}

func TestDecodeStateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		param string
	}{
		{name: "empty", param: ""},
		{name: "not base64url", param: "!!!not-base64!!!"},
		{name: "not json", param: "bm90LWpzb24"},
		{name: "missing nonce", param: mustEncode(t, &AuthorizationState{CodeVerifier: "v"})},
		{name: "missing verifier", param: mustEncode(t, &AuthorizationState{Nonce: "n"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeState(tt.param); err == nil {
				t.Error("DecodeState() accepted malformed input")
			}
		})
	}
}

func mustEncode(t *testing.T, s *AuthorizationState) string {
	t.Helper()
	encoded, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return encoded
}

func TestValidateNonce(t *testing.T) {
	tests := []struct {
		name     string
		recorded string
		received string
		want     bool
	}{
		{name: "match", recorded: "nonce-1", received: "nonce-1", want: true},
		{name: "mismatch", recorded: "nonce-1", received: "nonce-2", want: false},
		{name: "empty recorded", recorded: "", received: "nonce-1", want: false},
		{name: "empty received", recorded: "nonce-1", received: "", want: false},
		{name: "both empty", recorded: "", received: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateNonce(tt.recorded, tt.received); got != tt.want {
				t.Errorf("ValidateNonce() = %v, want %v", got, tt.want)
			}
		})
	}
}
