// Package pkce implements Proof Key for Code Exchange (RFC 7636) for the
// widget's authorization requests. Only the S256 challenge method is
// supported; the 'plain' method is deprecated in OAuth 2.1 and the
// Archivault authorization server rejects it.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// verifierBytes is the number of random bytes in a code verifier.
	// 32 bytes base64url-encode to 43 characters, the RFC 7636 minimum.
	verifierBytes = 32

	// MinVerifierLength and MaxVerifierLength are the legal code verifier
	// lengths from RFC 7636 section 4.1.
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// MethodS256 is the only code_challenge_method this package produces.
	MethodS256 = "S256"
)

// Pair holds a PKCE code verifier and its derived challenge.
// A Pair is created fresh for every authorization attempt and never reused.
type Pair struct {
	// CodeVerifier is the cryptographically random secret. It is kept in the
	// authorization state and only ever transmitted to the token endpoint.
	CodeVerifier string

	// CodeChallenge is the base64url-encoded SHA-256 of the verifier,
	// sent in the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// NewPair generates a fresh verifier/challenge pair.
func NewPair() (*Pair, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return nil, err
	}
	return &Pair{
		CodeVerifier:        verifier,
		CodeChallenge:       DeriveChallenge(verifier),
		CodeChallengeMethod: MethodS256,
	}, nil
}

// GenerateVerifier produces a code verifier from 32 bytes of cryptographically
// secure randomness, base64url-encoded without padding. The result is always
// 43 characters, inside the 43-128 range required by RFC 7636.
func GenerateVerifier() (string, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DeriveChallenge computes the S256 challenge for a verifier: SHA-256 over the
// ASCII bytes, base64url-encoded without padding. Pure and deterministic, so
// a recorded verifier always re-derives the identical challenge.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyChallenge reports whether challenge is the S256 derivation of
// verifier. Used by tests and by callback validation paths.
func VerifyChallenge(verifier, challenge string) bool {
	return DeriveChallenge(verifier) == challenge
}
