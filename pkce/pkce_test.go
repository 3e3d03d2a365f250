package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateVerifier(t *testing.T) {
	verifier, err := GenerateVerifier()
	if err != nil {
		t.Fatalf("GenerateVerifier() error = %v", err)
	}

	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		t.Errorf("verifier length = %d, want between %d and %d", len(verifier), MinVerifierLength, MaxVerifierLength)
	}

	// Must be URL-safe: no padding, no '+' or '/'
	if strings.ContainsAny(verifier, "+/=") {
		t.Errorf("verifier contains non-URL-safe characters: %q", verifier)
	}

	if _, err := base64.RawURLEncoding.DecodeString(verifier); err != nil {
		t.Errorf("verifier is not valid base64url: %v", err)
	}
}

func TestGenerateVerifierUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		v, err := GenerateVerifier()
		if err != nil {
			t.Fatalf("GenerateVerifier() error = %v", err)
		}
		if seen[v] {
			t.Fatalf("duplicate verifier generated: %q", v)
		}
		seen[v] = true
	}
}

func TestDeriveChallengeDeterministic(t *testing.T) {
	verifier, err := GenerateVerifier()
	if err != nil {
		t.Fatalf("GenerateVerifier() error = %v", err)
	}

	first := DeriveChallenge(verifier)
	for i := 0; i < 10; i++ {
		if got := DeriveChallenge(verifier); got != first {
			t.Fatalf("DeriveChallenge not deterministic: %q != %q", got, first)
		}
	}
}

func TestDeriveChallengeS256Relationship(t *testing.T) {
	tests := []struct {
		name     string
		verifier string
	}{
		{name: "rfc 7636 appendix b", verifier: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"},
		{name: "short ascii", verifier: "abcdefghijklmnopqrstuvwxyz0123456789ABCDEFG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := sha256.Sum256([]byte(tt.verifier))
			want := base64.RawURLEncoding.EncodeToString(sum[:])
			if got := DeriveChallenge(tt.verifier); got != want {
				t.Errorf("DeriveChallenge() = %q, want %q", got, want)
			}
			if !VerifyChallenge(tt.verifier, want) {
				t.Errorf("VerifyChallenge() = false, want true")
			}
		})
	}
}

func TestDeriveChallengeRFC7636Vector(t *testing.T) {
	// Test vector from RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	if got := DeriveChallenge(verifier); got != want {
		t.Errorf("DeriveChallenge() = %q, want %q", got, want)
	}
}

func TestNewPair(t *testing.T) {
	pair, err := NewPair()
	if err != nil {
		t.Fatalf("NewPair() error = %v", err)
	}
	if pair.CodeChallengeMethod != MethodS256 {
		t.Errorf("CodeChallengeMethod = %q, want %q", pair.CodeChallengeMethod, MethodS256)
	}
	if !VerifyChallenge(pair.CodeVerifier, pair.CodeChallenge) {
		t.Error("challenge does not verify against verifier")
	}
}

func TestVerifyChallengeMismatch(t *testing.T) {
	if VerifyChallenge("verifier-a-verifier-a-verifier-a-verifier-a", "bogus-challenge") {
		t.Error("VerifyChallenge accepted a wrong challenge")
	}
}
