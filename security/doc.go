// Package security provides the security primitives of the connect widget:
// authorization-state (CSRF) encoding and validation, refresh-token
// encryption at rest, token expiry skew handling, token-endpoint rate
// limiting, and audit logging with PII protection.
//
// # Authorization state
//
// The widget carries its PKCE code verifier inside the OAuth state parameter
// because the popup that completes the code exchange is a separate browsing
// context with no access to the opener's in-memory state. EncodeState and
// DecodeState implement that opaque encoding; ValidateState additionally
// pins the state's nonce against the nonce recorded by the issuing context,
// using a constant-time comparison.
//
// # Refresh token encryption
//
// The refresh token lives in durable local storage, which other scripts on
// the origin can read. The Encryptor seals it with AES-256-GCM; the key is
// either supplied directly or derived from an installation secret with HKDF.
//
// # Token endpoint guarding
//
// The Guard is a token-bucket limiter keyed by client id. Silent refresh must
// never loop (a refresh failure terminates the session), and the guard is a
// second line of defense: even a misbehaving embedder cannot hammer the
// provider's token endpoint.
package security
