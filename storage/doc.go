// Package storage defines the widget's persistence interfaces and the
// dual-storage token policy.
//
// Two key-value backends exist in a browsing context:
//
//   - SessionStore: the host platform's session-scoped variable store,
//     shared across co-located widget instances and destroyed with the host
//     session. Holds the short-lived access token.
//   - LocalStore: durable per-browser storage surviving restarts, private to
//     one browser profile. Holds the long-lived refresh token (encrypted at
//     rest when an encryptor is configured).
//
// TokenStore composes the two: access token + expiry in the session store,
// refresh token in the local store,
// with a documented degraded mode (everything in the local store under a
// distinct key namespace) when the host session store is unavailable.
package storage
