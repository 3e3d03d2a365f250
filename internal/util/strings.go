package util

import "strings"

// SafeTruncate safely truncates a string to maxLen bytes without panicking.
// Used when logging sensitive data like tokens, where only a prefix should
// be shown. A negative maxLen is treated as 0.
//
// Example:
//
//	SafeTruncate("very-long-token-abc123", 8) // Returns: "very-lon"
//	SafeTruncate("short", 10)                 // Returns: "short"
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeOrigin normalizes an origin or URL for exact-match comparison by
// lowercasing the scheme/host form and stripping trailing slashes. Message
// origin checks must compare exact origins, never prefixes, so both sides
// are normalized before the comparison.
//
// Example:
//
//	NormalizeOrigin("https://CRM.example.com/") // Returns: "https://crm.example.com"
func NormalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
