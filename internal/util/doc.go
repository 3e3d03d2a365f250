// Package util provides common utility functions used across the connect
// widget library.
//
// Key utilities:
//   - SafeTruncate: safely truncates strings when logging sensitive data
//   - NormalizeOrigin: normalizes origins/URLs for exact-match comparison
package util
