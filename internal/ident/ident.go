// Package ident validates upstream player identifiers.
package ident

// IDLength is the exact length of an upstream player or replay id.
const IDLength = 24

// IsValidID reports whether s is a well-formed upstream identifier: exactly
// 24 case-insensitive hex digits. Anything else is treated as a username
// that needs remote resolution.
func IsValidID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
