package boundary

import "strings"

// DecodeText converts an optional host string into engine text. A nil
// pointer becomes "". The text ends at the first NUL, which is where the
// engine's C string would end anyway.
//
// The result is used for the duration of one call and never stored.
func DecodeText(s *string) string {
	if s == nil {
		return ""
	}
	if i := strings.IndexByte(*s, 0); i >= 0 {
		return (*s)[:i]
	}
	return *s
}

// Text returns a pointer to s, for callers building DecodeText inputs.
func Text(s string) *string {
	return &s
}
