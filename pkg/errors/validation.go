package errors

import (
	"net/url"
	"slices"
	"strings"
	"unicode"
)

// MaxIDLength bounds node ids accepted from clients.
const MaxIDLength = 256

// MaxPatternLength bounds search patterns accepted from clients.
const MaxPatternLength = 1024

// ValidateNodeID validates a node id received from a client (HTTP or
// websocket). The empty id is allowed and means "clear the selection".
//
// The validation rules are intentionally conservative:
//   - Maximum length of [MaxIDLength] bytes
//   - No control characters or null bytes
func ValidateNodeID(id string) error {
	if len(id) > MaxIDLength {
		return New(ErrCodeInvalidInput, "node id too long (max %d characters)", MaxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "node id contains invalid control characters")
		}
	}
	return nil
}

// ValidatePattern validates a search pattern received from a client. It only
// checks size; patterns that fail to compile are not an input error and simply
// highlight nothing.
func ValidatePattern(pattern string) error {
	if len(pattern) > MaxPatternLength {
		return New(ErrCodeInvalidInput, "search pattern too long (max %d characters)", MaxPatternLength)
	}
	if strings.ContainsRune(pattern, '\x00') {
		return New(ErrCodeInvalidInput, "search pattern contains a null byte")
	}
	return nil
}

// ValidateMaxItems validates a retention cap.
func ValidateMaxItems(n int) error {
	if n < 1 {
		return New(ErrCodeInvalidInput, "max_items must be at least 1, got %d", n)
	}
	return nil
}

// ValidateURL validates a feed endpoint URL against the allowed schemes.
func ValidateURL(rawURL string, schemes ...string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "parse URL %q", rawURL)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL %q has no host", rawURL)
	}
	if len(schemes) > 0 && !slices.Contains(schemes, u.Scheme) {
		return New(ErrCodeInvalidInput, "URL must use one of %s, got %q", strings.Join(schemes, ", "), u.Scheme)
	}
	return nil
}
