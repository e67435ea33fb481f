// Package security provides validation, sanitization, and limits for the
// preflight pipeline.
package security

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/printforge/preflight/pkg/core"
)

const (
	// MaxErrorMessageLength is the maximum length for stored error messages.
	MaxErrorMessageLength = 4096

	// MaxConcurrency is the hard limit for poller concurrency.
	MaxConcurrency = 64

	// DefaultMaxUploadBytes caps uploads when no limit is configured (100MB).
	DefaultMaxUploadBytes = 100 << 20
)

// ValidateJobID rejects anything that is not a UUID. Job IDs are used as
// path components under the temp root, so this doubles as the traversal
// guard for every derived path.
func ValidateJobID(id string) error {
	if id == "" {
		return core.ErrInvalidJobID
	}
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrInvalidJobID
	}
	return nil
}

// CheckUploadSize validates an upload against the configured limit.
// A non-positive limit falls back to DefaultMaxUploadBytes.
func CheckUploadSize(sizeBytes, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if sizeBytes > maxBytes {
		return core.ErrUploadTooLarge
	}
	return nil
}

// ClampConcurrency ensures poller concurrency is within [1, MaxConcurrency].
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// SanitizeErrorMessage truncates and strips control characters from error
// messages before they are written to the job row.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))
	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()
	if len(result) > MaxErrorMessageLength {
		cut := MaxErrorMessageLength
		for cut > 0 && !utf8.RuneStart(result[cut]) {
			cut--
		}
		result = result[:cut] + "...(truncated)"
	}
	return result
}
