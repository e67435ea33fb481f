package core

import (
	"errors"
	"fmt"
)

// Validation and lifecycle errors
var (
	ErrJobNotFound    = errors.New("preflight: job not found")
	ErrJobTerminal    = errors.New("preflight: job is in a terminal state")
	ErrJobNotQueued   = errors.New("preflight: job is no longer queued")
	ErrInvalidJobID   = errors.New("preflight: invalid job id")
	ErrUploadTooLarge = errors.New("preflight: upload exceeds size limit")
	ErrMissingTTL     = errors.New("preflight: job requires an expiry time")
)

// ToolError wraps a failed external tool invocation. The pipeline converts
// these to issues at the call site; they escape only from the probe layer.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewToolError builds a ToolError, truncating stderr for storage.
func NewToolError(tool string, stderr string, err error) *ToolError {
	const maxStderr = 2048
	if len(stderr) > maxStderr {
		stderr = stderr[:maxStderr] + "...(truncated)"
	}
	return &ToolError{Tool: tool, Stderr: stderr, Err: err}
}
