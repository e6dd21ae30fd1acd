package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed download
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation_error"
	KindProvisioning ErrorKind = "provisioning_error"
	KindLaunch       ErrorKind = "launch_error"
	KindTimeout      ErrorKind = "timeout_error"
	KindExternalTool ErrorKind = "external_tool_error"
	KindIO           ErrorKind = "io_error"
	KindUnknown      ErrorKind = "unknown_error"
)

// LaunchHint is attached to launch failures
const LaunchHint = "verify the executable matches the target architecture and has execute permission"

// DownloadError is the only error type returned across the orchestrator boundary.
// Detail carries diagnostic text, for ExternalToolError the combined tool output verbatim.
// ExitCode is set for ExternalToolError and TimeoutError (-1).
type DownloadError struct {
	Kind     ErrorKind
	Message  string
	Detail   string
	ExitCode int
	Err      error
}

// NewDownloadError creates a classified error
func NewDownloadError(kind ErrorKind, message string, err error) *DownloadError {
	return &DownloadError{Kind: kind, Message: message, Err: err}
}

// WithDetail returns e with Detail set
func (e *DownloadError) WithDetail(detail string) *DownloadError {
	e.Detail = detail
	return e
}

func (e *DownloadError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Kind == KindLaunch {
		msg = fmt.Sprintf("%s (%s)", msg, LaunchHint)
	}
	return msg
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// WithExitCode returns e with ExitCode set
func (e *DownloadError) WithExitCode(code int) *DownloadError {
	e.ExitCode = code
	return e
}

// KindOf returns the kind of a classified error, KindUnknown otherwise
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a DownloadError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailOf returns the diagnostic detail of a classified error
func DetailOf(err error) string {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Detail
	}
	return ""
}
