// Package toolerr defines the error kinds surfaced by tool handlers.
//
// Every failure in a handler's call chain is an *Error (or wraps one) so the
// dispatcher can report it uniformly; callers match kinds with errors.Is
// against the sentinel values, e.g. errors.Is(err, toolerr.ErrNotFound).
package toolerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindValidation
	KindPermission
	KindNotFound
	KindRateLimit
	KindUpstream
	KindDownload
	KindUnknownTool
	KindTimeout
)

var kindNames = map[Kind]string{
	KindInternal:      "InternalError",
	KindConfiguration: "ConfigurationError",
	KindValidation:    "ValidationError",
	KindPermission:    "PermissionError",
	KindNotFound:      "NotFoundError",
	KindRateLimit:     "RateLimitError",
	KindUpstream:      "UpstreamError",
	KindDownload:      "DownloadError",
	KindUnknownTool:   "UnknownToolError",
	KindTimeout:       "TimeoutError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. Status and Body are set for upstream HTTP failures.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrPermission    = &Error{Kind: KindPermission}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrRateLimit     = &Error{Kind: KindRateLimit}
	ErrUpstream      = &Error{Kind: KindUpstream}
	ErrDownload      = &Error{Kind: KindDownload}
	ErrUnknownTool   = &Error{Kind: KindUnknownTool}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrInternal      = &Error{Kind: KindInternal}
)

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Download(format string, args ...any) *Error {
	return New(KindDownload, format, args...)
}

// Upstream reports a non-success status, folding status and body into the message.
func Upstream(service string, status int, body string) *Error {
	return &Error{
		Kind:    KindUpstream,
		Message: fmt.Sprintf("%s API error (%d): %s", service, status, body),
		Status:  status,
		Body:    body,
	}
}

func UnknownTool(name string) *Error {
	return &Error{Kind: KindUnknownTool, Message: "Unknown tool: " + name}
}
