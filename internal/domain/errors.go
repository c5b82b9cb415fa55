package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLinkNotFound is returned when a link does not exist
	ErrLinkNotFound = errors.New("link not found")

	// ErrSocialLink is returned when a social link is sent through the preview pipeline
	ErrSocialLink = errors.New("social links are excluded from previews")
)

// ErrorKind classifies preview failures
type ErrorKind string

const (
	ErrorKindNetwork      ErrorKind = "NETWORK_ERROR"
	ErrorKindRateLimited  ErrorKind = "RATE_LIMITED"
	ErrorKindNotFound     ErrorKind = "NOT_FOUND"
	ErrorKindPrivateRepo  ErrorKind = "PRIVATE_REPO"
	ErrorKindAccessDenied ErrorKind = "ACCESS_DENIED"
	ErrorKindInvalidURL   ErrorKind = "INVALID_URL"
	ErrorKindParse        ErrorKind = "PARSE_ERROR"
)

// Retryable reports whether failures of this kind may succeed on a later attempt
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindNotFound, ErrorKindInvalidURL:
		return false
	default:
		return true
	}
}

// PreviewError is the typed failure of a preview fetch
type PreviewError struct {
	Kind      ErrorKind  `json:"kind"`
	Message   string     `json:"message"`
	Retryable bool       `json:"retryable"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	Err       error      `json:"-"`
}

func (e *PreviewError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PreviewError) Unwrap() error {
	return e.Err
}

// NewPreviewError creates a preview error whose retryable flag follows its kind
func NewPreviewError(kind ErrorKind, message string, err error) *PreviewError {
	return &PreviewError{
		Kind:      kind,
		Message:   message,
		Retryable: kind.Retryable(),
		Err:       err,
	}
}

func NewNetworkError(message string, err error) *PreviewError {
	return NewPreviewError(ErrorKindNetwork, message, err)
}

// NewRateLimitedError creates a RATE_LIMITED error carrying the budget reset time
func NewRateLimitedError(message string, resetAt time.Time) *PreviewError {
	e := NewPreviewError(ErrorKindRateLimited, message, nil)
	if !resetAt.IsZero() {
		e.ResetAt = &resetAt
	}
	return e
}

func NewNotFoundError(message string) *PreviewError {
	return NewPreviewError(ErrorKindNotFound, message, nil)
}

func NewPrivateRepoError(message string) *PreviewError {
	return NewPreviewError(ErrorKindPrivateRepo, message, nil)
}

func NewAccessDeniedError(message string) *PreviewError {
	return NewPreviewError(ErrorKindAccessDenied, message, nil)
}

func NewInvalidURLError(message string) *PreviewError {
	return NewPreviewError(ErrorKindInvalidURL, message, nil)
}

func NewParseError(message string, err error) *PreviewError {
	return NewPreviewError(ErrorKindParse, message, err)
}

// AsPreviewError converts any error into a PreviewError.
// Deadline and cancellation errors become NETWORK_ERROR, anything else PARSE_ERROR.
func AsPreviewError(err error) *PreviewError {
	if err == nil {
		return nil
	}

	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe
	}

	switch {
	case errors.Is(err, ErrSocialLink):
		return NewInvalidURLError(err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewNetworkError("request timed out", err)
	default:
		return NewParseError("unexpected failure", err)
	}
}

// KindOf returns the error kind of err, or an empty kind when err is nil
func KindOf(err error) ErrorKind {
	if pe := AsPreviewError(err); pe != nil {
		return pe.Kind
	}
	return ""
}

// ErrorFromStatus maps a non-2xx upstream HTTP status to a preview error.
// It returns nil for 2xx statuses.
func ErrorFromStatus(status int, subject string) *PreviewError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 404 || status == 410:
		return NewNotFoundError(fmt.Sprintf("%s not found", subject))
	case status == 401 || status == 403:
		return NewAccessDeniedError(fmt.Sprintf("access to %s denied (status %d)", subject, status))
	case status == 429:
		return NewRateLimitedError(fmt.Sprintf("%s rate limited", subject), time.Time{})
	default:
		return NewNetworkError(fmt.Sprintf("%s returned status %d", subject, status), nil)
	}
}
