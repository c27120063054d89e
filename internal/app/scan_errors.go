package app

import (
	"fmt"
	"net/http"
)

// ErrorKind is the scan failure taxonomy. Every failure mode maps onto
// exactly one kind, which in turn fixes the HTTP status and the user-facing
// message.
type ErrorKind string

const (
	KindMissingURL           ErrorKind = "missing_url"
	KindInvalidURL           ErrorKind = "invalid_url"
	KindRateLimited          ErrorKind = "rate_limited"
	KindBrowserLaunch        ErrorKind = "browser_launch"
	KindNavTimeout           ErrorKind = "nav_timeout"
	KindNavNameNotResolved   ErrorKind = "nav_name_not_resolved"
	KindNavConnectionRefused ErrorKind = "nav_connection_refused"
	KindNavNetwork           ErrorKind = "nav_network"
	KindNavUnknown           ErrorKind = "nav_unknown"
	KindEngineLoad           ErrorKind = "engine_load"
	KindEngineRun            ErrorKind = "engine_run"
	KindInternal             ErrorKind = "internal"
)

// ScanError is the terminal error of one scan invocation.
type ScanError struct {
	Kind      ErrorKind
	RequestID string

	// RetryAfter is set in seconds when Kind is KindRateLimited.
	RetryAfter int

	cause error
}

func (e *ScanError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("scan failed (%s): %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("scan failed (%s)", e.Kind)
}

func (e *ScanError) Unwrap() error { return e.cause }

// HTTPStatus maps the kind onto a response status.
func (e *ScanError) HTTPStatus() int {
	switch e.Kind {
	case KindMissingURL, KindInvalidURL:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is the human-readable category shown to the client. Internal
// detail stays in logs.
func (e *ScanError) UserMessage() string {
	switch e.Kind {
	case KindMissingURL:
		return "URL is required"
	case KindInvalidURL:
		return "Invalid URL format. Please enter a valid URL starting with http:// or https://"
	case KindRateLimited:
		return "Too many requests. Please try again later."
	case KindNavTimeout:
		return "The website took too long to load. Please try a different URL."
	case KindNavNameNotResolved:
		return "Could not find that website. Please check the URL and try again."
	case KindNavConnectionRefused:
		return "The website refused the connection. The site may be down."
	case KindNavNetwork, KindNavUnknown:
		return "A network error occurred while loading the website. Please try again."
	default:
		return "Failed to scan website. Please ensure the URL is accessible."
	}
}
