package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/a11ygate/a11ygate/internal/model"
)

// ErrLaunch indicates the browser process could not be started.
var ErrLaunch = errors.New("browser launch failed")

// NavError reports a failed navigation with its classified reason.
type NavError struct {
	Reason model.NavFailureReason
	cause  error
}

func (e *NavError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("navigation failed (%s): %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("navigation failed (%s)", e.Reason)
}

func (e *NavError) Unwrap() error { return e.cause }

// NewNavError builds a NavError with an already-classified reason.
func NewNavError(reason model.NavFailureReason, cause error) *NavError {
	return &NavError{Reason: reason, cause: cause}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// classifyNavError maps a raw navigation error onto the failure taxonomy.
// Chromium reports navigation-level failures as net::ERR_* strings in the
// Page.navigate response.
func classifyNavError(err error) model.NavFailureReason {
	if err == nil {
		return model.NavReasonUnknown
	}
	if isTimeout(err) {
		return model.NavReasonTimeout
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "net::ERR_NAME_NOT_RESOLVED"):
		return model.NavReasonNameNotResolved
	case strings.Contains(msg, "net::ERR_CONNECTION_REFUSED"):
		return model.NavReasonConnectionRefused
	case strings.Contains(msg, "net::ERR_"):
		return model.NavReasonNetworkError
	default:
		return model.NavReasonUnknown
	}
}
