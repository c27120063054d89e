package model

// NavState tracks how far page navigation got within a browser session.
type NavState string

const (
	NavNotStarted      NavState = "not_started"
	NavLoaded          NavState = "loaded"
	NavPartiallyLoaded NavState = "partially_loaded"
	NavFailed          NavState = "failed"
)

// NavFailureReason classifies why navigation ultimately failed.
type NavFailureReason string

const (
	NavReasonTimeout           NavFailureReason = "timeout"
	NavReasonNameNotResolved   NavFailureReason = "name_not_resolved"
	NavReasonConnectionRefused NavFailureReason = "connection_refused"
	NavReasonNetworkError      NavFailureReason = "network_error"
	NavReasonUnknown           NavFailureReason = "unknown"
)
