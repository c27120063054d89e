// Package app hosts the scan orchestrator: the single entry point that
// admits a request, validates its target, drives a browser session through
// navigation and audit, enriches the findings, and maps every failure onto
// the scan error taxonomy.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/a11ygate/a11ygate/internal/axe"
	"github.com/a11ygate/a11ygate/internal/browser"
	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/model"
	"github.com/a11ygate/a11ygate/internal/ratelimit"
	"github.com/a11ygate/a11ygate/internal/urlutil"
)

// ScanState is one stage of the per-request state machine, emitted as a
// progress event.
type ScanState string

const (
	StateReceived     ScanState = "received"
	StateAdmitted     ScanState = "admitted"
	StateURLValidated ScanState = "url_validated"
	StateSessionOpen  ScanState = "session_open"
	StateNavigated    ScanState = "navigated"
	StateAuditRun     ScanState = "audit_run"
	StateEnriched     ScanState = "enriched"
	StateCompleted    ScanState = "completed"
	StateFailed       ScanState = "failed"
)

// ProgressEvent is one state transition of a running scan.
type ProgressEvent struct {
	RequestID string    `json:"requestId"`
	State     ScanState `json:"state"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Admitter gates scan requests per client identity.
type Admitter interface {
	Check(identity string) ratelimit.Result
}

// BrowserSession is one live page-bound browser process.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) (browser.NavigationOutcome, error)
	Tab() context.Context
	Close()
}

// Navigator opens browser sessions.
type Navigator interface {
	Open(ctx context.Context) (BrowserSession, error)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context) (BrowserSession, error)

func (f NavigatorFunc) Open(ctx context.Context) (BrowserSession, error) { return f(ctx) }

// Auditor runs the rule engine inside an open session.
type Auditor interface {
	Run(ctx context.Context, sess BrowserSession) (*model.AxeResults, error)
}

// AuditorFunc adapts a function to the Auditor interface.
type AuditorFunc func(ctx context.Context, sess BrowserSession) (*model.AxeResults, error)

func (f AuditorFunc) Run(ctx context.Context, sess BrowserSession) (*model.AxeResults, error) {
	return f(ctx, sess)
}

// Enricher augments violations with collaborator text.
type Enricher interface {
	Enrich(ctx context.Context, violations []model.Violation) (enriched []model.Violation, summary, plan string)
}

// Archive persists completed scans. Optional.
type Archive interface {
	Save(ctx context.Context, res *model.ScanResult) error
}

// Orchestrator ties admission, browser, audit, enrichment and archival
// together behind Scan.
type Orchestrator struct {
	limiter  Admitter
	browser  Navigator
	auditor  Auditor
	enricher Enricher
	archive  Archive
	logger   logging.Logger
}

// NewOrchestrator wires the orchestrator. archive may be nil.
func NewOrchestrator(limiter Admitter, nav Navigator, auditor Auditor, enricher Enricher, archive Archive, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewStdoutLogger("Orchestrator")
	}
	return &Orchestrator{
		limiter:  limiter,
		browser:  nav,
		auditor:  auditor,
		enricher: enricher,
		archive:  archive,
		logger:   logger,
	}
}

// Scan audits one target URL on behalf of identity.
func (o *Orchestrator) Scan(ctx context.Context, rawURL, identity string) (*model.ScanResult, error) {
	return o.scan(ctx, rawURL, identity, nil)
}

// ScanStream is Scan with state-transition events delivered on events as the
// scan progresses. Sends never block; slow consumers lose events, not scans.
func (o *Orchestrator) ScanStream(ctx context.Context, rawURL, identity string, events chan<- ProgressEvent) (*model.ScanResult, error) {
	return o.scan(ctx, rawURL, identity, events)
}

func (o *Orchestrator) scan(ctx context.Context, rawURL, identity string, events chan<- ProgressEvent) (*model.ScanResult, error) {
	requestID := uuid.New().String()
	start := time.Now()

	emit := func(state ScanState, errMsg string) {
		if events == nil {
			return
		}
		select {
		case events <- ProgressEvent{RequestID: requestID, State: state, Error: errMsg, At: time.Now().UTC()}:
		default:
		}
	}

	fail := func(kind ErrorKind, retryAfter int, cause error) (*model.ScanResult, error) {
		scanErr := &ScanError{Kind: kind, RequestID: requestID, RetryAfter: retryAfter, cause: cause}
		o.logger.Error("scan failed",
			logging.Field{Key: "request_id", Value: requestID},
			logging.Field{Key: "kind", Value: string(kind)},
			logging.Field{Key: "error", Value: scanErr.Error()},
			logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
		emit(StateFailed, scanErr.UserMessage())
		return nil, scanErr
	}

	o.logger.Info("scan received",
		logging.Field{Key: "request_id", Value: requestID},
		logging.Field{Key: "url", Value: rawURL},
		logging.Field{Key: "identity", Value: identity})
	emit(StateReceived, "")

	// Admission first: no browser is launched for a rejected request.
	admission := o.limiter.Check(identity)
	if !admission.Allowed {
		return fail(KindRateLimited, admission.RetryAfter, nil)
	}
	emit(StateAdmitted, "")

	target, err := urlutil.NormalizeTarget(rawURL)
	if err != nil {
		if errors.Is(err, urlutil.ErrEmptyURL) {
			return fail(KindMissingURL, 0, err)
		}
		return fail(KindInvalidURL, 0, err)
	}
	emit(StateURLValidated, "")

	sess, err := o.browser.Open(ctx)
	if err != nil {
		return fail(KindBrowserLaunch, 0, err)
	}
	// One Close per Open on every exit path below, success or failure.
	defer sess.Close()
	emit(StateSessionOpen, "")

	outcome, err := sess.Navigate(ctx, target)
	if err != nil {
		return fail(navErrorKind(err), 0, err)
	}
	o.logger.Info("navigation complete",
		logging.Field{Key: "request_id", Value: requestID},
		logging.Field{Key: "state", Value: string(outcome.State)},
		logging.Field{Key: "tier", Value: outcome.Tier})
	emit(StateNavigated, "")

	raw, err := o.auditor.Run(ctx, sess)
	if err != nil {
		if errors.Is(err, axe.ErrEngineLoad) {
			return fail(KindEngineLoad, 0, err)
		}
		return fail(KindEngineRun, 0, err)
	}
	emit(StateAuditRun, "")

	violations, summary, plan := o.enricher.Enrich(ctx, raw.Violations)
	emit(StateEnriched, "")

	result := &model.ScanResult{
		RequestID:       requestID,
		URL:             target,
		Violations:      violations,
		Passes:          raw.Passes,
		Incomplete:      raw.Incomplete,
		Summary:         summary,
		ImprovementPlan: plan,
		Stats:           model.ComputeStats(violations),
		Timestamp:       time.Now().UTC(),
		Performance: model.Performance{
			Duration: time.Since(start).Milliseconds(),
			Unit:     "ms",
		},
	}

	if o.archive != nil {
		if err := o.archive.Save(ctx, result); err != nil {
			o.logger.Warn("archiving scan",
				logging.Field{Key: "request_id", Value: requestID},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	o.logger.Info("scan complete",
		logging.Field{Key: "request_id", Value: requestID},
		logging.Field{Key: "url", Value: target},
		logging.Field{Key: "violations", Value: result.Stats.Total},
		logging.Field{Key: "duration_ms", Value: result.Performance.Duration})
	emit(StateCompleted, "")

	return result, nil
}

func navErrorKind(err error) ErrorKind {
	var navErr *browser.NavError
	if !errors.As(err, &navErr) {
		return KindNavUnknown
	}
	switch navErr.Reason {
	case model.NavReasonTimeout:
		return KindNavTimeout
	case model.NavReasonNameNotResolved:
		return KindNavNameNotResolved
	case model.NavReasonConnectionRefused:
		return KindNavConnectionRefused
	case model.NavReasonNetworkError:
		return KindNavNetwork
	default:
		return KindNavUnknown
	}
}
