package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a11ygate/a11ygate/internal/app"
	"github.com/a11ygate/a11ygate/internal/axe"
	"github.com/a11ygate/a11ygate/internal/browser"
	"github.com/a11ygate/a11ygate/internal/enrich"
	"github.com/a11ygate/a11ygate/internal/model"
	"github.com/a11ygate/a11ygate/internal/ratelimit"
	"github.com/a11ygate/a11ygate/internal/testutil"
)

type recordingArchive struct {
	mu    sync.Mutex
	saved []*model.ScanResult
	err   error
}

func (a *recordingArchive) Save(_ context.Context, res *model.ScanResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.saved = append(a.saved, res)
	return nil
}

type fixture struct {
	orch      *app.Orchestrator
	limiter   *ratelimit.Limiter
	navigator *testutil.FakeNavigator
	session   *testutil.FakeSession
	auditor   *testutil.FakeAuditor
	generator *testutil.FakeGenerator
	archive   *recordingArchive
	logger    *testutil.DummyLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		session:   &testutil.FakeSession{NavigateOutcome: browser.NavigationOutcome{State: model.NavLoaded, Tier: 1}},
		generator: &testutil.FakeGenerator{Text: "generated"},
		archive:   &recordingArchive{},
		logger:    &testutil.DummyLogger{},
	}
	f.navigator = &testutil.FakeNavigator{Session: f.session}
	f.auditor = &testutil.FakeAuditor{Results: &model.AxeResults{
		Violations: []model.Violation{
			{ID: "image-alt", Impact: model.ImpactCritical, Help: "Images must have an alt attribute", HelpURL: "https://example.com/image-alt"},
			{ID: "label", Impact: model.ImpactSerious, Help: "Form elements must have labels"},
		},
		Passes:     []model.CheckRecord{{ID: "document-title"}},
		Incomplete: []model.CheckRecord{{ID: "color-contrast"}},
	}}
	f.limiter = ratelimit.New(time.Minute, 10, f.logger)
	t.Cleanup(f.limiter.Close)

	f.orch = app.NewOrchestrator(
		f.limiter,
		f.navigator,
		f.auditor,
		enrich.NewEnricher(f.generator, 2, f.logger),
		f.archive,
		f.logger,
	)
	return f
}

func scanErrOf(t *testing.T, err error) *app.ScanError {
	t.Helper()
	var scanErr *app.ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected *app.ScanError, got %v", err)
	}
	return scanErr
}

// ─── Happy path ────────────────────────────────────────────────────────

func TestScan_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.orch.Scan(context.Background(), "example.com", "1.2.3.4")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if res.RequestID == "" {
		t.Error("request id must be set")
	}
	if res.URL != "https://example.com" {
		t.Errorf("url = %q, want normalized target", res.URL)
	}
	want := model.Stats{Total: 2, Critical: 1, Serious: 1}
	if res.Stats != want {
		t.Errorf("stats = %+v, want %+v", res.Stats, want)
	}
	for _, v := range res.Violations {
		if v.AIExplanation != "generated" {
			t.Errorf("violation %s not enriched: %q", v.ID, v.AIExplanation)
		}
	}
	if res.Performance.Unit != "ms" {
		t.Errorf("performance unit = %q, want ms", res.Performance.Unit)
	}
	if f.session.CloseCalls != 1 {
		t.Errorf("session closed %d times, want exactly 1", f.session.CloseCalls)
	}
	if len(f.archive.saved) != 1 {
		t.Errorf("archive saved %d scans, want 1", len(f.archive.saved))
	}
}

// ─── Failure paths & cleanup invariant ─────────────────────────────────

func TestScan_MissingURL_NoSessionOpened(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.orch.Scan(context.Background(), "   ", "id")
	if scanErrOf(t, err).Kind != app.KindMissingURL {
		t.Errorf("kind = %s, want missing_url", scanErrOf(t, err).Kind)
	}
	if f.navigator.OpenCalls != 0 {
		t.Errorf("browser opened %d times for missing url", f.navigator.OpenCalls)
	}
}

func TestScan_InvalidURL_NoSessionOpened(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.orch.Scan(context.Background(), "not a url", "id")
	if scanErrOf(t, err).Kind != app.KindInvalidURL {
		t.Errorf("kind = %s, want invalid_url", scanErrOf(t, err).Kind)
	}
	if f.navigator.OpenCalls != 0 {
		t.Errorf("browser opened %d times for invalid url", f.navigator.OpenCalls)
	}
}

func TestScan_RateLimited_NoBrowserWork(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for i := 0; i < 10; i++ {
		if _, err := f.orch.Scan(context.Background(), "example.com", "hot"); err != nil {
			t.Fatalf("scan %d: %v", i+1, err)
		}
	}
	opensBefore := f.navigator.OpenCalls

	_, err := f.orch.Scan(context.Background(), "example.com", "hot")
	scanErr := scanErrOf(t, err)
	if scanErr.Kind != app.KindRateLimited {
		t.Fatalf("kind = %s, want rate_limited", scanErr.Kind)
	}
	if scanErr.RetryAfter < 1 || scanErr.RetryAfter > 60 {
		t.Errorf("retryAfter = %d, want within [1, 60]", scanErr.RetryAfter)
	}
	if f.navigator.OpenCalls != opensBefore {
		t.Error("rate-limited request must not launch a browser")
	}
}

func TestScan_LaunchFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.navigator.OpenErr = fmt.Errorf("%w: chrome exited", browser.ErrLaunch)

	_, err := f.orch.Scan(context.Background(), "example.com", "id")
	if scanErrOf(t, err).Kind != app.KindBrowserLaunch {
		t.Errorf("kind = %s, want browser_launch", scanErrOf(t, err).Kind)
	}
	if f.session.CloseCalls != 0 {
		t.Error("no session was opened, none may be closed")
	}
}

func TestScan_NavigationFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		reason model.NavFailureReason
		want   app.ErrorKind
	}{
		{model.NavReasonTimeout, app.KindNavTimeout},
		{model.NavReasonNameNotResolved, app.KindNavNameNotResolved},
		{model.NavReasonConnectionRefused, app.KindNavConnectionRefused},
		{model.NavReasonNetworkError, app.KindNavNetwork},
		{model.NavReasonUnknown, app.KindNavUnknown},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.reason), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.session.NavigateErr = browser.NewNavError(tc.reason, nil)
			f.session.NavigateOutcome = browser.NavigationOutcome{State: model.NavFailed}

			_, err := f.orch.Scan(context.Background(), "example.com", "id")
			if got := scanErrOf(t, err).Kind; got != tc.want {
				t.Errorf("kind = %s, want %s", got, tc.want)
			}
			if f.session.CloseCalls != 1 {
				t.Errorf("session closed %d times on navigation failure, want exactly 1", f.session.CloseCalls)
			}
			if f.auditor.RunCalls != 0 {
				t.Error("audit must not run after navigation failure")
			}
		})
	}
}

func TestScan_EngineFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want app.ErrorKind
	}{
		{"load", fmt.Errorf("%w: cdn unreachable", axe.ErrEngineLoad), app.KindEngineLoad},
		{"run", fmt.Errorf("%w: axe rejected", axe.ErrEngineRun), app.KindEngineRun},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.auditor.Err = tc.err

			_, err := f.orch.Scan(context.Background(), "example.com", "id")
			if got := scanErrOf(t, err).Kind; got != tc.want {
				t.Errorf("kind = %s, want %s", got, tc.want)
			}
			if f.session.CloseCalls != 1 {
				t.Errorf("session closed %d times on engine failure, want exactly 1", f.session.CloseCalls)
			}
		})
	}
}

// ─── Enrichment resilience ─────────────────────────────────────────────

func TestScan_EnrichmentFailuresAreNonFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.generator.Err = errors.New("collaborator down for everyone")

	res, err := f.orch.Scan(context.Background(), "example.com", "id")
	if err != nil {
		t.Fatalf("enrichment failure must not fail the scan: %v", err)
	}

	for _, v := range res.Violations {
		if !strings.HasPrefix(v.AIExplanation, v.Help) {
			t.Errorf("violation %s: fallback explanation must start with help text, got %q", v.ID, v.AIExplanation)
		}
	}
	if !strings.Contains(res.Summary, "2 accessibility issues") {
		t.Errorf("summary fallback = %q", res.Summary)
	}
	if !strings.Contains(res.ImprovementPlan, "critical severity") {
		t.Errorf("plan fallback = %q", res.ImprovementPlan)
	}
}

func TestScan_ArchiveFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.archive.err = errors.New("disk full")

	if _, err := f.orch.Scan(context.Background(), "example.com", "id"); err != nil {
		t.Fatalf("archive failure must not fail the scan: %v", err)
	}
	if len(f.logger.Warns) == 0 {
		t.Error("archive failure should be logged as a warning")
	}
}

// ─── Progress events ───────────────────────────────────────────────────

func TestScanStream_EmitsStateTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	events := make(chan app.ProgressEvent, 32)
	_, err := f.orch.ScanStream(context.Background(), "example.com", "id", events)
	if err != nil {
		t.Fatalf("ScanStream: %v", err)
	}
	close(events)

	var states []app.ScanState
	for ev := range events {
		states = append(states, ev.State)
	}

	want := []app.ScanState{
		app.StateReceived, app.StateAdmitted, app.StateURLValidated,
		app.StateSessionOpen, app.StateNavigated, app.StateAuditRun,
		app.StateEnriched, app.StateCompleted,
	}
	if len(states) != len(want) {
		t.Fatalf("got states %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state[%d] = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestScanStream_FailureEndsWithFailedEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	events := make(chan app.ProgressEvent, 32)
	_, err := f.orch.ScanStream(context.Background(), "", "id", events)
	if err == nil {
		t.Fatal("expected failure for empty url")
	}
	close(events)

	var last app.ProgressEvent
	for ev := range events {
		last = ev
	}
	if last.State != app.StateFailed {
		t.Errorf("last state = %s, want failed", last.State)
	}
	if last.Error == "" {
		t.Error("failed event must carry the user-facing message")
	}
}
