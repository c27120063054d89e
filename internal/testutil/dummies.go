// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"sync"

	"github.com/a11ygate/a11ygate/internal/app"
	"github.com/a11ygate/a11ygate/internal/browser"
	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── Browser session ───────────────────────────────────────────────────

// FakeSession implements app.BrowserSession with configurable outcomes and
// invocation counters.
type FakeSession struct {
	mu sync.Mutex

	NavigateOutcome browser.NavigationOutcome
	NavigateErr     error

	NavigateCalls int
	CloseCalls    int
}

func (s *FakeSession) Navigate(_ context.Context, _ string) (browser.NavigationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NavigateCalls++
	return s.NavigateOutcome, s.NavigateErr
}

func (s *FakeSession) Tab() context.Context { return context.Background() }

func (s *FakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
}

// FakeNavigator implements app.Navigator, counting opens.
type FakeNavigator struct {
	mu sync.Mutex

	Session *FakeSession
	OpenErr error

	OpenCalls int
}

func (n *FakeNavigator) Open(_ context.Context) (app.BrowserSession, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.OpenCalls++
	if n.OpenErr != nil {
		return nil, n.OpenErr
	}
	return n.Session, nil
}

// ─── Auditor ───────────────────────────────────────────────────────────

// FakeAuditor implements app.Auditor.
type FakeAuditor struct {
	mu sync.Mutex

	Results *model.AxeResults
	Err     error

	RunCalls int
}

func (a *FakeAuditor) Run(_ context.Context, _ app.BrowserSession) (*model.AxeResults, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.RunCalls++
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Results, nil
}

// ─── Text generator ────────────────────────────────────────────────────

// FakeGenerator implements enrich.TextGenerator, replying with a fixed text
// or error and counting calls.
type FakeGenerator struct {
	mu sync.Mutex

	Text string
	Err  error

	Calls int
}

func (g *FakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	if g.Err != nil {
		return "", g.Err
	}
	return g.Text, nil
}

// CallCount returns the number of Generate invocations so far.
func (g *FakeGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls
}
