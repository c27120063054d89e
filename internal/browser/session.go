// Package browser owns the lifecycle of ephemeral headless Chrome sessions:
// launch, navigation with a tiered wait-strategy fallback, and guaranteed
// teardown. One session serves exactly one scan and is never reused.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/model"
)

// WaitStrategy is the condition a navigation tier waits for.
type WaitStrategy string

const (
	WaitNetworkIdle      WaitStrategy = "networkidle"
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitLoad             WaitStrategy = "load"
)

// minTierTimeout is the floor applied when deriving later-tier timeouts.
const minTierTimeout = 5 * time.Second

// NavigationOutcome describes how a navigation ended.
type NavigationOutcome struct {
	State model.NavState

	// Tier is the 1-based cascade tier that succeeded, 0 on failure.
	Tier int

	Strategy WaitStrategy
}

type navTier struct {
	strategy WaitStrategy
	timeout  time.Duration
}

// cascade derives the ordered fallback tiers from the tier-1 timeout. Target
// sites with infinite polling keep the network busy forever, so each tier
// waits for a weaker condition under a shorter deadline.
func cascade(t1 time.Duration) []navTier {
	t2 := clampTier(t1 - 15*time.Second)
	t3 := clampTier(t2 - 15*time.Second)
	return []navTier{
		{strategy: WaitNetworkIdle, timeout: clampTier(t1)},
		{strategy: WaitDOMContentLoaded, timeout: t2},
		{strategy: WaitLoad, timeout: t3},
	}
}

func clampTier(d time.Duration) time.Duration {
	if d < minTierTimeout {
		return minTierTimeout
	}
	return d
}

// Launcher starts headless browser sessions.
type Launcher struct {
	cfg    Config
	logger logging.Logger
}

// NewLauncher creates a Launcher. Zero config fields take defaults.
func NewLauncher(cfg Config, logger logging.Logger) *Launcher {
	return &Launcher{cfg: cfg.withDefaults(), logger: logger}
}

// Session is one live headless browser process bound to one page context.
// Callers must invoke Close exactly once per opened session.
type Session struct {
	cfg    Config
	logger logging.Logger

	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	state    model.NavState
	tierUsed int

	// attempt performs one navigation wait; replaced in tests.
	attempt func(url string, strategy WaitStrategy, timeout time.Duration) error

	closeOnce sync.Once
}

// Open launches a sandboxless headless browser with the configured viewport
// and user agent. The no-sandbox flags keep Chromium bootable inside
// containers and other constrained hosting environments.
func (l *Launcher) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(l.cfg.UserAgent),
		chromedp.WindowSize(l.cfg.ViewportWidth, l.cfg.ViewportHeight),
	)

	// The session outlives the request context on purpose; teardown is
	// explicit via Close, not tied to caller cancellation.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	launchCtx, cancel := context.WithTimeout(tabCtx, l.cfg.LaunchTimeout)
	defer cancel()

	if err := chromedp.Run(launchCtx,
		chromedp.EmulateViewport(int64(l.cfg.ViewportWidth), int64(l.cfg.ViewportHeight)),
	); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	s := &Session{
		cfg:         l.cfg,
		logger:      l.logger,
		tab:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		state:       model.NavNotStarted,
	}
	s.attempt = s.attemptNavigate

	if l.logger != nil {
		l.logger.Debug("browser session opened",
			logging.Field{Key: "viewport", Value: fmt.Sprintf("%dx%d", l.cfg.ViewportWidth, l.cfg.ViewportHeight)})
	}
	return s, nil
}

// Navigate loads url through the fallback cascade: network idle first, then
// DOMContentLoaded, then the bare load event, each tier attempted only after
// the previous one timed out. Navigation-level errors (DNS, connection)
// abort the cascade immediately.
func (s *Session) Navigate(ctx context.Context, url string) (NavigationOutcome, error) {
	tiers := cascade(s.cfg.NavTimeout)
	var lastErr error

	for i, t := range tiers {
		// Caller cancellation is not a site failure; report it as such
		// instead of charging it to the cascade.
		if err := ctx.Err(); err != nil {
			s.state = model.NavFailed
			reason := model.NavReasonUnknown
			if errors.Is(err, context.DeadlineExceeded) {
				reason = model.NavReasonTimeout
			}
			return NavigationOutcome{State: s.state}, &NavError{Reason: reason, cause: err}
		}

		err := s.attempt(url, t.strategy, t.timeout)
		if err == nil {
			s.tierUsed = i + 1
			if i == 0 {
				s.state = model.NavLoaded
			} else {
				s.state = model.NavPartiallyLoaded
			}
			if s.logger != nil {
				s.logger.Info("page loaded",
					logging.Field{Key: "url", Value: url},
					logging.Field{Key: "strategy", Value: string(t.strategy)},
					logging.Field{Key: "tier", Value: i + 1})
			}
			return NavigationOutcome{State: s.state, Tier: i + 1, Strategy: t.strategy}, nil
		}

		lastErr = err
		if !isTimeout(err) {
			s.state = model.NavFailed
			return NavigationOutcome{State: s.state}, &NavError{Reason: classifyNavError(err), cause: err}
		}
		if s.logger != nil {
			s.logger.Warn("navigation wait timed out, falling back",
				logging.Field{Key: "url", Value: url},
				logging.Field{Key: "strategy", Value: string(t.strategy)},
				logging.Field{Key: "timeout", Value: t.timeout.String()})
		}
	}

	s.state = model.NavFailed
	return NavigationOutcome{State: s.state}, &NavError{Reason: model.NavReasonTimeout, cause: lastErr}
}

func (s *Session) attemptNavigate(url string, strategy WaitStrategy, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()

	// Listeners must be attached before navigation starts or early events
	// are missed.
	listenCtx, stopListen := context.WithCancel(s.tab)
	defer stopListen()

	var done <-chan struct{}
	switch strategy {
	case WaitNetworkIdle:
		done = waitNetworkIdle(listenCtx, s.cfg.IdleAfter)
	default:
		done = waitPageEvent(listenCtx, strategy)
	}

	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(cctx context.Context) error {
		_, _, errText, err := page.Navigate(url).Do(cctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigate %s: %s", url, errText)
		}
		return nil
	}))
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-runCtx.Done():
		return runCtx.Err()
	}
}

// waitPageEvent signals once the requested lifecycle event fires.
func waitPageEvent(ctx context.Context, strategy WaitStrategy) <-chan struct{} {
	ch := make(chan struct{})
	var once sync.Once

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *page.EventDomContentEventFired:
			if strategy == WaitDOMContentLoaded {
				once.Do(func() { close(ch) })
			}
		case *page.EventLoadEventFired:
			if strategy == WaitLoad {
				once.Do(func() { close(ch) })
			}
		}
	})
	return ch
}

// Tab exposes the page context for in-page evaluation.
func (s *Session) Tab() context.Context { return s.tab }

// State reports the current navigation state.
func (s *Session) State() model.NavState { return s.state }

// Tier reports which cascade tier succeeded, 0 if none did yet.
func (s *Session) Tier() int { return s.tierUsed }

// Close terminates the browser process. It is idempotent and best-effort:
// failures are logged, never propagated.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.tab != nil {
			if err := chromedp.Cancel(s.tab); err != nil && s.logger != nil {
				s.logger.Warn("closing browser session", logging.Field{Key: "error", Value: err.Error()})
			}
		}
		if s.tabCancel != nil {
			s.tabCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		if s.logger != nil {
			s.logger.Debug("browser session closed")
		}
	})
}
