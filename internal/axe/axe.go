// Package axe injects the axe-core rule engine into a live page context and
// extracts its structured results. The engine's audit logic is owned
// externally; this package only loads, invokes and parses.
package axe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/model"
)

var (
	// ErrEngineLoad indicates axe-core could not be loaded into the page.
	ErrEngineLoad = errors.New("rule engine load failed")

	// ErrEngineRun wraps whatever error the rule engine itself raised.
	ErrEngineRun = errors.New("rule engine execution failed")
)

// Config controls engine sourcing and scope.
type Config struct {
	// ScriptURL is where axe-core is fetched from when not already present
	// in the page.
	ScriptURL string

	// ScriptTimeout bounds the in-page script load.
	ScriptTimeout time.Duration

	// Tags scope the audit; defaults target WCAG 2.1 AA so best-practice
	// rules do not add noise.
	Tags []string
}

// DefaultConfig returns the production engine configuration.
func DefaultConfig() Config {
	return Config{
		ScriptURL:     "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.7.2/axe.min.js",
		ScriptTimeout: 10 * time.Second,
		Tags:          []string{"wcag2aa", "wcag21aa"},
	}
}

// PageContext provides the browser tab a Runner evaluates in.
type PageContext interface {
	Tab() context.Context
}

// Runner drives one audit inside an active browser session.
type Runner struct {
	cfg    Config
	logger logging.Logger
}

// NewRunner creates a Runner. Zero config fields take defaults.
func NewRunner(cfg Config, logger logging.Logger) *Runner {
	d := DefaultConfig()
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = d.ScriptURL
	}
	if cfg.ScriptTimeout <= 0 {
		cfg.ScriptTimeout = d.ScriptTimeout
	}
	if len(cfg.Tags) == 0 {
		cfg.Tags = d.Tags
	}
	return &Runner{cfg: cfg, logger: logger}
}

// loadTimeoutMarker is matched against page-side rejection messages to tell
// load failures from engine failures.
const loadTimeoutMarker = "axe-core load"

// auditScript evaluates to a promise resolving with the trimmed
// {violations, passes, incomplete} payload. Shadow-DOM selector arrays are
// flattened to strings page-side so the payload decodes into flat Go types.
const auditScript = `new Promise((resolve, reject) => {
	const trimCheck = (c) => ({ id: c.id, description: c.description, help: c.help, helpUrl: c.helpUrl });
	const run = () => {
		window.axe.run({ runOnly: { type: "tag", values: %s } }, (error, results) => {
			if (error) { reject(error); return; }
			resolve({
				violations: results.violations.map((v) => ({
					id: v.id,
					impact: v.impact || "minor",
					description: v.description,
					help: v.help,
					helpUrl: v.helpUrl,
					nodes: (v.nodes || []).map((n) => ({ html: n.html, target: (n.target || []).map(String) })),
				})),
				passes: results.passes.map(trimCheck),
				incomplete: results.incomplete.map(trimCheck),
			});
		});
	};
	if (window.axe) { run(); return; }
	const script = document.createElement("script");
	script.src = %q;
	const scriptTimeout = setTimeout(() => {
		reject(new Error("%s timed out"));
	}, %d);
	script.onload = () => { clearTimeout(scriptTimeout); run(); };
	script.onerror = () => { clearTimeout(scriptTimeout); reject(new Error("%s error: unreachable source")); };
	document.head.appendChild(script);
})`

// Run injects axe-core if needed and executes the audit, blocking until the
// page-side promise settles.
func (r *Runner) Run(ctx context.Context, pc PageContext) (*model.AxeResults, error) {
	tags, err := json.Marshal(r.cfg.Tags)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding tags: %v", ErrEngineRun, err)
	}

	script := fmt.Sprintf(auditScript,
		string(tags),
		r.cfg.ScriptURL,
		loadTimeoutMarker,
		r.cfg.ScriptTimeout.Milliseconds(),
		loadTimeoutMarker,
	)

	if r.logger != nil {
		r.logger.Debug("running audit", logging.Field{Key: "tags", Value: r.cfg.Tags})
	}

	// The script-load timeout fires page-side; the outer margin only covers
	// engine evaluation itself going silent.
	runCtx, cancel := context.WithTimeout(pc.Tab(), r.cfg.ScriptTimeout+2*time.Minute)
	defer cancel()

	var results model.AxeResults
	err = chromedp.Run(runCtx, chromedp.Evaluate(script, &results,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		if strings.Contains(err.Error(), loadTimeoutMarker) {
			return nil, fmt.Errorf("%w: %v", ErrEngineLoad, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrEngineRun, err)
	}

	if r.logger != nil {
		r.logger.Info("audit complete",
			logging.Field{Key: "violations", Value: len(results.Violations)},
			logging.Field{Key: "passes", Value: len(results.Passes)},
			logging.Field{Key: "incomplete", Value: len(results.Incomplete)})
	}
	return &results, nil
}
