package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/a11ygate/a11ygate/internal/axe"
	"github.com/a11ygate/a11ygate/internal/browser"
	"github.com/a11ygate/a11ygate/internal/enrich"
	"github.com/a11ygate/a11ygate/internal/history"
	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/model"
	"github.com/a11ygate/a11ygate/internal/ratelimit"
)

// Application owns the wired component graph and its resources.
type Application struct {
	Cfg          *Config
	Logger       logging.Logger
	Orchestrator *Orchestrator
	History      *history.Store

	limiter   *ratelimit.Limiter
	historyDB *sql.DB
}

// NewApplication builds the full component graph from config. A missing
// Gemini key degrades enrichment to fallback-only text instead of failing
// startup; scanning must not depend on the collaborator being reachable.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLoggerAt("a11ygate", cfg.LogLevel)
	}

	limiter := ratelimit.New(cfg.RateWindow, cfg.RateMaxRequests, logger)
	launcher := browser.NewLauncher(cfg.BrowserCfg, logger)
	runner := axe.NewRunner(cfg.AxeCfg, logger)

	var gen enrich.TextGenerator
	if cfg.GeminiCfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not configured, enrichment runs in fallback-only mode")
	} else {
		client, err := enrich.NewGeminiClient(cfg.GeminiCfg)
		if err != nil {
			limiter.Close()
			return nil, fmt.Errorf("configuring gemini client: %w", err)
		}
		gen = client
	}
	enricher := enrich.NewEnricher(gen, cfg.EnrichConcurrency, logger)

	appl := &Application{
		Cfg:     cfg,
		Logger:  logger,
		limiter: limiter,
	}

	if cfg.HistoryDB != "" {
		db, err := sql.Open("sqlite", cfg.HistoryDB)
		if err != nil {
			limiter.Close()
			return nil, fmt.Errorf("opening history database: %w", err)
		}
		store, err := history.NewStore(db, logger)
		if err != nil {
			db.Close()
			limiter.Close()
			return nil, fmt.Errorf("preparing history store: %w", err)
		}
		appl.historyDB = db
		appl.History = store
	}

	var archive Archive
	if appl.History != nil {
		archive = appl.History
	}

	appl.Orchestrator = NewOrchestrator(
		limiter,
		NavigatorFunc(func(ctx context.Context) (BrowserSession, error) {
			return launcher.Open(ctx)
		}),
		AuditorFunc(func(ctx context.Context, sess BrowserSession) (*model.AxeResults, error) {
			return runner.Run(ctx, sess)
		}),
		enricher,
		archive,
		logger,
	)

	return appl, nil
}

// Close releases background resources. Safe to call once.
func (a *Application) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.historyDB != nil {
		_ = a.historyDB.Close()
	}
}
