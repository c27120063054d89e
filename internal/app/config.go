package app

import (
	"os"
	"strconv"
	"time"

	"github.com/a11ygate/a11ygate/internal/axe"
	"github.com/a11ygate/a11ygate/internal/browser"
	"github.com/a11ygate/a11ygate/internal/enrich"
	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/ratelimit"
)

// Config carries the runtime configuration for the whole service.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// Admission controller settings.
	RateWindow      time.Duration
	RateMaxRequests int

	// Browser session manager settings.
	BrowserCfg browser.Config

	// Rule engine settings.
	AxeCfg axe.Config

	// Text-generation collaborator settings. An empty APIKey leaves
	// enrichment in fallback-only mode.
	GeminiCfg enrich.GeminiConfig

	// EnrichConcurrency bounds concurrent per-violation explanation calls.
	EnrichConcurrency int

	// HistoryDB is the sqlite path for the scan archive; empty disables it.
	HistoryDB string

	LogLevel logging.Level
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        ":8080",
		RateWindow:        ratelimit.DefaultWindow,
		RateMaxRequests:   ratelimit.DefaultMaxRequests,
		BrowserCfg:        browser.DefaultConfig(),
		AxeCfg:            axe.DefaultConfig(),
		GeminiCfg:         enrich.DefaultGeminiConfig(),
		EnrichConcurrency: 4,
		HistoryDB:         "a11ygate.db",
		LogLevel:          logging.LevelInfo,
	}
}

// LoadEnv overlays environment variables onto the config. Unset or malformed
// values leave the existing value in place.
func (c *Config) LoadEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if n, ok := envInt("RATE_LIMIT_REQUESTS_PER_MINUTE"); ok {
		c.RateMaxRequests = n
	}
	if d, ok := envMillis("RATE_LIMIT_WINDOW_MS"); ok {
		c.RateWindow = d
	}
	if d, ok := envMillis("NAV_TIMEOUT_MS"); ok {
		c.BrowserCfg.NavTimeout = d
	}
	if d, ok := envMillis("BROWSER_LAUNCH_TIMEOUT_MS"); ok {
		c.BrowserCfg.LaunchTimeout = d
	}
	if d, ok := envMillis("SCRIPT_TIMEOUT_MS"); ok {
		c.AxeCfg.ScriptTimeout = d
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiCfg.APIKey = v
	}
	if d, ok := envMillis("GEMINI_TIMEOUT_MS"); ok {
		c.GeminiCfg.Timeout = d
	}
	if v := os.Getenv("HISTORY_DB"); v != "" {
		c.HistoryDB = v
	}
	if v, set := os.LookupEnv("LOG_LEVEL"); set {
		c.LogLevel = logging.ParseLevel(v)
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envMillis(key string) (time.Duration, bool) {
	n, ok := envInt(key)
	if !ok {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
