package browser

import "time"

// Config controls browser launch and navigation behavior.
type Config struct {
	// LaunchTimeout bounds how long browser startup may take.
	LaunchTimeout time.Duration

	// NavTimeout is the tier-1 (network idle) navigation timeout. The later
	// cascade tiers derive their timeouts from it.
	NavTimeout time.Duration

	// IdleAfter is the quiet period with no in-flight requests required
	// before the page counts as network idle.
	IdleAfter time.Duration

	// UserAgent is sent on every request. A realistic desktop UA avoids
	// trivial bot blocking on target sites.
	UserAgent string

	ViewportWidth  int
	ViewportHeight int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		LaunchTimeout:  60 * time.Second,
		NavTimeout:     45 * time.Second,
		IdleAfter:      2 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		ViewportWidth:  1280,
		ViewportHeight: 720,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = d.LaunchTimeout
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = d.NavTimeout
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = d.IdleAfter
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = d.ViewportWidth
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = d.ViewportHeight
	}
	return c
}
