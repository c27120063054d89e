package server

import (
	"github.com/a11ygate/a11ygate/internal/app"
	"github.com/a11ygate/a11ygate/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// AppConfig configures the underlying application; nil means defaults.
	AppConfig *app.Config

	// Logger is optional; nil means a stdout logger.
	Logger logging.Logger
}
