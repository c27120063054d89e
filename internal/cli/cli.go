// Package cli wires the cobra command tree: a long-running API server and a
// one-shot scan mode for terminal use.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/a11ygate/a11ygate/internal/app"
	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/server"
)

var (
	listenAddr string
	logLevel   string
	noHistory  bool
)

var rootCmd = &cobra.Command{
	Use:   "a11ygate",
	Short: "a11ygate audits websites for WCAG 2.1 AA compliance",
	Long: `a11ygate loads a page in headless Chrome, runs the axe-core ruleset
against the rendered DOM, and reports violations with AI-generated
explanations, an executive summary, and a remediation roadmap.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		logger := logging.NewStdoutLoggerAt("a11ygate", cfg.LogLevel)

		srv, err := server.NewServer(server.Config{
			ListenAddr: cfg.ListenAddr,
			AppConfig:  cfg,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		defer srv.Close()

		httpSrv := srv.HTTPServer()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", logging.Field{Key: "addr", Value: httpSrv.Addr})
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			return httpSrv.Shutdown(context.Background())
		}
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Scan one URL and print the report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		logger := logging.NewStdoutLoggerAt("a11ygate", logging.LevelError)

		appl, err := app.NewApplication(cfg, logger)
		if err != nil {
			return err
		}
		defer appl.Close()

		result, err := appl.Orchestrator.Scan(cmd.Context(), args[0], "cli")
		if err != nil {
			var scanErr *app.ScanError
			if errors.As(err, &scanErr) {
				return fmt.Errorf("%s", scanErr.UserMessage())
			}
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func buildConfig() *app.Config {
	cfg := app.DefaultConfig()
	cfg.LoadEnv()

	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logging.ParseLevel(logLevel)
	}
	if noHistory {
		cfg.HistoryDB = ""
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: error|warn|info|debug (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Disable the sqlite scan archive")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (default from LISTEN_ADDR or :8080)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
