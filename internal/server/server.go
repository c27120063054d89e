// Package server is the HTTP + WebSocket API surface for a11ygate.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/a11ygate/a11ygate/internal/app"
	"github.com/a11ygate/a11ygate/internal/history"
	"github.com/a11ygate/a11ygate/internal/logging"
	"github.com/a11ygate/a11ygate/internal/model"
)

// Server exposes the scan orchestrator over HTTP.
type Server struct {
	cfg      Config
	app      *app.Application
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer creates a Server with its own Application.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = cfg.AppConfig.ListenAddr
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLoggerAt("Server", cfg.AppConfig.LogLevel)
	}

	appl, err := app.NewApplication(cfg.AppConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("building application: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		app:    appl,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.app.Orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scan", s.optionsHandler("GET, POST"))
	r.Options("/scans", s.optionsHandler("GET"))
	r.Options("/scans/{requestID}", s.optionsHandler("GET"))

	r.Post("/scan", s.handleScan)
	r.Get("/scan", s.handleScanUsage)
	r.Get("/ws/scan", s.handleScanWS)

	r.Get("/scans", s.handleListScans)
	r.Get("/scans/{requestID}", s.handleGetScan)

	r.Get("/healthz", s.handleHealthz)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path})

	s.router.ServeHTTP(w, r)
}

// Close shuts down the application and its resources.
func (s *Server) Close() {
	if s.app != nil {
		s.app.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe. Write timeout
// stays unset: a scan can legitimately hold a response open for minutes.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     s,
		ReadTimeout: 15 * time.Second,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// clientIdentity derives the admission identity from the request origin:
// the first X-Forwarded-For hop when present, else the remote address host.
func clientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if id := strings.TrimSpace(first); id != "" {
			return id
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeScanError maps a scan failure onto the wire per the error taxonomy.
func (s *Server) writeScanError(w http.ResponseWriter, err error) {
	var scanErr *app.ScanError
	if !errors.As(err, &scanErr) {
		writeError(w, http.StatusInternalServerError, "Failed to scan website. Please ensure the URL is accessible.")
		return
	}

	status := scanErr.HTTPStatus()
	resp := ErrorResponse{Error: scanErr.UserMessage()}

	switch status {
	case http.StatusBadRequest:
		// client input defect, no correlation data needed
	case http.StatusTooManyRequests:
		resp.RetryAfter = scanErr.RetryAfter
		w.Header().Set("Retry-After", strconv.Itoa(scanErr.RetryAfter))
	default:
		resp.RequestID = scanErr.RequestID
		resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	writeJSON(w, status, resp)
}

// --- HTTP handlers ---

// handleScan godoc
// @Summary Scan a website for accessibility violations
// @Accept json
// @Produce json
// @Param request body ScanRequest true "Target URL"
// @Success 200 {object} model.ScanResult
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /scan [post]
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.app.Orchestrator.Scan(r.Context(), body.URL, clientIdentity(r))
	if err != nil {
		s.writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleScanUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, UsageResponse{Error: `Use POST method with { "url": "..." }`})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListScans godoc
// @Summary List recent scans
// @Produce json
// @Param limit query int false "Max rows"
// @Success 200 {array} history.Summary
// @Router /scans [get]
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if s.app.History == nil {
		writeError(w, http.StatusNotFound, "scan history is disabled")
		return
	}

	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	scans, err := s.app.History.List(r.Context(), limit)
	if err != nil {
		s.logger.Warn("listing scans", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	if scans == nil {
		scans = []history.Summary{}
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	if s.app.History == nil {
		writeError(w, http.StatusNotFound, "scan history is disabled")
		return
	}

	requestID := chi.URLParam(r, "requestID")
	res, err := s.app.History.Get(r.Context(), requestID)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	if err != nil {
		s.logger.Warn("getting scan",
			logging.Field{Key: "request_id", Value: requestID},
			logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to load scan")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// WebSockets

type wsOutcome struct {
	res *model.ScanResult
	err error
}

// handleScanWS runs a scan and streams its state transitions, then a final
// result or error frame.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	identity := clientIdentity(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	events := make(chan app.ProgressEvent, 16)
	done := make(chan wsOutcome, 1)

	go func() {
		res, err := s.app.Orchestrator.ScanStream(r.Context(), target, identity, events)
		close(events)
		done <- wsOutcome{res: res, err: err}
	}()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			// Client gone; the scan runs to completion on its own.
			return
		}
	}

	out := <-done
	if out.err != nil {
		var scanErr *app.ScanError
		resp := ErrorResponse{Error: "Failed to scan website. Please ensure the URL is accessible."}
		if errors.As(out.err, &scanErr) {
			resp = ErrorResponse{
				Error:      scanErr.UserMessage(),
				RequestID:  scanErr.RequestID,
				RetryAfter: scanErr.RetryAfter,
			}
		}
		_ = conn.WriteJSON(map[string]any{"error": resp})
		return
	}
	_ = conn.WriteJSON(map[string]any{"result": out.res})
}
