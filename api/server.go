// Package api provides the local HTTP API server for cryptoverlay.
//
// It exposes the latest aggregated prices, manual refresh, alert rules,
// price history and a WebSocket stream of every pass outcome.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/cryptoverlay/internal/alerts"
	"github.com/seenimoa/cryptoverlay/internal/config"
	"github.com/seenimoa/cryptoverlay/internal/display"
	"github.com/seenimoa/cryptoverlay/internal/metrics"
	"github.com/seenimoa/cryptoverlay/internal/store"
	"github.com/seenimoa/cryptoverlay/pkg/models"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// Refresher is the part of the background refresher the API drives.
type Refresher interface {
	RequestRefresh(ctx context.Context, symbols []string) bool
	InFlight() bool
	Last() (models.Update, bool)
}

// RuleLister lists the configured alert rules.
type RuleLister interface {
	Rules() []alerts.Rule
}

// HistoryReader reads stored quotes for a symbol, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, symbol string, limit int) ([]store.Record, error)
}

// SnapshotReader reads the last update persisted by an earlier process.
type SnapshotReader interface {
	Latest(ctx context.Context) (models.Update, error)
	Quote(ctx context.Context, symbol string) (models.SymbolQuote, error)
}

// DisplayController switches the terminal display mode.
type DisplayController interface {
	Mode() display.Mode
	SetMode(m display.Mode)
	Toggle() display.Mode
}

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	cfgPath   string
	refresher Refresher
	rules     RuleLister
	history   HistoryReader
	snapshot  SnapshotReader
	display   DisplayController
	metrics   *metrics.Collector
	wsHub     *WSHub
	ui        fs.FS
	log       logrus.FieldLogger
	version   string

	mu      sync.RWMutex
	symbols []string
	baseCtx context.Context

	saveMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithRules exposes alert rules on /api/v1/alerts.
func WithRules(r RuleLister) Option {
	return func(s *Server) { s.rules = r }
}

// WithHistory exposes stored quotes on /api/v1/history/{symbol}.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

// WithSnapshot serves the persisted snapshot until this process completes
// its first pass.
func WithSnapshot(r SnapshotReader) Option {
	return func(s *Server) { s.snapshot = r }
}

// WithDisplay exposes the display mode on /api/v1/display.
func WithDisplay(d DisplayController) Option {
	return func(s *Server) { s.display = d }
}

// WithMetrics instruments every route and mounts /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithUI serves the browser overlay from fsys at "/".
func WithUI(fsys fs.FS) Option {
	return func(s *Server) { s.ui = fsys }
}

// WithConfigPath makes symbol updates persist to path.
func WithConfigPath(path string) Option {
	return func(s *Server) { s.cfgPath = path }
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, ref Refresher, opts ...Option) *Server {
	srv := &Server{
		cfg:       cfg,
		refresher: ref,
		wsHub:     NewWSHub(),
		log:       logrus.StandardLogger(),
		version:   "dev",
		symbols:   utils.NormalizeSymbols(cfg.Symbols),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// Symbols returns the current watchlist. The scheduler reads it every tick.
func (s *Server) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.symbols...)
}

func (s *Server) setSymbols(syms []string) {
	s.mu.Lock()
	s.symbols = syms
	s.mu.Unlock()
}

func (s *Server) refreshContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. Refreshes requested over HTTP run under ctx, not the request.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.InstrumentHandler)
	}

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket is outside the timeout group; the connection outlives the handler.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/health", s.handleHealth)

			// Prices
			r.Get("/prices", s.handlePrices)
			r.Get("/prices/{symbol}", s.handlePrice)
			r.Post("/refresh", s.handleRefresh)

			// Alerts
			r.Get("/alerts", s.handleAlerts)

			// History
			r.Get("/history/{symbol}", s.handleHistory)

			// Configuration
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/secrets", s.handleGetSecrets)
			r.Get("/symbols", s.handleGetSymbols)
			r.Put("/symbols", s.handleUpdateSymbols)
			r.Get("/display", s.handleGetDisplay)
			r.Put("/display", s.handleSetDisplay)
			r.Post("/display/toggle", s.handleToggleDisplay)
		})
	})

	if s.ui != nil {
		s.mountUI(r, s.ui)
	}

	return r
}

// mountUI serves the embedded overlay. Unknown paths fall back to index.html.
func (s *Server) mountUI(r chi.Router, distFS fs.FS) {
	fileServer := http.FileServerFS(distFS)

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		rPath := strings.TrimPrefix(r.URL.Path, "/")
		if rPath == "" {
			rPath = "index.html"
		}

		f, err := distFS.Open(rPath)
		if err != nil {
			serveIndexHTML(w, distFS)
			return
		}
		f.Close()

		w.Header().Set("Cache-Control", "no-cache")
		fileServer.ServeHTTP(w, r)
	})
}

// serveIndexHTML reads and serves the embedded index.html.
func serveIndexHTML(w http.ResponseWriter, distFS fs.FS) {
	data, err := fs.ReadFile(distFS, "index.html")
	if err != nil {
		http.Error(w, "overlay not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// requestLogger logs one line per request through logrus.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("http request")
		})
	}
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	InFlight  bool      `json:"in_flight"`
	LastPass  *PassInfo `json:"last_pass"`
	WSClients int       `json:"ws_clients"`
}

// PassInfo summarises a completed pass.
type PassInfo struct {
	PassID      string    `json:"pass_id"`
	CompletedAt time.Time `json:"completed_at"`
	Symbols     int       `json:"symbols"`
}

// RefreshRequest is the optional body for POST /api/v1/refresh.
type RefreshRequest struct {
	Symbols []string `json:"symbols,omitempty"`
}

// RefreshResponse is returned when a refresh starts.
type RefreshResponse struct {
	Started bool     `json:"started"`
	Symbols []string `json:"symbols"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   s.version,
		InFlight:  s.refresher.InFlight(),
		WSClients: s.wsHub.ClientCount(),
	}
	if u, ok := s.refresher.Last(); ok {
		resp.LastPass = &PassInfo{PassID: u.PassID, CompletedAt: u.CompletedAt, Symbols: len(u.Symbols)}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// lastUpdate returns the refresher's last update, falling back to the
// persisted snapshot before the first pass.
func (s *Server) lastUpdate(ctx context.Context) (models.Update, bool) {
	if u, ok := s.refresher.Last(); ok {
		return u, true
	}
	if s.snapshot == nil {
		return models.Update{}, false
	}
	u, err := s.snapshot.Latest(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.WithError(err).Warn("snapshot read failed")
		}
		return models.Update{}, false
	}
	return u, true
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	u, ok := s.lastUpdate(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "no prices yet")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: u})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := utils.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	u, ok := s.refresher.Last()
	if !ok {
		s.handleSnapshotQuote(w, r, symbol)
		return
	}
	q, ok := u.Result[symbol]
	if !ok {
		writeError(w, http.StatusNotFound, "symbol not in last pass: "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: q})
}

func (s *Server) handleSnapshotQuote(w http.ResponseWriter, r *http.Request, symbol string) {
	if s.snapshot == nil {
		writeError(w, http.StatusNotFound, "no prices yet")
		return
	}
	q, err := s.snapshot.Quote(r.Context(), symbol)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "no prices yet")
	case err != nil:
		s.log.WithError(err).WithField("symbol", symbol).Warn("snapshot read failed")
		writeError(w, http.StatusNotFound, "no prices yet")
	default:
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: q})
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	syms := utils.NormalizeSymbols(req.Symbols)
	if len(syms) == 0 {
		syms = s.Symbols()
	}

	if !s.refresher.RequestRefresh(s.refreshContext(), syms) {
		writeError(w, http.StatusConflict, "refresh already in flight")
		return
	}
	writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    RefreshResponse{Started: true, Symbols: syms},
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	rules := []alerts.Rule{}
	if s.rules != nil {
		rules = s.rules.Rules()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rules})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history storage is not enabled")
		return
	}

	symbol := utils.NormalizeSymbol(chi.URLParam(r, "symbol"))
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1-1000")
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), symbol, limit)
	if err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("history query failed")
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: records})
}

// ============================================================
// Refresher consumer
// ============================================================

// OnUpdate streams a completed pass to WebSocket clients.
func (s *Server) OnUpdate(u models.Update) {
	s.wsHub.Broadcast(WSMessage{Type: MsgPrices, Data: u})
}

// OnError streams a failed pass to WebSocket clients.
func (s *Server) OnError(msg string) {
	s.wsHub.Broadcast(WSMessage{Type: MsgError, Data: msg})
}

// PublishAlert streams a fired alert to WebSocket clients.
func (s *Server) PublishAlert(a alerts.Alert) {
	s.wsHub.Broadcast(WSMessage{Type: MsgAlert, Data: AlertMessage{Alert: a, Message: a.Message()}})
}

// AlertMessage is the payload of an "alert" WebSocket message.
type AlertMessage struct {
	alerts.Alert
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
