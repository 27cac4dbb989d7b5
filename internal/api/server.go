// Package api provides the HTTP and WebSocket server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quantdesk/template-backend/internal/engine"
	"github.com/quantdesk/template-backend/internal/importer"
	"github.com/quantdesk/template-backend/internal/journal"
	"github.com/quantdesk/template-backend/internal/store"
	"github.com/quantdesk/template-backend/pkg/types"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the HTTP/WebSocket API server
type Server struct {
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub
	store      *store.Store
	engine     *engine.Engine
	importer   *importer.Importer
	analyzer   *journal.Analyzer
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, config *types.ServerConfig, st *store.Store, eng *engine.Engine, imp *importer.Importer, hub *Hub) *Server {
	server := &Server{
		logger:   logger,
		config:   config,
		router:   mux.NewRouter(),
		hub:      hub,
		store:    st,
		engine:   eng,
		importer: imp,
		analyzer: journal.NewAnalyzer(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	// Recommendation endpoints
	s.router.HandleFunc("/api/v1/recommend/{type}", s.handleRecommend).Methods("GET")
	s.router.HandleFunc("/api/v1/recommendations", s.handleRecommendPair).Methods("GET")

	// Template endpoints
	s.router.HandleFunc("/api/v1/templates/{type}", s.handleListTemplates).Methods("GET")
	s.router.HandleFunc("/api/v1/templates/{type}/{name}", s.handleGetTemplate).Methods("GET")
	s.router.HandleFunc("/api/v1/templates", s.handleUpsertTemplate).Methods("POST")
	s.router.HandleFunc("/api/v1/templates/{type}/{name}", s.handleDeleteTemplate).Methods("DELETE")

	// Platform folder import/export
	s.router.HandleFunc("/api/v1/import", s.handleImport).Methods("POST")
	s.router.HandleFunc("/api/v1/export/{type}/{name}", s.handleExport).Methods("POST")

	// Backtest results feed the performance-based adjustment
	s.router.HandleFunc("/api/v1/backtests", s.handleRecordBacktest).Methods("POST")

	// Trade journal
	s.router.HandleFunc("/api/v1/journal/trades", s.handleAddTrade).Methods("POST")
	s.router.HandleFunc("/api/v1/journal/trades", s.handleListTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/journal/summary", s.handleJournalSummary).Methods("GET")

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	// WebSocket
	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting API server", zap.String("addr", addr))

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
		"time":    time.Now().Unix(),
	})
}

// handleRecommend serves a single-family recommendation. Conditions come
// from explicit query overrides, from raw market readings, or from the
// clock when neither is supplied.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	templateType, ok := parseTemplateType(mux.Vars(r)["type"])
	if !ok {
		http.Error(w, "unknown template type", http.StatusBadRequest)
		return
	}

	override, raw := parseConditionParams(r)

	start := time.Now()
	rec := s.engine.Recommend(r.Context(), templateType, override, raw)
	recommendationDuration.Observe(time.Since(start).Seconds())
	recommendationsTotal.WithLabelValues(string(templateType), rec.Tier).Inc()
	if rec.IsFallback {
		fallbacksTotal.Inc()
	}

	s.hub.BroadcastRecommendation(rec)
	s.writeJSON(w, rec)
}

// handleRecommendPair serves both template families against one shared set
// of market conditions.
func (s *Server) handleRecommendPair(w http.ResponseWriter, r *http.Request) {
	override, raw := parseConditionParams(r)

	start := time.Now()
	pair := s.engine.RecommendPair(r.Context(), override, raw)
	recommendationDuration.Observe(time.Since(start).Seconds())

	for _, rec := range []*types.Recommendation{pair.Flazh, pair.ATM} {
		recommendationsTotal.WithLabelValues(string(rec.OriginalTemplate.Type), rec.Tier).Inc()
		if rec.IsFallback {
			fallbacksTotal.Inc()
		}
		s.hub.BroadcastRecommendation(rec)
	}

	s.writeJSON(w, pair)
}

// handleListTemplates returns all stored templates of a family.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templateType, ok := parseTemplateType(mux.Vars(r)["type"])
	if !ok {
		http.Error(w, "unknown template type", http.StatusBadRequest)
		return
	}

	templates, err := s.store.All(r.Context(), templateType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

// handleGetTemplate returns a single template by family and name.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	templateType, ok := parseTemplateType(vars["type"])
	if !ok {
		http.Error(w, "unknown template type", http.StatusBadRequest)
		return
	}

	tmpl, err := s.store.GetTemplate(r.Context(), templateType, vars["name"])
	if err == store.ErrNotFound {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, tmpl)
}

// handleUpsertTemplate creates or replaces a template.
func (s *Server) handleUpsertTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl types.Template
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.store.UpsertTemplate(r.Context(), &tmpl); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.hub.BroadcastTemplateUpdate(&tmpl)
	s.writeJSON(w, &tmpl)
}

// handleDeleteTemplate removes a stored template.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	templateType, ok := parseTemplateType(vars["type"])
	if !ok {
		http.Error(w, "unknown template type", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteTemplate(r.Context(), templateType, vars["name"]); err != nil {
		if err == store.ErrNotFound {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleImport scans the platform template folders and upserts everything
// that parses.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		http.Error(w, "importer not configured", http.StatusServiceUnavailable)
		return
	}

	result, err := s.importer.ImportAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	templatesImportedTotal.Add(float64(result.Imported))
	s.writeJSON(w, result)
}

// handleExport writes a stored template back out as platform XML.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		http.Error(w, "importer not configured", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(r)
	templateType, ok := parseTemplateType(vars["type"])
	if !ok {
		http.Error(w, "unknown template type", http.StatusBadRequest)
		return
	}

	tmpl, err := s.store.GetTemplate(r.Context(), templateType, vars["name"])
	if err == store.ErrNotFound {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.importer.Export(tmpl); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]interface{}{"exported": tmpl.Name})
}

// handleRecordBacktest ingests a backtest run into the performance store.
func (s *Server) handleRecordBacktest(w http.ResponseWriter, r *http.Request) {
	var rec types.BacktestRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.store.RecordBacktest(r.Context(), &rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, &rec)
}

// handleAddTrade records a journaled trade.
func (s *Server) handleAddTrade(w http.ResponseWriter, r *http.Request) {
	var trade types.JournalTrade
	if err := json.NewDecoder(r.Body).Decode(&trade); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}

	if err := s.store.AddTrade(r.Context(), &trade); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.hub.BroadcastJournalUpdate(&trade)
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, &trade)
}

// handleListTrades returns journaled trades ordered by exit time.
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// handleJournalSummary computes performance analytics over the journal.
func (s *Server) handleJournalSummary(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, s.analyzer.Analyze(trades))
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), s.hub, conn)
	s.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// parseTemplateType accepts the family name case-insensitively.
func parseTemplateType(raw string) (types.TemplateType, bool) {
	t := types.TemplateType(strings.ToUpper(raw))
	return t, t.Valid()
}

// parseConditionParams builds an override and/or raw readings from query
// parameters. Explicit condition fields (session, volatility, dayOfWeek,
// trend, volume) form an override that bypasses classification; raw
// readings (volatilityReading, volumeRatio, trendSlope) feed the
// classifier when no override is given.
func parseConditionParams(r *http.Request) (*types.MarketConditions, *types.RawMetrics) {
	q := r.URL.Query()

	var override *types.MarketConditions
	ensure := func() *types.MarketConditions {
		if override == nil {
			override = &types.MarketConditions{Timestamp: time.Now()}
		}
		return override
	}

	if v := q.Get("session"); v != "" {
		ensure().Session = types.Session(strings.ToUpper(v))
	}
	if v := q.Get("volatility"); v != "" {
		ensure().Volatility = types.Volatility(strings.ToUpper(v))
	}
	if v := q.Get("dayOfWeek"); v != "" {
		ensure().DayOfWeek = v
	}
	if v := q.Get("trend"); v != "" {
		ensure().Trend = types.Trend(strings.ToUpper(v))
	}
	if v := q.Get("volume"); v != "" {
		ensure().Volume = types.VolumeLevel(strings.ToUpper(v))
	}
	if v := q.Get("volatilityScore"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ensure().VolatilityScore = f
		}
	}

	var raw *types.RawMetrics
	ensureRaw := func() *types.RawMetrics {
		if raw == nil {
			raw = &types.RawMetrics{}
		}
		return raw
	}

	if v := q.Get("volatilityReading"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ensureRaw().VolatilityReading = f
		}
	}
	if v := q.Get("volumeRatio"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ensureRaw().VolumeRatio = f
		}
	}
	if v := q.Get("trendSlope"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ensureRaw().TrendSlope = f
		}
	}

	return override, raw
}
