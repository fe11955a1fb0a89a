package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/adaptive-amm/apo/internal/logger"
	"github.com/adaptive-amm/apo/internal/state"
	"github.com/adaptive-amm/apo/internal/types"
	"github.com/gorilla/mux"
)

var webLogger = logger.GetForComponent("web_server")

// StatusProvider exposes the engine's observable state to the monitoring
// endpoints without giving the web layer access to engine internals.
type StatusProvider interface {
	Status() types.StatusSnapshot
}

// WebServer handles HTTP requests for engine monitoring
type WebServer struct {
	router     *mux.Router
	port       string
	engine     StatusProvider
	configName string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, engine StatusProvider, configName string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		engine:     engine,
		configName: configName,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/status", ws.handleGetStatus).Methods("GET")
	api.HandleFunc("/decisions", ws.handleGetDecisions).Methods("GET")
	api.HandleFunc("/decisions/latest", ws.handleGetLatestDecision).Methods("GET")
	api.HandleFunc("/decisions/{id}", ws.handleGetDecision).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")
	api.HandleFunc("/performance", ws.handleGetPerformance).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var hasErrors bool

	// Get database connection status
	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	engineStatus := ws.engine.Status()
	if engineStatus.CycleCount == 0 {
		// No cycle has run yet; degraded until the first one completes.
		hasErrors = true
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "apo-adaptive-parameter-optimizer",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"mode":             engineStatus.Mode,
			"emergency_mode":   engineStatus.EmergencyMode,
			"cycle_count":      engineStatus.CycleCount,
		},
	}

	// Set appropriate HTTP status code
	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetStatus returns the engine's live status snapshot
func (ws *WebServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.engine.Status())
}

// handleGetDecisions returns paginated cycle decision data
func (ws *WebServer) handleGetDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	decisions, err := state.GetRecentCycleDecisions(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent decisions")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve decisions")
		return
	}

	summary, err := state.GetOptimizationSummary()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get optimization summary")
		summary = nil
	}

	response := map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
		"limit":     limit,
		"summary":   summary,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetDecision returns a specific cycle decision by ID
func (ws *WebServer) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idStr := vars["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid decision ID")
		return
	}

	decision, err := state.GetCycleDecisionByID(id)
	if err != nil {
		webLogger.Error().Err(err).Int64("decisionId", id).Msg("Failed to get decision")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve decision")
		return
	}
	if decision == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Decision not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, decision)
}

// handleGetLatestDecision returns the most recent cycle decision
func (ws *WebServer) handleGetLatestDecision(w http.ResponseWriter, r *http.Request) {
	decisions, err := state.GetRecentCycleDecisions(1)
	if err != nil || len(decisions) == 0 {
		webLogger.Error().Err(err).Msg("Failed to get latest decision")
		ws.writeErrorResponse(w, http.StatusNotFound, "No decisions found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, decisions[0])
}

// handleGetParameters returns the active optimizer configuration and
// the currently deployed parameter set
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	params, err := state.LoadActiveOptimizerParameters(ws.configName)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get optimizer parameters")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve optimizer parameters")
		return
	}

	deployed, err := state.LoadActiveDeployedParameters()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get deployed parameters")
	}

	response := map[string]interface{}{
		"optimizer_parameters": params,
		"deployed_parameters":  deployed,
		"timestamp":            time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPerformance returns aggregated performance metrics
func (ws *WebServer) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	summary, err := state.GetPerformanceSummary()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get performance summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance summary")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	records, err := state.GetRecentPerformanceRecords(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get performance records")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance records")
		return
	}

	response := map[string]interface{}{
		"summary": summary,
		"records": records,
		"count":   len(records),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
