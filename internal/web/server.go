package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/enclave-network/nodepool/internal/ledger"
	"github.com/enclave-network/nodepool/internal/logger"
	"github.com/enclave-network/nodepool/internal/market"
	"github.com/enclave-network/nodepool/internal/state"
	"github.com/enclave-network/nodepool/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes read-only pool, position, and order data over HTTP.
// All mutations go through the engine API; the server never writes.
type WebServer struct {
	router *mux.Router
	port   string
	ledger *ledger.Ledger
	market *market.Market
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, l *ledger.Ledger, m *market.Market) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		ledger: l,
		market: m,
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
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/holders", ws.handleGetHolders).Methods("GET")
	api.HandleFunc("/pools/{id}/pending", ws.handleGetPending).Methods("GET")
	api.HandleFunc("/pools/{id}/orders", ws.handleGetPoolOrders).Methods("GET")
	api.HandleFunc("/pools/{id}/unlocked", ws.handleGetUnlocked).Methods("GET")
	api.HandleFunc("/pools/{id}/events", ws.handleGetPoolEvents).Methods("GET")
	api.HandleFunc("/pools/{id}/snapshots", ws.handleGetPoolSnapshots).Methods("GET")
	api.HandleFunc("/orders/{id}", ws.handleGetOrder).Methods("GET")
	api.HandleFunc("/holders/{id}/orders", ws.handleGetHolderOrders).Methods("GET")

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
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	pools := ws.ledger.Pools()
	live := 0
	for _, p := range pools {
		if p.State == types.PoolLive {
			live++
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !dbHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"pools": map[string]interface{}{
			"total": len(pools),
			"live":  live,
		},
		"database": map[string]interface{}{
			"healthy": dbHealthy,
		},
		"runtime": map[string]interface{}{
			"goroutines":      runtime.NumGoroutine(),
			"memory_alloc_mb": memStats.Alloc / 1024 / 1024,
			"gc_cycles":       memStats.NumGC,
		},
	}

	ws.writeJSONResponse(w, httpStatus, response)
}

// handleGetPools returns all pools
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.ledger.Pools())
}

// handleGetPool returns one pool with its holders and active orders
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	pool, err := ws.ledger.Pool(poolID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	holders, err := ws.ledger.Holders(poolID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve holders")
		return
	}

	response := map[string]interface{}{
		"pool":          pool,
		"holders":       holders,
		"active_orders": ws.market.ActiveOrdersForPool(poolID),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetHolders returns the positions in one pool
func (ws *WebServer) handleGetHolders(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	holders, err := ws.ledger.Holders(poolID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, holders)
}

// handleGetPending returns a holder's pending production (and optionally one
// reward token's pending amount) in a pool.
// Query params: holder (required), token (optional).
func (ws *WebServer) handleGetPending(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	holder := types.HolderID(r.URL.Query().Get("holder"))
	if holder == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Query parameter 'holder' is required")
		return
	}

	produced, err := ws.ledger.PendingProduced(poolID, holder)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	response := map[string]interface{}{
		"pool_id":          poolID,
		"holder":           holder,
		"pending_produced": produced.String(),
	}

	if token := r.URL.Query().Get("token"); token != "" {
		reward, err := ws.ledger.PendingReward(poolID, holder, token)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Failed to compute pending reward")
			return
		}
		response["token"] = token
		response["pending_reward"] = reward.String()
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolOrders returns the pool's active sell orders
func (ws *WebServer) handleGetPoolOrders(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.market.ActiveOrdersForPool(poolID))
}

// handleGetUnlocked returns the pool's currently withdrawable amount
func (ws *WebServer) handleGetUnlocked(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	amount, err := ws.ledger.UnlockedAmount(poolID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	response := map[string]interface{}{
		"pool_id":  poolID,
		"unlocked": amount.String(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolEvents returns recent journaled events for one pool
func (ws *WebServer) handleGetPoolEvents(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	limit := 25
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	eventsList, err := state.RecentEvents(uint64(poolID), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to retrieve pool events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, eventsList)
}

// handleGetPoolSnapshots returns recent journaled snapshots for one pool
func (ws *WebServer) handleGetPoolSnapshots(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	snapshots, err := state.RecentSnapshots(uint64(poolID), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to retrieve pool snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snapshots)
}

// handleGetOrder returns one order by id
func (ws *WebServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := ws.market.Order(types.OrderID(orderID))
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Order not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, order)
}

// handleGetHolderOrders returns a holder's active orders across all pools.
// Pass history=true to include cancelled and filled orders.
func (ws *WebServer) handleGetHolderOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	holder := types.HolderID(vars["id"])

	if r.URL.Query().Get("history") == "true" {
		ws.writeJSONResponse(w, http.StatusOK, ws.market.OrderHistoryForSeller(holder))
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, ws.market.OrdersForSeller(holder))
}

// poolIDFromRequest parses the {id} path variable, writing the error response
// itself on failure.
func (ws *WebServer) poolIDFromRequest(w http.ResponseWriter, r *http.Request) (types.PoolID, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return 0, false
	}
	return types.PoolID(id), true
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
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
