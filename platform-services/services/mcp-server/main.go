package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Prometheus metrics
var (
	mcpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_requests_total",
			Help: "Total number of MCP requests",
		},
		[]string{"method", "status"},
	)
	mcpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "mcp_request_duration_seconds",
			Help: "Duration of MCP requests",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(mcpRequestsTotal)
	prometheus.MustRegister(mcpRequestDuration)
}

func main() {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ASSISTANT_URL", "http://assistant:3000")
	v.SetDefault("ORACLE_URL", "http://oracle-service:8084")

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "mcp-server").Logger()

	gateway := NewGateway(v.GetString("ASSISTANT_URL"), v.GetString("ORACLE_URL"))
	port := v.GetString("PORT")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(gateway, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Graceful shutdown
	go func() {
		logger.Info().Str("port", port).Msg("MCP Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	logger.Info().Msg("Server exited")
}

func newRouter(g *Gateway, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	// MCP endpoints
	router.HandleFunc("/mcp", g.handleMCP(logger)).Methods("POST")
	router.HandleFunc("/tools/list", handleToolsList).Methods("GET")
	router.HandleFunc("/health", handleHealth).Methods("GET")

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())
	return router
}

func (g *Gateway) handleMCP(logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req MCPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONResponse(w, errorResponse(req.ID, -32700, "Parse error"))
			mcpRequestsTotal.WithLabelValues(req.Method, "error").Inc()
			return
		}

		defer func() {
			mcpRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
		}()

		var response MCPResponse
		switch req.Method {
		case "tools/call":
			response = g.handleToolCall(r.Context(), req)
		case "tools/list":
			response = MCPResponse{ID: req.ID, Result: map[string]interface{}{"tools": getAvailableTools()}}
		default:
			response = errorResponse(req.ID, -32601, "Method not found")
		}

		status := "success"
		if response.Error != nil {
			status = "error"
			logger.Warn().Str("method", req.Method).Int("code", response.Error.Code).Msg(response.Error.Message)
		}
		mcpRequestsTotal.WithLabelValues(req.Method, status).Inc()

		writeJSONResponse(w, response)
	}
}

func handleToolsList(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]interface{}{"tools": getAvailableTools()})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, map[string]string{"status": "healthy"})
}

func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
