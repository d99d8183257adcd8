package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
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
	oracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_requests_total",
			Help: "Total number of oracle API requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	oracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "oracle_request_duration_seconds",
			Help: "Duration of oracle API requests",
		},
		[]string{"method", "endpoint"},
	)
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_submissions_total",
			Help: "Total number of verified submissions",
		},
		[]string{"winner"},
	)
	payoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_payouts_total",
			Help: "Total number of winning payouts by outcome",
		},
		[]string{"payout"},
	)
	submissionsInDB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_submissions_in_database_total",
			Help: "Total number of submissions in database",
		},
	)
)

func init() {
	prometheus.MustRegister(oracleRequestsTotal)
	prometheus.MustRegister(oracleRequestDuration)
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(payoutsTotal)
	prometheus.MustRegister(submissionsInDB)
}

const defaultListLimit = 50

type config struct {
	Port           string
	DatabaseURL    string
	AcceptedHashes []string
	SignerURL      string
	SignerToken    string
	LogLevel       string
}

func loadConfig() config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8084")
	v.SetDefault("LOG_LEVEL", "info")

	var hashes []string
	for _, h := range strings.Split(v.GetString("ORACLE_ACCEPTED_HASHES"), ",") {
		if h = strings.TrimSpace(h); h != "" {
			hashes = append(hashes, h)
		}
	}
	return config{
		Port:           v.GetString("PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		AcceptedHashes: hashes,
		SignerURL:      v.GetString("ORACLE_SIGNER_URL"),
		SignerToken:    v.GetString("ORACLE_SIGNER_TOKEN"),
		LogLevel:       v.GetString("LOG_LEVEL"),
	}
}

func main() {
	cfg := loadConfig()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "oracle").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	var store SubmissionStore
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, keeping submissions in memory")
		store = NewMemoryStore()
	} else {
		pg, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer pg.Close()
		if err := pg.CreateTables(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to create tables")
		}
		logger.Info().Msg("Connected to PostgreSQL database")
		store = pg

		// Start metrics updater
		go updateMetrics(ctx, pg)
	}

	if len(cfg.AcceptedHashes) == 0 {
		logger.Warn().Msg("ORACLE_ACCEPTED_HASHES is empty, no submission can win")
	}
	var signer Signer
	if cfg.SignerURL != "" {
		signer = NewHTTPSigner(cfg.SignerURL, cfg.SignerToken)
	}

	oracle := NewOracle(NewHashListVerifier(cfg.AcceptedHashes), signer, store, logger)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newRouter(oracle, store, logger),
	}

	// Graceful shutdown
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Oracle Service starting")
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

type api struct {
	oracle *Oracle
	store  SubmissionStore
	logger zerolog.Logger
}

func newRouter(oracle *Oracle, store SubmissionStore, logger zerolog.Logger) *mux.Router {
	a := &api{oracle: oracle, store: store, logger: logger}
	router := mux.NewRouter()

	// Submission endpoints
	router.HandleFunc("/submissions", a.handleCreateSubmission).Methods("POST")
	router.HandleFunc("/submissions", a.handleListSubmissions).Methods("GET")
	router.HandleFunc("/submissions/{id}", a.handleGetSubmission).Methods("GET")
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())
	return router
}

// observe records the request outcome and duration.
func observe(method, endpoint string, start time.Time, status *string) {
	oracleRequestsTotal.WithLabelValues(method, endpoint, *status).Inc()
	oracleRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}

func (a *api) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	status := "error"
	defer observe("POST", "/submissions", time.Now(), &status)

	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := a.oracle.Process(r.Context(), req)
	switch {
	case errors.Is(err, ErrMissingSubmission), errors.Is(err, ErrInvalidHash):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrDuplicateSubmission):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		a.logger.Error().Err(err).Msg("Failed to process submission")
		writeError(w, http.StatusInternalServerError, "Failed to process submission")
		return
	}

	status = "success"
	writeJSONResponse(w, http.StatusCreated, sub)
}

func (a *api) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	status := "error"
	defer observe("GET", "/submissions", time.Now(), &status)

	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, 500)
	}

	subs, err := a.store.List(r.Context(), limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to list submissions")
		writeError(w, http.StatusInternalServerError, "Failed to query submissions")
		return
	}

	status = "success"
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

func (a *api) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	status := "error"
	defer observe("GET", "/submissions/:id", time.Now(), &status)

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid submission ID")
		return
	}

	sub, err := a.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Submission not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query submission")
		return
	}

	status = "success"
	writeJSONResponse(w, http.StatusOK, sub)
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Check database connection
	if err := a.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database connection failed")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func updateMetrics(ctx context.Context, pg *PostgresStore) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := pg.Count(ctx); err == nil {
				submissionsInDB.Set(float64(n))
			}
		}
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSONResponse(w, status, map[string]string{"error": message})
}
