package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vivon-labs/vivon/sui-assistant/internal/graph"
)

const errorType = "sui_assistant_error"

// HealthCheck probes a dependency for /health.
type HealthCheck func(ctx context.Context) error

// Options configure the HTTP surface.
type Options struct {
	// Debug adds error details to error responses.
	Debug  bool
	Checks map[string]HealthCheck
}

// Server exposes the chat assistants over HTTP.
type Server struct {
	opts       Options
	assistants map[string]Assistant
	logger     zerolog.Logger
	router     *mux.Router
}

// ChatMessage is a message on the wire.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat/{assistant}.
type ChatRequest struct {
	Messages              []ChatMessage `json:"messages"`
	ShowIntermediateSteps bool          `json:"show_intermediate_steps"`
}

// ChatResponse is returned when intermediate steps are requested.
type ChatResponse struct {
	Messages []ChatMessage `json:"messages"`
	Metadata Metadata      `json:"metadata"`
}

type Metadata struct {
	MessageCount int    `json:"messageCount"`
	HasToolCalls bool   `json:"hasToolCalls"`
	Mode         string `json:"mode,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Details string `json:"details,omitempty"`
}

// New builds the router. assistants is keyed by the URL name, e.g. "sui_assistant".
func New(opts Options, assistants map[string]Assistant, logger zerolog.Logger) *Server {
	s := &Server{
		opts:       opts,
		assistants: assistants,
		logger:     logger,
		router:     mux.NewRouter(),
	}

	s.router.HandleFunc("/api/chat/{assistant}", s.handleChatHealth).Methods("GET")
	s.router.HandleFunc("/api/chat/{assistant}", s.handleChat).Methods("POST")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
	})
	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return withCORS(s.router)
}

// withCORS permits every origin and answers preflight requests directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, Assistant, bool) {
	name := mux.Vars(r)["assistant"]
	a, ok := s.assistants[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Unknown assistant: " + name, Type: errorType})
	}
	return name, a, ok
}

func (s *Server) handleChatHealth(w http.ResponseWriter, r *http.Request) {
	_, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   a.Service(),
		"mode":      a.Mode(),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name, a, ok := s.lookup(w, r)
	if !ok {
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	logger := s.logger.With().Str("request_id", requestID).Str("assistant", name).Str("mode", a.Mode()).Logger()

	status := "success"
	defer func() {
		chatRequestsTotal.WithLabelValues(name, a.Mode(), status).Inc()
		chatRequestDuration.WithLabelValues(name, a.Mode()).Observe(time.Since(start).Seconds())
	}()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "bad_request"
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Type: errorType, Details: s.details(err)})
		return
	}

	history := make([]graph.Message, 0, len(req.Messages))
	hasUser := false
	for _, m := range req.Messages {
		switch m.Role {
		case string(graph.RoleUser):
			hasUser = true
		case string(graph.RoleAssistant):
		default:
			continue
		}
		history = append(history, graph.Message{Role: graph.Role(m.Role), Content: m.Content})
	}
	if len(history) == 0 {
		status = "bad_request"
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No valid messages provided"})
		return
	}
	if !hasUser {
		status = "bad_request"
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No user message found"})
		return
	}

	if req.ShowIntermediateSteps {
		res, err := a.Answer(r.Context(), history, nil)
		observeTermination(res, err)
		if err != nil {
			status = "error"
			s.writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, s.chatResponse(a, res))
		return
	}

	sink := newStreamSink(w)
	res, err := a.Answer(r.Context(), history, sink)
	observeTermination(res, err)
	if err != nil {
		status = "error"
		if sink.started {
			// headers are gone; the client sees a truncated stream
			logger.Error().Err(err).Msg("stream aborted")
			return
		}
		s.writeError(w, logger, err)
		return
	}
	if !sink.started {
		sink.Write("")
	}
	logger.Info().Dur("duration", time.Since(start)).Int("steps", len(res.Steps)).Msg("chat completed")
}

func (s *Server) chatResponse(a Assistant, res *graph.Result) ChatResponse {
	out := ChatResponse{Messages: make([]ChatMessage, 0, len(res.Messages))}
	for _, m := range res.Messages {
		role := "assistant"
		if m.Role == graph.RoleUser {
			role = "user"
		}
		out.Messages = append(out.Messages, ChatMessage{Role: role, Content: m.Content})
		if m.HasToolCalls() {
			out.Metadata.HasToolCalls = true
		}
	}
	out.Metadata.MessageCount = len(res.Messages)
	if a.Mode() == "development" {
		out.Metadata.Mode = "development_fallback"
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	logger.Error().Err(err).Msg("chat request failed")

	code := http.StatusInternalServerError
	if upstream, ok := graph.IsUpstreamError(err); ok && upstream >= 400 && upstream < 600 {
		code = upstream
	}

	msg := err.Error()
	var nodeErr *graph.NodeError
	if errors.As(err, &nodeErr) {
		msg = nodeErr.Err.Error()
	}
	if msg == "" {
		msg = "An unexpected error occurred"
	}
	writeJSON(w, code, ErrorResponse{Error: msg, Type: errorType, Details: s.details(err)})
}

func (s *Server) details(err error) string {
	if !s.opts.Debug {
		return ""
	}
	return err.Error()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "healthy",
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, check := range s.opts.Checks {
		state := "connected"
		if err := check(ctx); err != nil {
			state = "disconnected"
		}
		health[name] = state
	}

	assistants := make(map[string]string, len(s.assistants))
	for name, a := range s.assistants {
		assistants[name] = a.Mode()
	}
	health["assistants"] = assistants

	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
