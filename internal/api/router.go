package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/wordbomb/internal/api/handler"
	"github.com/mcoot/wordbomb/internal/api/middleware"
	"github.com/mcoot/wordbomb/internal/api/sse"
	"github.com/mcoot/wordbomb/internal/api/ws"
	"github.com/mcoot/wordbomb/internal/services/session"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger *slog.Logger
	Runner *session.Runner
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	gameHandler := handler.NewGameHandler(cfg.Runner)
	wsHandler := ws.NewHandler(cfg.Runner, cfg.Logger)
	sseHandler := sse.NewHandler(cfg.Runner, cfg.Logger)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	// API subrouter
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/start", gameHandler.Start).Methods(http.MethodPost)
	api.HandleFunc("/state", gameHandler.State).Methods(http.MethodGet)
	api.HandleFunc("/history", gameHandler.History).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", gameHandler.Match).Methods(http.MethodGet)
	api.HandleFunc("/health", gameHandler.Health).Methods(http.MethodGet)

	// Streaming routes
	r.Handle("/ws", wsHandler).Methods(http.MethodGet)
	r.Handle("/events", sseHandler).Methods(http.MethodGet)

	return r
}
