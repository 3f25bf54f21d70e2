// Package api exposes the questionnaire, assessment history and chat relay over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/MindScreen/internal/assessment"
	"github.com/BTreeMap/MindScreen/internal/chat"
	"github.com/BTreeMap/MindScreen/internal/flow"
	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DefaultServerAddress is the listen address used when none is configured.
const DefaultServerAddress = ":8080"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server holds the HTTP routes and the services behind them.
type Server struct {
	sessions    *flow.SessionManager
	assessments *assessment.Service
	relay       *chat.Relay
	router      *mux.Router
	addr        string
	newID       func() string
}

// NewServer wires the routes. relay may be nil, in which case the chat routes answer 503.
func NewServer(sessions *flow.SessionManager, assessments *assessment.Service, relay *chat.Relay, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultServerAddress}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		sessions:    sessions,
		assessments: assessments,
		relay:       relay,
		addr:        cfg.Addr,
		newID:       uuid.NewString,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions", s.startHandler).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{sessionID}", s.currentHandler).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{sessionID}/answers", s.answerHandler).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{sessionID}/skip", s.skipHandler).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{sessionID}/previous", s.previousHandler).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{sessionID}/complete", s.completeHandler).Methods(http.MethodPost)
	v1.HandleFunc("/users/{userID}/assessments", s.historyHandler).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userID}/chats", s.chatHistoryHandler).Methods(http.MethodGet)
	v1.HandleFunc("/chat", s.chatHandler).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	})
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server.Run: listen failed", "error", err, "addr", s.addr)
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: shutdown failed", "error", err)
		return err
	}
	return nil
}
