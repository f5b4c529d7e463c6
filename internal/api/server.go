// Package api serves the review pipeline over HTTP with per-user sessions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Yates-Labs/reviewlens/internal/logging"
	"github.com/Yates-Labs/reviewlens/internal/narrative"
	"github.com/Yates-Labs/reviewlens/internal/orchestrator"
	"github.com/Yates-Labs/reviewlens/internal/rag"
	"github.com/Yates-Labs/reviewlens/internal/resilience"
	"github.com/Yates-Labs/reviewlens/internal/session"
)

// Pipeline is the subset of the orchestrator the server needs.
type Pipeline interface {
	Ask(ctx context.Context, question string) (*orchestrator.Result, error)
	Retrieve(ctx context.Context, question string, all bool) ([]rag.ReviewMatch, error)
}

const (
	// DefaultHistoryPage is the page size when no limit is given.
	DefaultHistoryPage = 20

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes = 1 << 20
)

// Server routes HTTP requests to the pipeline and the session store.
type Server struct {
	router   chi.Router
	pipeline Pipeline
	sessions *session.Store
	logger   *zap.Logger
}

// NewServer builds the router. Sessions live as long as the server.
func NewServer(pipeline Pipeline, sessions *session.Store, logger *zap.Logger) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	if sessions == nil {
		sessions = session.NewStore(session.DefaultMaxTurns, session.DefaultMaxSessions)
	}
	srv := &Server{
		router:   chi.NewRouter(),
		pipeline: pipeline,
		sessions: sessions,
		logger:   logging.OrNop(logger).Named("api"),
	}
	srv.routes()
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr))
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/sessions", s.handleCreateSession)
	s.router.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/history", s.handleHistory)
		r.Delete("/", s.handleDeleteSession)
	})
	s.router.Post("/export", s.handleExport)
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("session not found"))
		return nil, false
	}
	return sess, true
}

// decodeBody reads a JSON body of at most MaxBodyBytes into v, writing the
// error response itself when it fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func pageParams(r *http.Request) (offset, limit int, err error) {
	limit = DefaultHistoryPage
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
	}
	return offset, limit, nil
}

// statusFor maps pipeline failures to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyQuestion):
		return http.StatusBadRequest
	case resilience.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, rag.ErrEmbeddingService),
		errors.Is(err, rag.ErrSearchService),
		errors.Is(err, narrative.ErrAnswerGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
