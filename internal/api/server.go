// Package api exposes research runs and stored threads over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gorilla/mux"

	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/researcher/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/researcher/internal/core/error"
	"github.com/Chative-core-poc-v1/researcher/internal/metrics"
	logx "github.com/Chative-core-poc-v1/researcher/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// ResearchRequest is the body of POST /v1/research.
type ResearchRequest struct {
	Messages                []*schema.Message `json:"messages"`
	ThreadID                string            `json:"thread_id,omitempty"`
	InitialSearchQueryCount *int              `json:"initial_search_query_count,omitempty"`
	MaxResearchLoops        *int              `json:"max_research_loops,omitempty"`
}

// ResearchResponse wraps a run result with its final answer.
type ResearchResponse struct {
	Answer string `json:"answer"`
	*model.ResearchResult
}

// ThreadResponse is the body of GET /v1/threads/{id}.
type ThreadResponse struct {
	ThreadID string            `json:"thread_id"`
	Messages []*schema.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server routes HTTP requests to the research runner.
type Server struct {
	runner  graph.Runner
	threads *conversations.ThreadManager
	router  *mux.Router
}

func NewServer(runner graph.Runner, threads *conversations.ThreadManager) *Server {
	s := &Server{runner: runner, threads: threads, router: mux.NewRouter()}

	s.router.HandleFunc("/v1/research", s.handleResearch).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/threads/{id}", s.handleGetThread).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/threads/{id}", s.handleDeleteThread).Methods(http.MethodDelete)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler())
	s.router.Use(instrument)

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logx.Info().Msg("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logx.Info().Msg("Server exited")
	return nil
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var body ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errx.New(fmt.Errorf("decode request: %w", err), http.StatusBadRequest, errx.BadRequestMessage))
		return
	}

	out, err := s.runner.Run(r.Context(), model.ResearchRequest{
		ThreadID:                body.ThreadID,
		Messages:                body.Messages,
		InitialSearchQueryCount: body.InitialSearchQueryCount,
		MaxResearchLoops:        body.MaxResearchLoops,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, ResearchResponse{Answer: out.Answer(), ResearchResult: out})
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.threads.Enabled() {
		writeError(w, errx.New(fmt.Errorf("thread storage is not configured"), http.StatusNotFound, errx.RedisNotFoundMessage))
		return
	}

	history, err := s.threads.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(history.Messages) == 0 {
		writeError(w, errx.New(fmt.Errorf("thread %q not found", id), http.StatusNotFound, errx.RedisNotFoundMessage))
		return
	}
	writeJSONResponse(w, http.StatusOK, ThreadResponse{ThreadID: id, Messages: history.Messages})
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cleared, err := s.threads.Clear(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !cleared {
		writeError(w, errx.New(fmt.Errorf("thread %q not found", id), http.StatusNotFound, errx.RedisNotFoundMessage))
		return
	}
	logx.Info().Str("thread_id", id).Msg("Thread cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeError(w http.ResponseWriter, err error) {
	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		logx.Warn().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSONResponse(w, status, errorResponse{Error: errx.MessageOf(err)})
}

func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logx.Warn().Err(err).Msg("Failed to write response")
	}
}

// ====================== Middleware ======================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request counts and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
