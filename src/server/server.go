package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/engine"
	"stockbot/src/monitoring"
)

// Server is the operator surface: read-only status queries plus signal
// approval and start/stop of the engine.
type Server struct {
	engine *engine.Engine
}

func New(eng *engine.Engine) *Server {
	return &Server{engine: eng}
}

// Routes builds the operator API router.
func (s *Server) Routes(operatorTokenHash string) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write failed")
		}
	})
	r.Method(http.MethodGet, "/metrics", monitoring.Handler())

	r.Get("/status", s.handleStatus)
	r.Get("/positions", s.handlePositions)
	r.Get("/signals/pending", s.handlePendingSignals)

	r.Group(func(r chi.Router) {
		r.Use(requireOperatorToken(operatorTokenHash))
		r.Post("/signals/{token}/approve", s.handleApprove)
		r.Post("/signals/{token}/reject", s.handleReject)
		r.Post("/bot/start", s.handleStart)
		r.Post("/bot/stop", s.handleStop)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Positions())
}

func (s *Server) handlePendingSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.PendingSignals())
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	found, err := s.engine.ApproveSignal(r.Context(), token)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "signal not found or already resolved"})
		return
	}
	if err != nil {
		logger.WithError(err).WithField("token", token).Error("approved signal failed to execute")
		writeJSON(w, http.StatusOK, map[string]string{"status": "approved", "execution": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if !s.engine.RejectSignal(r.Context(), token) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "signal not found or already resolved"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.engine.SetRunning(r.Context(), true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.SetRunning(r.Context(), false)
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to write response")
	}
}

// Start runs the operator API until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, port, operatorTokenHash string) {
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(operatorTokenHash),
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down operator API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
