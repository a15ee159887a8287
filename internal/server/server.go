// Package server exposes pipeline generation and ledger verification over HTTP.
package server

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"svcpipe/internal/core"
	"svcpipe/internal/generator"
	"svcpipe/internal/ledger"
	"svcpipe/pkg/utils"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// LedgerConfig points the server at a ledger file and the key that must have
// signed it.
type LedgerConfig struct {
	Path    string
	Trusted ed25519.PublicKey
}

// Server handles the HTTP API.
type Server struct {
	gen    *generator.Generator
	ledger *LedgerConfig // nil when no ledger is configured
	logger *zap.Logger
}

// New creates a Server. lc may be nil.
func New(gen *generator.Generator, lc *LedgerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{gen: gen, ledger: lc, logger: logger}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/services", s.handleListServices)
	r.Post("/pipelines", s.handleGeneratePipeline)
	r.Get("/ledger/verify", s.handleVerifyLedger)
	return r
}

// Serve answers requests on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("Listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// GET /services
func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	svcs := s.gen.Extractor.ListAll()
	if svcs == nil {
		svcs = []core.ServiceID{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"services": svcs})
}

// PipelineRequest selects the services of a generated document.
type PipelineRequest struct {
	Services     []core.ServiceID `json:"services,omitempty"`
	ChangedFiles []string         `json:"changedFiles,omitempty"`
}

// POST /pipelines
func (s *Server) handleGeneratePipeline(w http.ResponseWriter, r *http.Request) {
	var req PipelineRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Services) > 0 && len(req.ChangedFiles) > 0 {
		writeError(w, http.StatusBadRequest, "set either services or changedFiles, not both")
		return
	}

	var (
		out *generator.Outcome
		err error
	)
	if len(req.ChangedFiles) > 0 {
		out, err = s.gen.RenderChangedFiles(req.ChangedFiles)
	} else {
		out, err = s.gen.Render(req.Services)
	}
	if err != nil {
		s.logger.Error("Generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id := uuid.NewString()
	s.logger.Info("Pipeline generated",
		zap.String("id", id),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int("services", len(out.Services)))

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("X-Pipeline-ID", id)
	w.Header().Set("X-Document-SHA256", utils.HashBytes(out.Document))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Document)
}

// GET /ledger/verify
//
// The file is re-read on every request so entries appended by other
// processes are covered.
func (s *Server) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, "no ledger configured")
		return
	}
	l, err := ledger.Open(s.ledger.Path)
	if err != nil {
		s.logger.Error("Reading ledger failed", zap.String("path", s.ledger.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := l.VerifyChain(s.ledger.Trusted); err != nil {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"entries": l.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
