// Package server exposes the synthesis, voice, health and capability
// endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/health"
	"github.com/book-expert/tts-capability/internal/voices"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"
)

const (
	maxRequestBytes   = 1 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second

	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"
	contentTypeJSON          = "application/json"
	contentTypeWAV           = "audio/wav"
	attachmentSpeech         = "attachment; filename=speech.wav"
)

// Reporter produces the health and capability views.
type Reporter interface {
	Health() health.View
	Capability() health.CapabilityView
}

// VoiceCatalog lists the voices of both engines.
type VoiceCatalog interface {
	NeuralVoices() []voices.NeuralVoice
	ClassicVoices(ctx context.Context) []voices.ClassicVoice
}

// Server represents the HTTP surface of the service.
type Server struct {
	synthesizer core.Synthesizer
	reporter    Reporter
	catalog     VoiceCatalog
	pool        *semaphore.Weighted
	log         *logger.Logger
}

// New creates a Server. At most workers synthesis requests run at once;
// the rest wait for a free slot.
func New(synthesizer core.Synthesizer, reporter Reporter, catalog VoiceCatalog, workers int, log *logger.Logger) *Server {
	return &Server{
		synthesizer: synthesizer,
		reporter:    reporter,
		catalog:     catalog,
		pool:        semaphore.NewWeighted(int64(max(workers, 1))),
		log:         log,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/.well-known/capability.json", s.handleCapability)
	r.Get("/voices", s.handleNeuralVoices)
	r.Get("/voices/espeak", s.handleClassicVoices)
	r.Post("/synthesize", s.handleSynthesize)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	s.log.System("HTTP server listening on %s", listener.Addr())

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	err = <-serveErr
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server stopped: %w", err)
	}

	s.log.System("HTTP server stopped")

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reporter.Health())
}

func (s *Server) handleCapability(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reporter.Capability())
}

func (s *Server) handleNeuralVoices(w http.ResponseWriter, _ *http.Request) {
	list := s.catalog.NeuralVoices()
	if list == nil {
		list = []voices.NeuralVoice{}
	}

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleClassicVoices(w http.ResponseWriter, r *http.Request) {
	list := s.catalog.ClassicVoices(r.Context())
	if list == nil {
		list = []voices.ClassicVoice{}
	}

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req core.SynthesisRequest

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))

	err := decoder.Decode(&req)
	if err != nil {
		s.writeError(w, r, badRequest("malformed request body: %v", err))

		return
	}

	// Reject before queueing so invalid requests never wait for a slot.
	err = req.Validate()
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	err = s.pool.Acquire(r.Context(), 1)
	if err != nil {
		s.log.Warn("Client went away while waiting for a synthesis slot: %v", err)

		return
	}
	defer s.pool.Release(1)

	wav, err := s.synthesizer.Synthesize(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	w.Header().Set(headerContentType, contentTypeWAV)
	w.Header().Set(headerContentDisposition, attachmentSpeech)
	w.WriteHeader(http.StatusOK)

	_, err = w.Write(wav)
	if err != nil {
		s.log.Warn("Failed to write synthesis response: %v", err)
	}
}

// logRequests logs one line per request with its id, status and latency.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrapped, r)

		s.log.Info("[%s] %s %s %d %dB %s",
			middleware.GetReqID(r.Context()), r.Method, r.URL.Path,
			wrapped.Status(), wrapped.BytesWritten(), time.Since(started).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
