// Package server exposes pulpit over HTTP: a JSON API for uploads, lookups
// and searches, a WebSocket endpoint for live sermon audio, a read-only
// WebSocket feed for remote viewers, health checks and Prometheus metrics.
//
// Errors are returned as JSON objects of the form {"detail": "..."}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/pulpit/internal/announce"
	"github.com/MrWong99/pulpit/internal/health"
	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/resolve"
	"github.com/MrWong99/pulpit/internal/stream"
	"github.com/MrWong99/pulpit/pkg/bible"
	"github.com/MrWong99/pulpit/pkg/provider/stt"
)

// ErrSpeechUnavailable is returned by a SessionStarter when no speech
// recogniser is configured.
var ErrSpeechUnavailable = stt.ErrNotAvailable

// ErrRebuildBusy is returned by a Rebuild func while an earlier rebuild is
// still running. The handler answers it with 409.
var ErrRebuildBusy = errors.New("server: index rebuild already in progress")

// defaultMaxUpload bounds the size of an uploaded audio file.
const defaultMaxUpload = 64 << 20

// SessionStarter creates streaming sessions. The returned controller is
// owned by the caller, who must Close it.
type SessionStarter interface {
	StartSession(transport string, emit stream.Emitter) (*stream.Controller, error)
}

// Rebuilder recomputes the verse embedding index and returns the number of
// indexed verses.
type Rebuilder func(ctx context.Context) (int, error)

// Config holds the dependencies of a [Server]. Store and Resolver are
// required; everything else may be left nil to disable the feature.
type Config struct {
	Store    bible.Store
	Resolver *resolve.Resolver

	// Sessions starts live transcription sessions.
	Sessions SessionStarter

	// STT transcribes uploaded files. STTModel is reported by the status
	// endpoint.
	STT      stt.Provider
	STTModel string

	// Rebuild backs POST /api/rebuild-index.
	Rebuild Rebuilder

	// Hub feeds /ws/remote. RemotePIN, when set, must be presented by remote
	// viewers before they receive anything.
	Hub       *announce.Hub
	RemotePIN string

	// Health checks back /readyz.
	Health []health.Checker

	// MCP, when set, is mounted at /mcp.
	MCP http.Handler

	// MaxUploadBytes bounds uploaded audio. Default: 64 MiB.
	MaxUploadBytes int64

	// CertFile and KeyFile enable HTTPS when both are set.
	CertFile string
	KeyFile  string

	Metrics *observe.Metrics
}

// Server is the HTTP surface. It is safe for concurrent use.
type Server struct {
	cfg Config
	mux *http.ServeMux
}

// New creates a Server and registers its routes.
func New(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	m := s.mux
	m.HandleFunc("POST /api/speech/transcribe", s.handleTranscribe)
	m.HandleFunc("GET /api/speech/status", s.handleSpeechStatus)
	m.HandleFunc("POST /api/search/direct", s.handleDirectSearch)
	m.HandleFunc("POST /api/search/semantic", s.handleSemanticSearch)
	m.HandleFunc("POST /api/search/keyword", s.handleKeywordSearch)
	m.HandleFunc("GET /api/books", s.handleBooks)
	m.HandleFunc("GET /api/books/{book}/chapters", s.handleChapters)
	m.HandleFunc("GET /api/books/{book}/chapters/{chapter}/verses", s.handleVerses)
	m.HandleFunc("POST /api/rebuild-index", s.handleRebuildIndex)
	m.HandleFunc("GET /ws/live-transcription", s.handleLive)
	m.HandleFunc("GET /ws/remote", s.handleRemote)

	health.New(s.cfg.Health...).Register(m)
	m.Handle("GET /metrics", observe.MetricsHandler())
	if s.cfg.MCP != nil {
		m.Handle("/mcp", s.cfg.MCP)
	}
}

// Handler returns the root handler with tracing, metrics and access logs.
func (s *Server) Handler() http.Handler {
	return observe.Middleware(s.cfg.Metrics)(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
			slog.Info("https server listening", "addr", addr)
			errCh <- srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
			return
		}
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("server: write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// decodeBody decodes a JSON request body of at most 1 MiB into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return false
	}
	return true
}
