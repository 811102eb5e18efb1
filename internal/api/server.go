// Package api serves annotation sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/drawing"
	"github.com/menta2k/image-annotator/pkg/palette"
	"github.com/menta2k/image-annotator/pkg/probe"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/store"
	"github.com/menta2k/image-annotator/pkg/types"
	"github.com/menta2k/image-annotator/pkg/viewport"
)

// Option configures a Server
type Option func(*Server)

// WithAnalyzer sets the upload validator
func WithAnalyzer(a *analyzer.ImageAnalyzer) Option {
	return func(s *Server) { s.analyzer = a }
}

// WithScaler sets the layout limits used for viewport requests
func WithScaler(sc *viewport.Scaler) Option {
	return func(s *Server) { s.scaler = sc }
}

// WithProber sets how stored images are measured
func WithProber(p probe.Prober) Option {
	return func(s *Server) { s.prober = p }
}

// Server handles HTTP requests for annotation sessions
type Server struct {
	addr      string
	outline   client.OutlineClient
	analyzer  *analyzer.ImageAnalyzer
	prober    probe.Prober
	scaler    *viewport.Scaler
	processor *processing.Processor

	mu       sync.RWMutex
	sessions map[string]*session
}

// New creates a server that outlines uploads with outline
func New(outline client.OutlineClient, addr string, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		outline:   outline,
		analyzer:  analyzer.New(),
		prober:    probe.New(),
		scaler:    viewport.New(),
		processor: processing.NewProcessor(),
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in CORS middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("POST /sessions", s.createSession)
	mux.HandleFunc("GET /sessions/{id}", s.getSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.deleteSession)

	// Image and annotations
	mux.HandleFunc("POST /sessions/{id}/image", s.uploadImage)
	mux.HandleFunc("DELETE /sessions/{id}/image", s.clearImage)
	mux.HandleFunc("DELETE /sessions/{id}/annotations", s.clearAnnotations)
	mux.HandleFunc("POST /sessions/{id}/annotations/{index}/selected", s.setSelected)
	mux.HandleFunc("POST /sessions/{id}/annotations/{index}/label", s.editLabel)
	mux.HandleFunc("POST /sessions/{id}/manual/{index}/selected", s.setManualSelected)
	mux.HandleFunc("POST /sessions/{id}/options/{name}/toggle", s.toggleOption)

	// Import / export
	mux.HandleFunc("POST /sessions/{id}/import", s.importOutlines)
	mux.HandleFunc("GET /sessions/{id}/export.svg", s.exportSVG)
	mux.HandleFunc("GET /sessions/{id}/export.json", s.exportJSON)

	// Canvas
	mux.HandleFunc("POST /sessions/{id}/viewport", s.setViewport)
	mux.HandleFunc("POST /sessions/{id}/pointer/{action}", s.pointer)
	mux.HandleFunc("GET /sessions/{id}/overlay.png", s.overlay)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// withCORS adds CORS headers for browser clients
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session is one editing session: its state store, the drawing state
// machine and the layout observer that keeps the drawing transform current.
type session struct {
	id       string
	store    *store.Store
	drawing  *drawing.Session
	observer *viewport.Observer
	stop     func()

	mu      sync.Mutex
	laidOut string
}

func (s *Server) newSession() *session {
	st := store.New(s.prober)
	sess := &session{
		id:       uuid.New().String(),
		store:    st,
		drawing:  drawing.New(st, palette.NewCycler(0)),
		observer: viewport.NewObserver(s.scaler, types.Size{}),
	}
	sess.stop = sess.observer.Subscribe(func(l viewport.Layout) {
		sess.drawing.SetTransform(l.StageTransform())
	})
	return sess
}

// CreateSessionResponse is returned for a new session
type CreateSessionResponse struct {
	ID    string      `json:"id"`
	State store.State `json:"state"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.newSession()

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, CreateSessionResponse{ID: sess.id, State: sess.store.Snapshot()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.store.Snapshot())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	sess.stop()
	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the {id} path value, writing 404 when it is unknown
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[r.PathValue("id")]
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
