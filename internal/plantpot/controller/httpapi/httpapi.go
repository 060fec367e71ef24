// Package httpapi exposes the controller over HTTP: status, history, commands,
// Prometheus metrics and a websocket status stream.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/gate"
)

const defaultHistoryLimit = 50

// Backend is what the API needs from the controller
type Backend interface {
	Snapshot() engine.Snapshot
	Issue(cmd command.Command) (command.Command, error)
	PumpOn() error
	PumpOff() error
	Sensors() gate.Decision
	History(kind string, limit int) ([]engine.Event, error)
	Summary(since time.Time) (types.Summary, error)
}

// Server is the HTTP operator API
type Server struct {
	cfg      config.HTTPConfig
	backend  Backend
	gatherer prometheus.Gatherer
	router   chi.Router
	upgrader websocket.Upgrader

	// StatusInterval is the websocket push period
	StatusInterval time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates the API. A nil gatherer disables /metrics.
func New(cfg config.HTTPConfig, backend Backend, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:            cfg,
		backend:        backend,
		gatherer:       gatherer,
		StatusInterval: time.Second,
		closing:        make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	if s.gatherer != nil {
		r.With(s.authorize).Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authorize)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/status", s.handleStatus)
			r.Get("/sensors", s.handleSensors)
			r.Get("/history", s.handleHistory)
			r.Post("/commands", s.handleIssue)
			r.Post("/pump/on", s.handlePumpOn)
			r.Post("/pump/off", s.handlePumpOff)
		})
		r.Get("/ws", s.handleStatusStream)
	})

	return r
}

// ListenAndServe listens on the configured address until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return perrors.Wrapf(err, "http listen on %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("HTTP API listening on %s", ln.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.closeOnce.Do(func() { close(s.closing) })
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP API shutdown: %v", err)
		}
		<-errCh
		log.Info("HTTP API stopped")
		return nil
	case err := <-errCh:
		s.closeOnce.Do(func() { close(s.closing) })
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// authorize checks the bearer token when one is configured. Websocket clients
// that cannot set headers may pass ?token= instead.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, perrors.ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug("%s %s -> %d (%v)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

type historyResponse struct {
	Events  []engine.Event `json:"events"`
	Summary types.Summary  `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Snapshot())
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Sensors())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 time")
			return
		}
		since = t
	}

	events, err := s.backend.History(r.URL.Query().Get("kind"), limit)
	if err != nil {
		log.Error("history query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if events == nil {
		events = []engine.Event{}
	}
	summary, err := s.backend.Summary(since)
	if err != nil {
		log.Error("summary query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Events: events, Summary: summary})
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req command.Command
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.IssuedAt = 0

	issued, err := s.backend.Issue(req)
	if err != nil {
		status := http.StatusBadRequest
		if perrors.Is(err, perrors.ErrPersistenceFailure) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}
	log.Info("Queued %s over HTTP", issued)
	writeJSON(w, http.StatusAccepted, issued)
}

func (s *Server) handlePumpOn(w http.ResponseWriter, _ *http.Request) {
	if err := s.backend.PumpOn(); err != nil {
		status := http.StatusInternalServerError
		if perrors.Is(err, perrors.ErrPumpBusy) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"on": true})
}

func (s *Server) handlePumpOff(w http.ResponseWriter, _ *http.Request) {
	if err := s.backend.PumpOff(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"on": false})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("writeJSON encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
