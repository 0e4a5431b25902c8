package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/presage-dev/presage/pkg/forecast"
	"github.com/presage-dev/presage/pkg/protocol"
	"github.com/presage-dev/presage/pkg/reconcile"
	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

var errDetached = errors.New("session has no active connection")

// Renderer produces the next authoritative view tree for a state
// change batch. Implementations must not mutate current; unchanged
// subtrees may be shared between the two trees.
type Renderer interface {
	Render(current *vtree.Node, component string, changes []state.Change) (*vtree.Node, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(current *vtree.Node, component string, changes []state.Change) (*vtree.Node, error)

// Render implements Renderer.
func (f RendererFunc) Render(current *vtree.Node, component string, changes []state.Change) (*vtree.Node, error) {
	return f(current, component, changes)
}

// Service owns the forecasting store, the reconcile pool, and all
// client sessions.
type Service struct {
	cfg      Config
	store    *forecast.Store
	renderer Renderer
	pool     *reconcile.Pool
	verifier *forecast.Verifier
	metrics  *Metrics
	tracer   trace.Tracer
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	httpServer *http.Server
}

// NewService wires a service around a store and an application
// renderer.
func NewService(cfg Config, store *forecast.Store, renderer Renderer) *Service {
	cfg.applyDefaults()

	s := &Service{
		cfg:      cfg,
		store:    store,
		renderer: renderer,
		pool:     reconcile.NewPool(int64(cfg.MaxDiffConcurrency)),
		verifier: forecast.NewVerifier(store, cfg.Logger),
		tracer:   otel.Tracer("presage/server"),
		log:      cfg.Logger.With("component", "server"),
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
	if cfg.Registry != nil {
		s.metrics = NewMetrics(cfg.Registry)
	} else {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Store returns the forecasting store.
func (s *Service) Store() *forecast.Store {
	return s.store
}

// Session returns the session with the given ID, or nil.
func (s *Service) Session(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// SessionCount returns the number of known sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Router builds the HTTP surface: health, metrics, and the websocket
// endpoint.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}
	if len(s.cfg.ClientDefaults) > 0 {
		r.Get("/client-config", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write(s.cfg.ClientDefaults)
		})
	}
	r.Get("/ws", s.handleWS)
	return r
}

// Run serves the router until ctx is cancelled, then shuts down
// gracefully.
func (s *Service) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.cfg.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes all sessions and stops the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.Close()
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	s.metrics.Sessions.Set(0)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.log.Info("server shutdown complete")
	return nil
}

// handleWS upgrades the connection and runs the handshake. The first
// frame must be a ClientHello; everything after that belongs to the
// session's read loop.
func (s *Service) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		s.log.Debug("handshake read failed", "error", err)
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	frame, err := protocol.DecodeFrame(msg)
	if err != nil || frame.Type != protocol.FrameHandshake {
		s.rejectHandshake(conn)
		return
	}
	hello, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		s.rejectHandshake(conn)
		return
	}
	s.metrics.Frames.WithLabelValues("handshake", "in").Inc()

	if hello.SessionID != "" {
		if sess := s.Session(hello.SessionID); sess != nil && sess.resume(conn, hello.LastSeq) {
			return
		}
		// Resume impossible: hand out a fresh session, flagged so the
		// client drops its stale local state.
		s.startSession(conn, protocol.HandshakeRestart)
		return
	}
	s.startSession(conn, protocol.HandshakeOK)
}

func (s *Service) startSession(conn *websocket.Conn, status protocol.HandshakeStatus) {
	sess := newSession(uuid.NewString(), s)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.metrics.Sessions.Inc()

	hello := &protocol.ServerHello{Status: status, SessionID: sess.ID}
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, hello.Frame().Encode()); err != nil {
		s.log.Debug("hello write failed", "error", err)
		conn.Close()
		return
	}
	s.metrics.Frames.WithLabelValues("handshake", "out").Inc()

	sess.attach(conn)
	s.log.Info("session started", "session_id", sess.ID, "status", status.String())
}

func (s *Service) rejectHandshake(conn *websocket.Conn) {
	s.log.Debug("handshake rejected", "code", "E034")
	hello := &protocol.ServerHello{Status: protocol.HandshakeRejected}
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, hello.Frame().Encode())
	conn.Close()
}

// CloseSession removes a session permanently.
func (s *Service) CloseSession(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if ok {
		sess.Close()
		s.metrics.Sessions.Dec()
	}
}

// handleForecast answers a forecast request from the store. Served
// patches are remembered on the session for later verification.
func (s *Service) handleForecast(sess *Session, req *protocol.ForecastRequest) {
	_, span := s.tracer.Start(context.Background(), "forecast.lookup",
		trace.WithAttributes(
			attribute.String("session_id", sess.ID),
			attribute.String("signature", req.Signature),
		))
	defer span.End()

	sig, err := state.ParseSignature(req.Signature)
	if err != nil {
		sess.sendError("E033", "malformed signature key")
		return
	}

	resp := &protocol.ForecastResponse{
		Signature:    req.Signature,
		ObservableID: req.ObservableID,
	}
	if patches, conf, ok := s.store.Lookup(sig); ok {
		resp.Hit = true
		resp.Confidence = conf
		resp.Patches = patches
		sess.recordServed(sig, patches)
	}
	span.SetAttributes(attribute.Bool("hit", resp.Hit))

	if err := sess.writeFrame(resp.Frame()); err != nil {
		s.log.Debug("forecast response write failed", "error", err)
		return
	}
	s.metrics.Frames.WithLabelValues("forecast_response", "out").Inc()
}
