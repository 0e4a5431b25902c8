package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/presage-dev/presage/pkg/protocol"
	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

// servedForecast remembers patches handed to the client ahead of the
// authoritative change, so the next change with the same signature can
// be verified against them.
type servedForecast struct {
	sig     state.Signature
	patches []vtree.Patch
}

// Session is one client's connection state: its authoritative view
// tree, the patch sequence, the replay history, and any forecasts
// served but not yet verified.
type Session struct {
	ID  string
	svc *Service
	log *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn // nil while detached
	tree    *vtree.Node
	seq     uint64
	served  map[string]servedForecast
	history *FrameHistory
	closed  bool
}

func newSession(id string, svc *Service) *Session {
	return &Session{
		ID:      id,
		svc:     svc,
		log:     svc.log.With("session_id", id),
		tree:    svc.cfg.InitialTree.Clone(),
		served:  make(map[string]servedForecast),
		history: NewFrameHistory(svc.cfg.PatchHistory),
	}
}

// Tree returns a copy of the session's authoritative view tree.
func (s *Session) Tree() *vtree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Clone()
}

// Seq returns the sequence of the last authoritative patch batch.
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// attach binds a fresh connection and starts its read loop.
func (s *Session) attach(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	go s.readLoop(conn)
}

// resume reattaches a client that reports having applied lastSeq. It
// fails when another connection is active, the session is closed, or
// the history window has slid past the client.
func (s *Session) resume(conn *websocket.Conn, lastSeq uint64) bool {
	s.mu.Lock()
	if s.closed || s.conn != nil {
		s.mu.Unlock()
		return false
	}
	frames, ok := s.history.Since(lastSeq)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.conn = conn
	seq := s.seq
	s.mu.Unlock()

	hello := &protocol.ServerHello{Status: protocol.HandshakeOK, SessionID: s.ID, Seq: seq}
	if err := s.writeFrame(hello.Frame()); err != nil {
		s.detach(conn)
		return true
	}
	for _, raw := range frames {
		if err := s.writeRaw(raw); err != nil {
			s.detach(conn)
			return true
		}
		s.svc.metrics.Frames.WithLabelValues("patches", "out").Inc()
	}
	s.log.Info("session resumed", "last_seq", lastSeq, "replayed", len(frames))
	go s.readLoop(conn)
	return true
}

// detach drops the connection without forgetting the session; the
// client may resume later.
func (s *Session) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

// Close tears the session down for good.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.closed = true
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.detach(conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", "error", err)
			}
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.sendError("E030", "malformed frame")
			continue
		}
		s.svc.metrics.Frames.WithLabelValues(frameLabel(frame.Type), "in").Inc()

		switch frame.Type {
		case protocol.FrameForecastRequest:
			req, err := protocol.DecodeForecastRequest(frame.Payload)
			if err != nil {
				s.sendError("E030", "malformed forecast request")
				continue
			}
			s.svc.handleForecast(s, req)
		default:
			s.sendError("E031", "unexpected frame type "+frame.Type.String())
		}
	}
}

// recordServed notes that patches for sig were handed to the client
// ahead of the authoritative change.
func (s *Session) recordServed(sig state.Signature, patches []vtree.Patch) {
	s.mu.Lock()
	s.served[sig.Key()] = servedForecast{sig: sig, patches: patches}
	s.mu.Unlock()
}

// ApplyChanges ingests one authoritative state change batch: render the
// next tree, reconcile, verify any outstanding forecast, and push the
// result to the client. This is the application's entry point into the
// session.
func (s *Session) ApplyChanges(ctx context.Context, component string, changes []state.Change) error {
	ctx, span := s.svc.tracer.Start(ctx, "session.apply_changes",
		trace.WithAttributes(
			attribute.String("session_id", s.ID),
			attribute.String("component", component),
			attribute.Int("changes", len(changes)),
		))
	defer span.End()
	started := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.svc.renderer.Render(s.tree, component, changes)
	if err != nil {
		span.RecordError(err)
		return err
	}

	authoritative, err := s.svc.pool.Diff(ctx, s.tree, next)
	if err != nil {
		span.RecordError(err)
		return err
	}

	sig := state.NewSignature(component, changes)
	s.seq++
	seq := s.seq

	if sf, ok := s.served[sig.Key()]; ok {
		delete(s.served, sig.Key())
		verdict, err := s.svc.verifier.Verify(sig, sf.patches, authoritative, s.tree)
		if err != nil {
			span.RecordError(err)
			return err
		}
		span.SetAttributes(attribute.Bool("forecast.correct", verdict.Correct))

		corr := &protocol.CorrectionMessage{Seq: seq, Signature: sig.Key()}
		if !verdict.Correct {
			corr.Patches = verdict.Correction
			s.svc.metrics.Corrections.Inc()
			s.log.Debug("forecast corrected",
				"signature", sig.Key(), "patches", len(verdict.Correction))
		}
		if err := s.writeFrameLocked(corr.Frame()); err != nil {
			s.log.Debug("correction write failed", "error", err)
		} else {
			s.svc.metrics.Frames.WithLabelValues("correction", "out").Inc()
		}
	} else {
		if err := s.svc.verifier.Record(sig, authoritative); err != nil {
			s.log.Warn("pattern observation failed", "signature", sig.Key(), "error", err)
		}
		msg := &protocol.PatchesMessage{Seq: seq, Patches: authoritative}
		if err := s.writeFrameLocked(msg.Frame()); err != nil {
			s.log.Debug("patches write failed", "error", err)
		} else {
			s.svc.metrics.Frames.WithLabelValues("patches", "out").Inc()
		}
	}

	// The history always holds the plain authoritative batch: a resumed
	// client starts from its last applied sequence, never from a
	// forecast-mutated tree.
	replay := &protocol.PatchesMessage{Seq: seq, Patches: authoritative}
	s.history.Add(seq, replay.Frame().Encode())
	s.tree = next

	s.svc.metrics.ApplyDuration.Observe(time.Since(started).Seconds())
	return nil
}

func (s *Session) sendError(code, message string) {
	msg := &protocol.ErrorMessage{Code: code, Message: message}
	if err := s.writeFrame(msg.Frame()); err == nil {
		s.svc.metrics.Frames.WithLabelValues("error", "out").Inc()
	}
}

func (s *Session) writeFrame(f *protocol.Frame) error {
	if err := f.CheckSize(); err != nil {
		return err
	}
	return s.writeRaw(f.Encode())
}

func (s *Session) writeRaw(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRawLocked(b)
}

func (s *Session) writeFrameLocked(f *protocol.Frame) error {
	if err := f.CheckSize(); err != nil {
		return err
	}
	return s.writeRawLocked(f.Encode())
}

func (s *Session) writeRawLocked(b []byte) error {
	if s.conn == nil {
		return errDetached
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.svc.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.BinaryMessage, b)
}
