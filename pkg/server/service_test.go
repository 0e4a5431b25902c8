package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/presage-dev/presage/pkg/forecast"
	"github.com/presage-dev/presage/pkg/protocol"
	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

func counterTree(count int) *vtree.Node {
	return vtree.Element(vtree.ChildPosition(0), "div", nil,
		vtree.Text(vtree.ChildPosition(0), strconv.Itoa(count)))
}

// counterRenderer rebuilds the tree from the new count value.
var counterRenderer = RendererFunc(func(_ *vtree.Node, _ string, changes []state.Change) (*vtree.Node, error) {
	return counterTree(int(changes[0].NewValue.(float64))), nil
})

func countChange(from, to int) []state.Change {
	return []state.Change{{
		Component: "Counter",
		Key:       "count",
		OldValue:  float64(from),
		NewValue:  float64(to),
	}}
}

func newTestService(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()
	store := forecast.NewStore(forecast.DefaultConfig())
	svc := NewService(Config{
		InitialTree: counterTree(0),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry:    prometheus.NewRegistry(),
	}, store, counterRenderer)

	ts := httptest.NewServer(svc.Router())
	t.Cleanup(ts.Close)
	return svc, ts
}

func dial(t *testing.T, ts *httptest.Server, hello *protocol.ClientHello) (*websocket.Conn, *protocol.ServerHello) {
	t.Helper()
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteMessage(websocket.BinaryMessage, hello.Frame().Encode()); err != nil {
		t.Fatalf("hello write failed: %v", err)
	}
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameHandshake {
		t.Fatalf("first frame = %v, want handshake", frame.Type)
	}
	serverHello, err := protocol.DecodeServerHello(frame.Payload)
	if err != nil {
		t.Fatalf("server hello decode failed: %v", err)
	}
	return conn, serverHello
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("frame decode failed: %v", err)
	}
	return frame
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	_, ts := newTestService(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
}

func TestClientConfigEndpoint(t *testing.T) {
	store := forecast.NewStore(forecast.DefaultConfig())
	svc := NewService(Config{
		ClientDefaults: []byte(`{"armThreshold":0.7}`),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry:       prometheus.NewRegistry(),
	}, store, counterRenderer)
	ts := httptest.NewServer(svc.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/client-config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "armThreshold") {
		t.Errorf("body = %s", body)
	}
}

func TestAuthoritativeFlow(t *testing.T) {
	svc, ts := newTestService(t)
	conn, hello := dial(t, ts, &protocol.ClientHello{})

	if hello.Status != protocol.HandshakeOK || hello.SessionID == "" {
		t.Fatalf("hello = %+v", hello)
	}
	sess := svc.Session(hello.SessionID)
	if sess == nil {
		t.Fatal("session not registered")
	}

	if err := sess.ApplyChanges(context.Background(), "Counter", countChange(0, 1)); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != protocol.FramePatches {
		t.Fatalf("frame = %v, want patches", frame.Type)
	}
	msg, err := protocol.DecodePatchesMessage(frame.Payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Seq != 1 {
		t.Errorf("seq = %d, want 1", msg.Seq)
	}

	got, err := vtree.Apply(counterTree(0), msg.Patches)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !vtree.Equal(got, counterTree(1)) {
		t.Error("patches do not reproduce the authoritative tree")
	}
	if !vtree.Equal(sess.Tree(), counterTree(1)) {
		t.Error("session tree not advanced")
	}
}

func TestLargePatchBatchArrivesIntact(t *testing.T) {
	svc, ts := newTestService(t)
	conn, hello := dial(t, ts, &protocol.ClientHello{})
	sess := svc.Session(hello.SessionID)

	// A single text node past 64KB so the frame payload crosses the
	// old two-byte length boundary.
	big := strings.Repeat("x", 70011)
	bigTree := vtree.Element(vtree.ChildPosition(0), "div", nil,
		vtree.Text(vtree.ChildPosition(0), big))
	svc.renderer = RendererFunc(func(_ *vtree.Node, _ string, _ []state.Change) (*vtree.Node, error) {
		return bigTree.Clone(), nil
	})

	if err := sess.ApplyChanges(context.Background(), "Report", []state.Change{{
		Component: "Report", Key: "body", OldValue: "", NewValue: big,
	}}); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != protocol.FramePatches {
		t.Fatalf("frame = %v, want patches", frame.Type)
	}
	msg, err := protocol.DecodePatchesMessage(frame.Payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	got, err := vtree.Apply(counterTree(0), msg.Patches)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !vtree.Equal(got, bigTree) {
		t.Error("large batch did not reproduce the authoritative tree")
	}
}

func TestForecastMissHitAndCorrection(t *testing.T) {
	svc, ts := newTestService(t)
	conn, hello := dial(t, ts, &protocol.ClientHello{})
	sess := svc.Session(hello.SessionID)

	sigKey := state.NewSignature("Counter", countChange(0, 1)).Key()
	req := &protocol.ForecastRequest{
		Signature:      sigKey,
		ObservableID:   "counter-btn",
		PredictedValue: "1",
	}

	// Cold store: miss.
	conn.WriteMessage(websocket.BinaryMessage, req.Frame().Encode())
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameForecastResponse {
		t.Fatalf("frame = %v, want forecast response", frame.Type)
	}
	resp, err := protocol.DecodeForecastResponse(frame.Payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Hit {
		t.Error("cold store must miss")
	}

	// First authoritative change teaches the store the pattern.
	if err := sess.ApplyChanges(context.Background(), "Counter", countChange(0, 1)); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	readFrame(t, conn) // patches frame

	// Same signature again: hit at the deterministic seed.
	conn.WriteMessage(websocket.BinaryMessage, req.Frame().Encode())
	resp, err = protocol.DecodeForecastResponse(readFrame(t, conn).Payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !resp.Hit || resp.Confidence < 0.7 {
		t.Fatalf("response = %+v, want confident hit", resp)
	}

	// Client pre-applies the forecast onto its current tree.
	forecastTree, err := vtree.Apply(counterTree(1), resp.Patches)
	if err != nil {
		t.Fatalf("forecast apply failed: %v", err)
	}

	// The real change goes 1 -> 2 but the learned patches say "1":
	// the server must answer with a correction.
	if err := sess.ApplyChanges(context.Background(), "Counter", countChange(1, 2)); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	frame = readFrame(t, conn)
	if frame.Type != protocol.FrameCorrection {
		t.Fatalf("frame = %v, want correction", frame.Type)
	}
	corr, err := protocol.DecodeCorrectionMessage(frame.Payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if corr.Signature != sigKey {
		t.Errorf("correction signature = %q", corr.Signature)
	}
	if len(corr.Patches) == 0 {
		t.Fatal("wrong forecast must carry correction patches")
	}

	fixed, err := vtree.Apply(forecastTree, corr.Patches)
	if err != nil {
		t.Fatalf("correction apply failed: %v", err)
	}
	if !vtree.Equal(fixed, counterTree(2)) {
		t.Error("correction does not reach the authoritative tree")
	}

	// The wrong forecast must have dropped the entry below the floor.
	sig := state.NewSignature("Counter", countChange(1, 2))
	if _, _, ok := svc.Store().Lookup(sig); ok {
		t.Error("entry should be below the serving floor after a miss")
	}
}

func TestCorrectForecastSendsEmptyCorrection(t *testing.T) {
	svc, ts := newTestService(t)
	conn, hello := dial(t, ts, &protocol.ClientHello{})
	sess := svc.Session(hello.SessionID)

	// Teach the toggle pattern: same patches both times.
	toggle := func(from, to bool) []state.Change {
		return []state.Change{{Component: "Modal", Key: "open", OldValue: from, NewValue: to}}
	}
	open := vtree.Element(vtree.ChildPosition(0), "div",
		map[string]string{"class": "open"})
	shut := vtree.Element(vtree.ChildPosition(0), "div",
		map[string]string{"class": "shut"})
	svc.renderer = RendererFunc(func(_ *vtree.Node, _ string, changes []state.Change) (*vtree.Node, error) {
		if changes[0].NewValue.(bool) {
			return open.Clone(), nil
		}
		return shut.Clone(), nil
	})
	sess.mu.Lock()
	sess.tree = shut.Clone()
	sess.mu.Unlock()

	if err := sess.ApplyChanges(context.Background(), "Modal", toggle(false, true)); err != nil {
		t.Fatal(err)
	}
	readFrame(t, conn)

	// Remount the component shut so the learned open patches line up
	// with the next authoritative change.
	sess.mu.Lock()
	sess.tree = shut.Clone()
	sess.mu.Unlock()

	// Forecast open-again: learned patches for false->true still apply.
	sigKey := state.NewSignature("Modal", toggle(false, true)).Key()
	req := &protocol.ForecastRequest{Signature: sigKey, ObservableID: "modal", PredictedValue: "true"}
	conn.WriteMessage(websocket.BinaryMessage, req.Frame().Encode())
	resp, err := protocol.DecodeForecastResponse(readFrame(t, conn).Payload)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Hit {
		t.Fatal("toggle pattern should be cached")
	}

	if err := sess.ApplyChanges(context.Background(), "Modal", toggle(false, true)); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameCorrection {
		t.Fatalf("frame = %v, want correction", frame.Type)
	}
	corr, err := protocol.DecodeCorrectionMessage(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(corr.Patches) != 0 {
		t.Errorf("correct forecast got %d correction patches, want 0", len(corr.Patches))
	}
}

func TestHandshakeRejectsNonHandshakeFrame(t *testing.T) {
	_, ts := newTestService(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	req := &protocol.ForecastRequest{Signature: "X::k=toggle"}
	conn.WriteMessage(websocket.BinaryMessage, req.Frame().Encode())

	hello, err := protocol.DecodeServerHello(readFrame(t, conn).Payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if hello.Status != protocol.HandshakeRejected {
		t.Errorf("status = %v, want rejected", hello.Status)
	}
}

func TestMalformedSignatureGetsErrorFrame(t *testing.T) {
	_, ts := newTestService(t)
	conn, _ := dial(t, ts, &protocol.ClientHello{})

	req := &protocol.ForecastRequest{Signature: "not a signature"}
	conn.WriteMessage(websocket.BinaryMessage, req.Frame().Encode())

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame = %v, want error", frame.Type)
	}
	msg, err := protocol.DecodeErrorMessage(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Code != "E033" {
		t.Errorf("code = %q, want E033", msg.Code)
	}
}

func TestResumeReplaysMissedFrames(t *testing.T) {
	svc, ts := newTestService(t)
	conn, hello := dial(t, ts, &protocol.ClientHello{})
	sess := svc.Session(hello.SessionID)

	if err := sess.ApplyChanges(context.Background(), "Counter", countChange(0, 1)); err != nil {
		t.Fatal(err)
	}
	readFrame(t, conn)
	conn.Close()
	waitDetached(t, sess)

	// A change lands while the client is away.
	if err := sess.ApplyChanges(context.Background(), "Counter", countChange(1, 2)); err != nil {
		t.Fatal(err)
	}

	conn2, hello2 := dial(t, ts, &protocol.ClientHello{SessionID: hello.SessionID, LastSeq: 1})
	if hello2.Status != protocol.HandshakeOK || hello2.SessionID != hello.SessionID {
		t.Fatalf("resume hello = %+v", hello2)
	}
	if hello2.Seq != 2 {
		t.Errorf("resume seq = %d, want 2", hello2.Seq)
	}

	frame := readFrame(t, conn2)
	if frame.Type != protocol.FramePatches {
		t.Fatalf("frame = %v, want replayed patches", frame.Type)
	}
	msg, err := protocol.DecodePatchesMessage(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Seq != 2 {
		t.Errorf("replayed seq = %d, want 2", msg.Seq)
	}
	got, err := vtree.Apply(counterTree(1), msg.Patches)
	if err != nil {
		t.Fatal(err)
	}
	if !vtree.Equal(got, counterTree(2)) {
		t.Error("replayed frame does not reach the authoritative tree")
	}
}

func TestResumeUnknownSessionRestarts(t *testing.T) {
	_, ts := newTestService(t)
	_, hello := dial(t, ts, &protocol.ClientHello{SessionID: "no-such-session", LastSeq: 9})

	if hello.Status != protocol.HandshakeRestart {
		t.Errorf("status = %v, want restart", hello.Status)
	}
	if hello.SessionID == "" || hello.SessionID == "no-such-session" {
		t.Errorf("restart must hand out a fresh session id, got %q", hello.SessionID)
	}
}

func TestCloseSessionForgetsState(t *testing.T) {
	svc, ts := newTestService(t)
	_, hello := dial(t, ts, &protocol.ClientHello{})

	svc.CloseSession(hello.SessionID)
	if svc.Session(hello.SessionID) != nil {
		t.Error("closed session still registered")
	}
	if svc.SessionCount() != 0 {
		t.Errorf("SessionCount = %d", svc.SessionCount())
	}
}

func waitDetached(t *testing.T, sess *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		sess.mu.Lock()
		detached := sess.conn == nil
		sess.mu.Unlock()
		if detached {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("session never detached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
