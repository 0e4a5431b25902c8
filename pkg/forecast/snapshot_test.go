package forecast

import (
	"context"
	"errors"
	"testing"
)

type memorySnapshotStore struct {
	data []byte
}

func (m *memorySnapshotStore) Save(_ context.Context, data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memorySnapshotStore) Load(_ context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, errors.New("no snapshot")
	}
	return m.data, nil
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := NewStore(DefaultConfig())
	sigA := incrementSig("Counter")
	sigB := textSig("Editor")

	src.Observe(sigA, textPatches("1"), nil)
	correct := true
	for i := 0; i < 9; i++ {
		src.Observe(sigA, textPatches("2"), &correct)
	}
	src.Observe(sigB, textPatches("draft"), nil)

	mem := &memorySnapshotStore{}
	if err := src.SaveSnapshot(context.Background(), mem); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	dst := NewStore(DefaultConfig())
	if err := dst.LoadSnapshot(context.Background(), mem); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if dst.Len() != src.Len() {
		t.Fatalf("Len = %d, want %d", dst.Len(), src.Len())
	}
	patches, conf, ok := dst.Lookup(sigA)
	if !ok {
		t.Fatal("restored entry should be served")
	}
	if conf != 0.9 {
		t.Errorf("restored confidence = %v, want 0.9 (9 correct of 10)", conf)
	}
	if len(patches) != 1 || patches[0].Value != "2" {
		t.Errorf("restored patches = %v", patches)
	}
}

func TestSnapshotRestoreRespectsBudget(t *testing.T) {
	src := NewStore(DefaultConfig())
	for _, c := range []string{"A", "B", "C", "D"} {
		src.Observe(incrementSig(c), textPatches("payload-"+c), nil)
	}

	mem := &memorySnapshotStore{}
	if err := src.SaveSnapshot(context.Background(), mem); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.MaxBytes = src.TotalBytes() / 2
	dst := NewStore(cfg)
	if err := dst.LoadSnapshot(context.Background(), mem); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if dst.TotalBytes() > cfg.MaxBytes {
		t.Errorf("restored total %d exceeds budget %d", dst.TotalBytes(), cfg.MaxBytes)
	}
}

func TestLoadSnapshotPropagatesError(t *testing.T) {
	s := NewStore(DefaultConfig())
	if err := s.LoadSnapshot(context.Background(), &memorySnapshotStore{}); err == nil {
		t.Error("missing snapshot should fail")
	}
}
