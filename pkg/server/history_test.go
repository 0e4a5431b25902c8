package server

import (
	"bytes"
	"testing"
)

func TestFrameHistoryReplay(t *testing.T) {
	h := NewFrameHistory(8)
	h.Add(1, []byte{0x01})
	h.Add(2, []byte{0x02})
	h.Add(3, []byte{0x03})

	frames, ok := h.Since(1)
	if !ok {
		t.Fatal("Since(1) should succeed")
	}
	if len(frames) != 2 || !bytes.Equal(frames[0], []byte{0x02}) || !bytes.Equal(frames[1], []byte{0x03}) {
		t.Errorf("frames = %v", frames)
	}

	if frames, ok := h.Since(3); !ok || frames != nil {
		t.Errorf("up-to-date client got %v, %v", frames, ok)
	}
}

func TestFrameHistoryWindowSlides(t *testing.T) {
	h := NewFrameHistory(2)
	for seq := uint64(1); seq <= 4; seq++ {
		h.Add(seq, []byte{byte(seq)})
	}

	if _, ok := h.Since(0); ok {
		t.Error("Since(0) should fail once seq 1 was overwritten")
	}
	if h.CanRecover(1) {
		t.Error("CanRecover(1) should be false, seq 2 is gone")
	}

	frames, ok := h.Since(2)
	if !ok || len(frames) != 2 {
		t.Fatalf("Since(2) = %v, %v", frames, ok)
	}
	if !h.CanRecover(3) {
		t.Error("CanRecover(3) should be true")
	}
}

func TestFrameHistoryEmptyAndClear(t *testing.T) {
	h := NewFrameHistory(4)
	if frames, ok := h.Since(0); !ok || frames != nil {
		t.Errorf("empty history: %v, %v", frames, ok)
	}

	h.Add(1, []byte{0x01})
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len = %d after clear", h.Len())
	}
	if frames, ok := h.Since(0); !ok || frames != nil {
		t.Errorf("cleared history: %v, %v", frames, ok)
	}
}

func TestFrameHistoryCopiesFrames(t *testing.T) {
	h := NewFrameHistory(4)
	buf := []byte{0xAA}
	h.Add(1, buf)
	buf[0] = 0xBB

	frames, _ := h.Since(0)
	if frames[0][0] != 0xAA {
		t.Error("history must copy frame bytes")
	}
}
