package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/presage-dev/presage/pkg/vtree"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1}
	for _, v := range values {
		e := NewEncoder()
		e.WriteUvarint(v)
		d := NewDecoder(e.Bytes())
		got, err := d.ReadUvarint()
		if err != nil || got != v {
			t.Errorf("uvarint %d: got %d, err %v", v, got, err)
		}
	}

	signed := []int64{0, -1, 1, -300, 300, -(1 << 40)}
	for _, v := range signed {
		e := NewEncoder()
		e.WriteSvarint(v)
		d := NewDecoder(e.Bytes())
		got, err := d.ReadSvarint()
		if err != nil || got != v {
			t.Errorf("svarint %d: got %d, err %v", v, got, err)
		}
	}
}

func TestStringTruncated(t *testing.T) {
	e := NewEncoder()
	e.WriteString("hello world")
	d := NewDecoder(e.Bytes()[:4])
	if _, err := d.ReadString(); err == nil {
		t.Error("expected error for truncated string")
	}
}

func sampleNode() *vtree.Node {
	return vtree.Element(vtree.ChildPosition(0), "div", map[string]string{"class": "app", "id": "root"},
		vtree.Text(vtree.ChildPosition(0), "hello"),
		vtree.Null(vtree.ChildPosition(1)),
		vtree.Element(vtree.ChildPosition(2), "span", nil,
			vtree.Text(vtree.ChildPosition(0), "nested"),
		),
	)
}

func TestNodeRoundTrip(t *testing.T) {
	want := sampleNode()
	e := NewEncoder()
	EncodeNode(e, want)

	got, err := DecodeNode(NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("DecodeNode failed: %v", err)
	}
	if !vtree.Equal(got, want) {
		t.Errorf("round trip diverged:\ngot:  %v\nwant: %v", got, want)
	}
}

func TestNodeEncodingDeterministic(t *testing.T) {
	n := vtree.Element(vtree.ChildPosition(0), "div", map[string]string{
		"a": "1", "b": "2", "c": "3", "d": "4",
	})
	e1 := NewEncoder()
	EncodeNode(e1, n)
	for i := 0; i < 8; i++ {
		e2 := NewEncoder()
		EncodeNode(e2, n.Clone())
		if !bytes.Equal(e1.Bytes(), e2.Bytes()) {
			t.Fatal("same node encoded to different bytes")
		}
	}
}

func TestPatchListRoundTrip(t *testing.T) {
	path := vtree.Path{vtree.ChildPosition(0), vtree.ChildPosition(1)}
	want := []vtree.Patch{
		vtree.NewSetTextPatch(path, "new text"),
		vtree.NewSetAttrPatch(path, "class", "active"),
		vtree.NewRemoveAttrPatch(path, "hidden"),
		vtree.NewInsertNodePatch(path.Parent(), 2, vtree.Text(vtree.ChildPosition(3), "x")),
		vtree.NewRemoveNodePatch(path),
		vtree.NewMoveNodePatch(path, 0),
		vtree.NewReplaceNodePatch(path, vtree.Null(vtree.ChildPosition(1))),
	}

	e := NewEncoder()
	EncodePatchList(e, want)

	got, err := DecodePatchList(NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("DecodePatchList failed: %v", err)
	}
	if !vtree.PatchesEqual(got, want) {
		t.Errorf("round trip diverged:\ngot:  %v\nwant: %v", got, want)
	}
}

func TestDecodePatchUnknownOp(t *testing.T) {
	e := NewEncoder()
	e.WriteByte(0xEE)
	e.WriteUvarint(0)
	if _, err := DecodePatch(NewDecoder(e.Bytes())); err == nil {
		t.Error("expected error for unknown op")
	}
}

func TestPatchListSize(t *testing.T) {
	patches := []vtree.Patch{
		vtree.NewSetTextPatch(vtree.Path{vtree.ChildPosition(0)}, "hello"),
	}
	size := PatchListSize(patches)
	if size <= 0 {
		t.Fatalf("size = %d", size)
	}
	if size != PatchListSize(patches) {
		t.Error("size is not stable across calls")
	}
	if PatchListSize(nil) >= size {
		t.Error("empty list should be smaller than a populated one")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	f := NewFrame(FramePatches, []byte{1, 2, 3})
	got, err := DecodeFrame(f.Encode())
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if got.Type != FramePatches || !bytes.Equal(got.Payload, []byte{1, 2, 3}) {
		t.Errorf("frame = %+v", got)
	}
}

func TestFrameErrors(t *testing.T) {
	if _, err := DecodeFrame([]byte{0x01}); err == nil {
		t.Error("short header should fail")
	}
	if _, err := DecodeFrame([]byte{0xFF, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Error("unknown type should fail")
	}
	// Declared payload longer than what follows.
	if _, err := DecodeFrame([]byte{0x03, 0, 0, 0, 0, 0, 0, 9, 1, 2}); err == nil {
		t.Error("truncated payload should fail")
	}
	// Declared payload over the cap.
	oversized := []byte{0x03, 0, 0, 0, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(oversized[4:8], uint32(MaxPayloadSize+1))
	if _, err := DecodeFrame(oversized); err == nil {
		t.Error("oversized declaration should fail")
	}
}

func TestFrameLargePayloadRoundTrip(t *testing.T) {
	// A patch batch well past 64KB must keep its exact length through
	// the header. Sizes that collide modulo 2^16 are the interesting
	// ones.
	payload := make([]byte, 70011)
	for i := range payload {
		payload[i] = byte(i)
	}
	f := NewFrame(FramePatches, payload)

	encoded := f.Encode()
	if len(encoded) != FrameHeaderSize+len(payload) {
		t.Fatalf("encoded %d bytes, want %d", len(encoded), FrameHeaderSize+len(payload))
	}
	got, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("payload diverged: got %d bytes, want %d", len(got.Payload), len(payload))
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, f); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	read, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(read.Payload, payload) {
		t.Fatal("ReadFrame payload diverged")
	}
}

func TestFrameRejectsPayloadOverCap(t *testing.T) {
	f := NewFrame(FramePatches, make([]byte, MaxPayloadSize+1))
	if err := f.CheckSize(); err == nil {
		t.Error("CheckSize should reject payload over cap")
	}
	if err := WriteFrame(io.Discard, f); err == nil {
		t.Error("WriteFrame should reject payload over cap")
	}
}

func TestFrameReadWrite(t *testing.T) {
	var buf bytes.Buffer
	msg := &PatchesMessage{
		Seq: 7,
		Patches: []vtree.Patch{
			vtree.NewSetTextPatch(vtree.Path{vtree.ChildPosition(0)}, "tick"),
		},
	}
	if err := WriteFrame(&buf, msg.Frame()); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if f.Type != FramePatches {
		t.Fatalf("type = %v", f.Type)
	}
	got, err := DecodePatchesMessage(f.Payload)
	if err != nil {
		t.Fatalf("DecodePatchesMessage failed: %v", err)
	}
	if got.Seq != 7 || !vtree.PatchesEqual(got.Patches, msg.Patches) {
		t.Errorf("message = %+v", got)
	}
}

func TestForecastMessagesRoundTrip(t *testing.T) {
	req := &ForecastRequest{
		Signature:      "Counter::count=increment",
		ObservableID:   "btn-inc",
		PredictedValue: "hover",
	}
	gotReq, err := DecodeForecastRequest(req.Encode())
	if err != nil {
		t.Fatalf("DecodeForecastRequest failed: %v", err)
	}
	if *gotReq != *req {
		t.Errorf("request = %+v, want %+v", gotReq, req)
	}

	resp := &ForecastResponse{
		Signature:    req.Signature,
		ObservableID: req.ObservableID,
		Hit:          true,
		Confidence:   0.92,
		Patches: []vtree.Patch{
			vtree.NewSetTextPatch(vtree.Path{vtree.ChildPosition(0)}, "1"),
		},
	}
	gotResp, err := DecodeForecastResponse(resp.Encode())
	if err != nil {
		t.Fatalf("DecodeForecastResponse failed: %v", err)
	}
	if gotResp.Confidence != 0.92 || !gotResp.Hit || !vtree.PatchesEqual(gotResp.Patches, resp.Patches) {
		t.Errorf("response = %+v", gotResp)
	}

	miss := &ForecastResponse{Signature: "x", ObservableID: "y"}
	gotMiss, err := DecodeForecastResponse(miss.Encode())
	if err != nil {
		t.Fatalf("miss round trip failed: %v", err)
	}
	if gotMiss.Hit || len(gotMiss.Patches) != 0 {
		t.Errorf("miss = %+v", gotMiss)
	}
}

func TestCorrectionRoundTrip(t *testing.T) {
	c := &CorrectionMessage{
		Seq:       3,
		Signature: "Modal::open=toggle",
		Patches: []vtree.Patch{
			vtree.NewReplaceNodePatch(vtree.Path{vtree.ChildPosition(1)}, vtree.Null(vtree.ChildPosition(1))),
		},
	}
	got, err := DecodeCorrectionMessage(c.Encode())
	if err != nil {
		t.Fatalf("DecodeCorrectionMessage failed: %v", err)
	}
	if got.Seq != 3 || got.Signature != c.Signature || !vtree.PatchesEqual(got.Patches, c.Patches) {
		t.Errorf("correction = %+v", got)
	}
}
