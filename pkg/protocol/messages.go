package protocol

import (
	"github.com/presage-dev/presage/pkg/vtree"
)

// ForecastRequest is sent client to server when the intent engine arms
// a prediction: "this observable will take this value soon, send me
// the patches if you have them."
type ForecastRequest struct {
	// Signature is the canonical state-change signature key.
	Signature string
	// ObservableID identifies the client-side observable that armed.
	ObservableID string
	// PredictedValue is the value the observable is expected to take.
	PredictedValue string
}

// Encode serializes the request payload.
func (m *ForecastRequest) Encode() []byte {
	e := NewEncoder()
	e.WriteString(m.Signature)
	e.WriteString(m.ObservableID)
	e.WriteString(m.PredictedValue)
	return e.Bytes()
}

// Frame wraps the request in a transport frame.
func (m *ForecastRequest) Frame() *Frame {
	return NewFrame(FrameForecastRequest, m.Encode())
}

// DecodeForecastRequest parses a request payload.
func DecodeForecastRequest(payload []byte) (*ForecastRequest, error) {
	d := NewDecoder(payload)
	var m ForecastRequest
	var err error
	if m.Signature, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.ObservableID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.PredictedValue, err = d.ReadString(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ForecastResponse answers a ForecastRequest. Hit is false when the
// store had no entry at or above the confidence floor; the client then
// simply waits for the authoritative patches.
type ForecastResponse struct {
	Signature    string
	ObservableID string
	Hit          bool
	Confidence   float64
	Patches      []vtree.Patch
}

// Encode serializes the response payload.
func (m *ForecastResponse) Encode() []byte {
	e := NewEncoder()
	e.WriteString(m.Signature)
	e.WriteString(m.ObservableID)
	e.WriteBool(m.Hit)
	e.WriteFloat64(m.Confidence)
	EncodePatchList(e, m.Patches)
	return e.Bytes()
}

// Frame wraps the response in a transport frame.
func (m *ForecastResponse) Frame() *Frame {
	return NewFrame(FrameForecastResponse, m.Encode())
}

// DecodeForecastResponse parses a response payload.
func DecodeForecastResponse(payload []byte) (*ForecastResponse, error) {
	d := NewDecoder(payload)
	var m ForecastResponse
	var err error
	if m.Signature, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.ObservableID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.Hit, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if m.Confidence, err = d.ReadFloat64(); err != nil {
		return nil, err
	}
	if m.Patches, err = DecodePatchList(d); err != nil {
		return nil, err
	}
	return &m, nil
}

// PatchesMessage carries an authoritative patch batch. Seq increases
// by one per batch within a session so the client can detect gaps.
type PatchesMessage struct {
	Seq     uint64
	Patches []vtree.Patch
}

// Encode serializes the patch batch payload.
func (m *PatchesMessage) Encode() []byte {
	e := NewEncoder()
	e.WriteUvarint(m.Seq)
	EncodePatchList(e, m.Patches)
	return e.Bytes()
}

// Frame wraps the batch in a transport frame.
func (m *PatchesMessage) Frame() *Frame {
	return NewFrame(FramePatches, m.Encode())
}

// DecodePatchesMessage parses a patch batch payload.
func DecodePatchesMessage(payload []byte) (*PatchesMessage, error) {
	d := NewDecoder(payload)
	var m PatchesMessage
	var err error
	if m.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if m.Patches, err = DecodePatchList(d); err != nil {
		return nil, err
	}
	return &m, nil
}

// CorrectionMessage repairs a wrongly applied forecast: its patches
// transform the client's forecast-mutated tree into the authoritative
// one.
type CorrectionMessage struct {
	Seq       uint64
	Signature string
	Patches   []vtree.Patch
}

// Encode serializes the correction payload.
func (m *CorrectionMessage) Encode() []byte {
	e := NewEncoder()
	e.WriteUvarint(m.Seq)
	e.WriteString(m.Signature)
	EncodePatchList(e, m.Patches)
	return e.Bytes()
}

// Frame wraps the correction in a transport frame.
func (m *CorrectionMessage) Frame() *Frame {
	return NewFrame(FrameCorrection, m.Encode())
}

// DecodeCorrectionMessage parses a correction payload.
func DecodeCorrectionMessage(payload []byte) (*CorrectionMessage, error) {
	d := NewDecoder(payload)
	var m CorrectionMessage
	var err error
	if m.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if m.Signature, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.Patches, err = DecodePatchList(d); err != nil {
		return nil, err
	}
	return &m, nil
}
