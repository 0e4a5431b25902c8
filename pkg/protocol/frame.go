package protocol

import (
	"encoding/binary"
	"io"

	"github.com/presage-dev/presage/internal/errors"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 8

	// MaxPayloadSize is the maximum payload size. It matches the
	// decoder's single-field allocation cap, so any payload the header
	// admits is one the decoder will read.
	MaxPayloadSize = MaxAllocation
)

// FrameType identifies the kind of message carried by a frame.
type FrameType uint8

const (
	FrameHandshake        FrameType = 0x00 // Connection setup
	FrameForecastRequest  FrameType = 0x01 // Client -> Server: predicted observable
	FrameForecastResponse FrameType = 0x02 // Server -> Client: cached patches + confidence
	FramePatches          FrameType = 0x03 // Server -> Client: authoritative patches
	FrameCorrection       FrameType = 0x04 // Server -> Client: forecast correction
	FrameError            FrameType = 0x05 // Server -> Client: error report
)

// String returns the frame type name.
func (ft FrameType) String() string {
	switch ft {
	case FrameHandshake:
		return "Handshake"
	case FrameForecastRequest:
		return "ForecastRequest"
	case FrameForecastResponse:
		return "ForecastResponse"
	case FramePatches:
		return "Patches"
	case FrameCorrection:
		return "Correction"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

func (ft FrameType) known() bool {
	return ft <= FrameError
}

// Frame is one transport message: an 8-byte header followed by the
// payload.
//
// Wire format: type (1 byte), reserved (3 bytes, zero), payload length
// (4 bytes big-endian), payload.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// NewFrame creates a frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode returns the frame bytes including the header.
func (f *Frame) Encode() []byte {
	length := len(f.Payload)
	buf := make([]byte, FrameHeaderSize+length)
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint32(buf[4:FrameHeaderSize], uint32(length))
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame parses a frame from data. The payload is copied, so the
// frame stays valid after data is reused.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, errors.New("E030").WithDetail("header needs %d bytes, have %d", FrameHeaderSize, len(data))
	}

	ft := FrameType(data[0])
	if !ft.known() {
		return nil, errors.New("E031").WithDetail("type byte 0x%02x", data[0])
	}
	length := int(binary.BigEndian.Uint32(data[4:FrameHeaderSize]))
	if length > MaxPayloadSize {
		return nil, errors.New("E035").WithDetail("payload declares %d bytes, cap is %d", length, MaxPayloadSize)
	}
	if len(data) < FrameHeaderSize+length {
		return nil, errors.New("E030").WithDetail("payload declares %d bytes, have %d", length, len(data)-FrameHeaderSize)
	}

	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+length])
	return &Frame{Type: ft, Payload: payload}, nil
}

// ReadFrame reads one complete frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	ft := FrameType(header[0])
	if !ft.known() {
		return nil, errors.New("E031").WithDetail("type byte 0x%02x", header[0])
	}
	length := int(binary.BigEndian.Uint32(header[4:FrameHeaderSize]))
	if length > MaxPayloadSize {
		return nil, errors.New("E035").WithDetail("payload declares %d bytes, cap is %d", length, MaxPayloadSize)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, errors.New("E030").Wrap(err)
		}
	}
	return &Frame{Type: ft, Payload: payload}, nil
}

// WriteFrame writes one complete frame to w.
func WriteFrame(w io.Writer, f *Frame) error {
	if err := f.CheckSize(); err != nil {
		return err
	}
	_, err := w.Write(f.Encode())
	return err
}

// CheckSize reports whether the frame's payload fits the header cap.
// Callers that encode frames themselves must check before sending;
// receivers reject oversized declarations with the same code.
func (f *Frame) CheckSize() error {
	if len(f.Payload) > MaxPayloadSize {
		return errors.New("E035").WithDetail("payload is %d bytes, cap is %d", len(f.Payload), MaxPayloadSize)
	}
	return nil
}
