package protocol

// HandshakeStatus reports the server's verdict on a connection attempt.
type HandshakeStatus uint8

const (
	// HandshakeOK accepts the connection; a resumed session will be
	// followed by replayed patch frames.
	HandshakeOK HandshakeStatus = 0x00
	// HandshakeRestart accepts the connection but could not resume the
	// requested session; the client must drop local state and treat the
	// session as fresh.
	HandshakeRestart HandshakeStatus = 0x01
	// HandshakeRejected refuses the connection.
	HandshakeRejected HandshakeStatus = 0x02
)

func (s HandshakeStatus) String() string {
	switch s {
	case HandshakeOK:
		return "ok"
	case HandshakeRestart:
		return "restart"
	case HandshakeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ClientHello is the first frame a client sends. SessionID and LastSeq
// are zero-valued on a fresh connection and carry the previous
// session's identity on a resume attempt.
type ClientHello struct {
	SessionID string
	LastSeq   uint64
}

// Encode serializes the hello payload.
func (m *ClientHello) Encode() []byte {
	e := NewEncoder()
	e.WriteString(m.SessionID)
	e.WriteUvarint(m.LastSeq)
	return e.Bytes()
}

// Frame wraps the hello in a transport frame.
func (m *ClientHello) Frame() *Frame {
	return NewFrame(FrameHandshake, m.Encode())
}

// DecodeClientHello parses a client hello payload.
func DecodeClientHello(payload []byte) (*ClientHello, error) {
	d := NewDecoder(payload)
	var m ClientHello
	var err error
	if m.SessionID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.LastSeq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ServerHello answers a ClientHello.
type ServerHello struct {
	Status    HandshakeStatus
	SessionID string
	Seq       uint64
}

// Encode serializes the hello payload.
func (m *ServerHello) Encode() []byte {
	e := NewEncoder()
	e.WriteByte(byte(m.Status))
	e.WriteString(m.SessionID)
	e.WriteUvarint(m.Seq)
	return e.Bytes()
}

// Frame wraps the hello in a transport frame.
func (m *ServerHello) Frame() *Frame {
	return NewFrame(FrameHandshake, m.Encode())
}

// DecodeServerHello parses a server hello payload.
func DecodeServerHello(payload []byte) (*ServerHello, error) {
	d := NewDecoder(payload)
	var m ServerHello
	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	m.Status = HandshakeStatus(status)
	if m.SessionID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ErrorMessage reports a request-scoped failure without tearing down
// the connection.
type ErrorMessage struct {
	Code    string
	Message string
}

// Encode serializes the error payload.
func (m *ErrorMessage) Encode() []byte {
	e := NewEncoder()
	e.WriteString(m.Code)
	e.WriteString(m.Message)
	return e.Bytes()
}

// Frame wraps the error in a transport frame.
func (m *ErrorMessage) Frame() *Frame {
	return NewFrame(FrameError, m.Encode())
}

// DecodeErrorMessage parses an error payload.
func DecodeErrorMessage(payload []byte) (*ErrorMessage, error) {
	d := NewDecoder(payload)
	var m ErrorMessage
	var err error
	if m.Code, err = d.ReadString(); err != nil {
		return nil, err
	}
	if m.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	return &m, nil
}
