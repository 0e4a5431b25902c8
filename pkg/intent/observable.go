package intent

import "time"

// Kind is the observation type a candidate predicts.
type Kind uint8

const (
	KindHover Kind = iota
	KindVisibility
	KindFocus
)

func (k Kind) String() string {
	switch k {
	case KindVisibility:
		return "visibility"
	case KindFocus:
		return "focus"
	default:
		return "hover"
	}
}

// Phase is the per-observable state machine. Transitions are strictly
// ordered Idle -> Armed -> Requested -> Resolved; no observable skips
// Armed. Resolved observables are eligible to arm again.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseRequested
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseArmed:
		return "armed"
	case PhaseRequested:
		return "requested"
	case PhaseResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// Candidate describes one element the engine watches. The transformer
// registers candidates with the signature and predicted value the
// server side needs to answer a forecast request.
type Candidate struct {
	// ID identifies the observable; unique within a view.
	ID string

	// Kind selects the confidence function.
	Kind Kind

	// Box is the bounding box, used by hover candidates.
	Box Rect

	// Top is the document-coordinate top edge, used by visibility
	// candidates.
	Top float64

	// NextInTabOrder marks the deterministic focus successor.
	NextInTabOrder bool

	// Signature is the state-change signature key the predicted
	// observation maps to on the server.
	Signature string

	// PredictedValue is the value the observable is expected to take.
	PredictedValue string

	// Related lists topologically related candidate IDs eligible for a
	// piggybacked request when this candidate's confidence is very high.
	Related []string
}

// observable is a candidate plus its runtime state. Owned by the
// engine goroutine; never shared.
type observable struct {
	candidate   Candidate
	phase       Phase
	confidence  float64
	requestedAt time.Time
}

func (o *observable) armable() bool {
	return o.phase == PhaseIdle || o.phase == PhaseResolved
}
