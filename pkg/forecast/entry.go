package forecast

import (
	"time"

	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

// Entry is one learned pattern: a state-change signature mapped to the
// patch list it produced last time, plus the accuracy bookkeeping that
// drives confidence. Entries are owned exclusively by the Store and
// must not be mutated by callers.
type Entry struct {
	Signature state.Signature
	Patches   []vtree.Patch

	// Confidence is correctCount/observationCount once verification has
	// run at least once; before that it holds the creation seed.
	Confidence       float64
	ObservationCount uint64
	CorrectCount     uint64

	LastAccessed time.Time
	CreatedAt    time.Time

	// SizeBytes is the serialized size of Patches, the unit the memory
	// budget is accounted in.
	SizeBytes int64
}
