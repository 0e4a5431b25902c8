package forecast

import (
	"log/slog"

	"github.com/presage-dev/presage/pkg/reconcile"
	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

// Verdict is the outcome of verifying a served forecast against the
// authoritative reconciliation result.
type Verdict struct {
	// Correct is true when the served patches matched the authoritative
	// ones structurally and by value.
	Correct bool

	// Correction transforms the tree as mutated by the wrong forecast
	// into the tree the authoritative change produces. Empty when
	// Correct is true.
	Correction []vtree.Patch
}

// Verifier closes the loop between served forecasts and authoritative
// reconciliations. It owns the confidence updates: every verification
// feeds an Observe with the verdict, so confidence trends toward 1.0
// for genuinely deterministic signatures and decays for noisy ones.
type Verifier struct {
	store *Store
	log   *slog.Logger
}

// NewVerifier creates a verifier bound to a store.
func NewVerifier(store *Store, log *slog.Logger) *Verifier {
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{store: store, log: log}
}

// Verify compares a served forecast with the authoritative patch list
// for the same signature. before must be the tree both patch lists
// were computed against; the correction is a concrete diff between the
// two mutated trees, never a comparison of abstract signatures.
//
// Verify must run only once the authoritative result for this exact
// change is known, never against a stale before tree.
func (v *Verifier) Verify(sig state.Signature, served, authoritative []vtree.Patch, before *vtree.Node) (*Verdict, error) {
	if vtree.PatchesEqual(served, authoritative) {
		correct := true
		if err := v.store.Observe(sig, authoritative, &correct); err != nil {
			return nil, err
		}
		return &Verdict{Correct: true}, nil
	}

	forecastTree, err := vtree.Apply(before, served)
	if err != nil {
		return nil, err
	}
	authTree, err := vtree.Apply(before, authoritative)
	if err != nil {
		return nil, err
	}
	correction, err := reconcile.Diff(forecastTree, authTree)
	if err != nil {
		return nil, err
	}

	incorrect := false
	if err := v.store.Observe(sig, authoritative, &incorrect); err != nil {
		return nil, err
	}

	v.log.Debug("forecast mismatch",
		"signature", sig.Key(),
		"servedPatches", len(served),
		"authoritativePatches", len(authoritative),
		"correctionPatches", len(correction))

	return &Verdict{Correct: false, Correction: correction}, nil
}

// Record feeds an authoritative result for which no forecast was
// served. When the signature is already known, the stored patches are
// checked against the authoritative ones so confidence keeps tracking
// reality even while the entry sits below the serving floor.
func (v *Verifier) Record(sig state.Signature, authoritative []vtree.Patch) error {
	key := sig.Key()
	sh := v.store.shardFor(key)

	sh.mu.Lock()
	prior, known := sh.entries[key]
	var stillCorrect *bool
	if known {
		c := vtree.PatchesEqual(prior.Patches, authoritative)
		stillCorrect = &c
	}
	sh.mu.Unlock()

	return v.store.Observe(sig, authoritative, stillCorrect)
}
