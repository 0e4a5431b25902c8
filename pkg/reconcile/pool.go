package reconcile

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/presage-dev/presage/pkg/vtree"
)

// Pool bounds the number of reconciliations running at once. Each unit
// of work is one independent view-tree recomputation; units share no
// mutable state with each other.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool allowing up to max concurrent diffs.
func NewPool(max int64) *Pool {
	if max <= 0 {
		max = 1
	}
	return &Pool{sem: semaphore.NewWeighted(max)}
}

// Diff runs a reconciliation under the pool's concurrency limit.
// It blocks until a slot is free or ctx is done.
func (p *Pool) Diff(ctx context.Context, before, after *vtree.Node) ([]vtree.Patch, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return Diff(before, after)
}

// TryDiff runs a reconciliation if a slot is immediately available.
// Returns ok=false without diffing when the pool is saturated.
func (p *Pool) TryDiff(before, after *vtree.Node) ([]vtree.Patch, bool, error) {
	if !p.sem.TryAcquire(1) {
		return nil, false, nil
	}
	defer p.sem.Release(1)
	patches, err := Diff(before, after)
	return patches, true, err
}
