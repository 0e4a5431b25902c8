// Package presage is the public API for the predictive patch engine.
//
// This is the recommended import for applications embedding presage:
//
//	import "github.com/presage-dev/presage"
//
// Usage:
//
//	store := presage.NewStore(presage.DefaultStoreConfig())
//	svc := presage.NewService(presage.ServiceConfig{}, store, myRenderer)
//	http.ListenAndServe(":8420", svc.Router())
package presage

import (
	"context"

	"github.com/presage-dev/presage/pkg/forecast"
	"github.com/presage-dev/presage/pkg/intent"
	"github.com/presage-dev/presage/pkg/reconcile"
	"github.com/presage-dev/presage/pkg/server"
	"github.com/presage-dev/presage/pkg/state"
	"github.com/presage-dev/presage/pkg/vtree"
)

// =============================================================================
// View trees and patches (re-export from pkg/vtree)
// =============================================================================

// Node is one element, text run, or null placeholder in a view tree.
type Node = vtree.Node

// Patch is one mutation step from one tree version to the next.
type Patch = vtree.Patch

// Path addresses a node by its chain of position IDs.
type Path = vtree.Path

// PositionID is a gap-numbered, creation-stable sibling identifier.
type PositionID = vtree.PositionID

// Element creates an element node.
var Element = vtree.Element

// Text creates a text node.
var Text = vtree.Text

// Null creates a placeholder node for an absent conditional branch.
var Null = vtree.Null

// Apply applies a patch list to a tree and returns the patched tree.
var Apply = vtree.Apply

// =============================================================================
// Reconciliation (re-export from pkg/reconcile)
// =============================================================================

// Diff computes the patch list transforming before into after.
var Diff = reconcile.Diff

// DiffContext bounds concurrent reconciliations through a shared pool.
func DiffContext(ctx context.Context, pool *reconcile.Pool, before, after *Node) ([]Patch, error) {
	return pool.Diff(ctx, before, after)
}

// NewDiffPool creates a pool admitting max concurrent reconciliations.
var NewDiffPool = reconcile.NewPool

// =============================================================================
// State changes and signatures (re-export from pkg/state)
// =============================================================================

// Change records one state key transition inside a component.
type Change = state.Change

// Signature is the canonical cache key for a state change batch.
type Signature = state.Signature

// NewSignature builds the signature for a batch of changes.
var NewSignature = state.NewSignature

// =============================================================================
// Forecasting store (re-export from pkg/forecast)
// =============================================================================

// Store is the signature-keyed cache of learned patch patterns.
type Store = forecast.Store

// StoreConfig configures the forecasting store.
type StoreConfig = forecast.Config

// NewStore creates a forecasting store.
var NewStore = forecast.NewStore

// DefaultStoreConfig returns the default store configuration.
var DefaultStoreConfig = forecast.DefaultConfig

// Verifier checks served forecasts against authoritative patches.
type Verifier = forecast.Verifier

// =============================================================================
// Transport service (re-export from pkg/server)
// =============================================================================

// Service owns the store, the reconcile pool, and all client sessions.
type Service = server.Service

// ServiceConfig configures the transport service.
type ServiceConfig = server.Config

// Session is one client's connection state.
type Session = server.Session

// Renderer produces the next authoritative tree for a change batch.
type Renderer = server.Renderer

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc = server.RendererFunc

// NewService wires a service around a store and a renderer.
var NewService = server.NewService

// =============================================================================
// Intent estimation (re-export from pkg/intent)
// =============================================================================

// IntentEngine predicts user interactions and requests forecasts ahead
// of them.
type IntentEngine = intent.Engine

// IntentConfig configures the intent engine.
type IntentConfig = intent.Config

// Candidate is one observable interaction target.
type Candidate = intent.Candidate

// NewIntentEngine creates an intent engine.
var NewIntentEngine = intent.NewEngine

// DefaultIntentConfig returns the default intent configuration.
var DefaultIntentConfig = intent.DefaultConfig
