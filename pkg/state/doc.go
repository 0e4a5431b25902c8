// Package state models state-change events and their generalized
// signatures. A signature describes the shape of a change, not its
// literal values, which is what lets the forecasting store recognize
// "the same kind of change" across different concrete updates.
package state
