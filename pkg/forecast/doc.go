// Package forecast implements the server-side pattern cache: learned
// associations from state-change signatures to patch lists, scored by
// verified accuracy, bounded by a byte budget with pluggable eviction,
// and closed by a verification loop that emits corrections when a
// served forecast turns out wrong.
package forecast
