// Package intent is the client-side estimation engine: it consumes raw
// pointer, scroll, and focus signals, computes closed-form confidence
// that a tracked observable will change state within a lead-time
// window, and pre-fetches patches from the server once confidence
// crosses the arming threshold. Pre-fetched patches wait in a small
// prediction cache and are applied the instant the real observation
// arrives.
package intent
