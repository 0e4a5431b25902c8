// Package server wires the forecasting store, the reconciler pool, and
// the verification loop behind an HTTP/WebSocket transport. Each
// connected client gets a Session holding its authoritative view tree;
// state changes flow in from the application, patches and corrections
// flow out to the client as binary frames.
package server
