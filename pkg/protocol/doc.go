// Package protocol defines the binary wire format between server and
// client: a compact varint-based codec for view-tree nodes, patch
// lists, and the forecast request/response, authoritative-patch, and
// correction messages, framed with a fixed 8-byte header.
//
// Encoding is deterministic (attributes in sorted key order), which
// lets the forecasting store use serialized size as its memory unit.
package protocol
