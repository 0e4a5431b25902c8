// Package errors provides structured errors with registered codes for
// the presage runtime.
//
// Errors carry a category that determines propagation: structural
// errors halt the affected render cycle, everything else is absorbed
// locally with statistics and logging.
package errors
