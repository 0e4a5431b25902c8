package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/presage-dev/presage/pkg/vtree"
)

// Config holds service settings. Zero values fall back to defaults.
type Config struct {
	// Addr is the listen address for Run.
	Addr string

	// MaxDiffConcurrency bounds simultaneous reconciliations across all
	// sessions.
	MaxDiffConcurrency int

	// PatchHistory is how many authoritative patch frames each session
	// retains for resume replay.
	PatchHistory int

	// ReadLimit is the maximum websocket message size in bytes.
	ReadLimit int64

	// HandshakeTimeout bounds the wait for the client hello.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	// CheckOrigin overrides the upgrader's origin check. Nil keeps the
	// same-origin default.
	CheckOrigin func(*http.Request) bool

	// InitialTree is the view tree new sessions start from. Nil means a
	// Null root.
	InitialTree *vtree.Node

	// ClientDefaults, when set, is served as JSON at /client-config so
	// thin clients can fetch their intent thresholds from the server.
	ClientDefaults []byte

	// Logger receives service logs. Nil falls back to slog.Default.
	Logger *slog.Logger

	// Registry receives service metrics. Nil falls back to the default
	// registerer.
	Registry *prometheus.Registry
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8420"
	}
	if c.MaxDiffConcurrency <= 0 {
		c.MaxDiffConcurrency = 16
	}
	if c.PatchHistory <= 0 {
		c.PatchHistory = 64
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.InitialTree == nil {
		c.InitialTree = vtree.Null(vtree.ChildPosition(0))
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
