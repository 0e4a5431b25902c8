package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/presage-dev/presage/pkg/protocol"
)

// frameLabel maps a frame type to its metric label value.
func frameLabel(ft protocol.FrameType) string {
	switch ft {
	case protocol.FrameHandshake:
		return "handshake"
	case protocol.FrameForecastRequest:
		return "forecast_request"
	case protocol.FrameForecastResponse:
		return "forecast_response"
	case protocol.FramePatches:
		return "patches"
	case protocol.FrameCorrection:
		return "correction"
	case protocol.FrameError:
		return "error"
	default:
		return "unknown"
	}
}

// Metrics exposes transport-level behavior to Prometheus.
type Metrics struct {
	Sessions      prometheus.Gauge
	Frames        *prometheus.CounterVec // labels: type, direction = in|out
	Corrections   prometheus.Counter
	ApplyDuration prometheus.Histogram
}

// NewMetrics registers the service metrics on reg. A nil reg falls
// back to the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "presage",
			Subsystem: "server",
			Name:      "sessions",
			Help:      "Sessions currently known, attached or detached.",
		}),
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presage",
			Subsystem: "server",
			Name:      "frames_total",
			Help:      "Transport frames by type and direction.",
		}, []string{"type", "direction"}),
		Corrections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "presage",
			Subsystem: "server",
			Name:      "corrections_total",
			Help:      "Correction frames sent after a wrong forecast.",
		}),
		ApplyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "presage",
			Subsystem: "server",
			Name:      "apply_duration_seconds",
			Help:      "Render plus reconcile time per state change batch.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
}
