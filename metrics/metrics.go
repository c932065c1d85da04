package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "direct_chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "direct_chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "direct_chat_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"kind"}, // "text", "image" or "mixed"
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "direct_chat_deliveries_total",
			Help: "Push delivery attempts by outcome",
		},
		[]string{"result"}, // "pushed", "offline" or "dropped"
	)

	MediaUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "direct_chat_media_upload_duration_seconds",
			Help:    "Media store upload latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "direct_chat_rate_limit_hits_total",
			Help: "Sends rejected by the rate limiter",
		},
	)

	// Connection metrics
	ConnectedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "direct_chat_connected_users",
			Help: "Users with a bound push channel",
		},
	)
)

// MessageKind labels a message for MessagesSent.
func MessageKind(text, image string) string {
	switch {
	case text != "" && image != "":
		return "mixed"
	case image != "":
		return "image"
	default:
		return "text"
	}
}
