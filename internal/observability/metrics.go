package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quizlink"

// Label values used by the link and quiz recorders.
const (
	RoleHost  = "host"
	RoleGuest = "guest"

	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	linkBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "blocks_total",
			Help:      "Radio blocks written or received.",
		},
		[]string{"role", "direction"},
	)
	linkMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "messages_total",
			Help:      "Complete framed messages sent or reassembled.",
		},
		[]string{"role", "direction"},
	)
	linkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "errors_total",
			Help:      "Link errors by kind (transport, framing, decode, refused).",
		},
		[]string{"role", "kind"},
	)
	quizAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "answers_total",
			Help:      "Answers accepted by the host.",
		},
		[]string{"correct"},
	)
	quizRounds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "rounds_total",
			Help:      "Rounds resolved by the host.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, linkBlocks, linkMessages, linkErrors, quizAnswers, quizRounds)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordLinkBlock(role, direction string) {
	RegisterMetrics()
	linkBlocks.WithLabelValues(role, direction).Inc()
}

func RecordLinkMessage(role, direction string) {
	RegisterMetrics()
	linkMessages.WithLabelValues(role, direction).Inc()
}

func RecordLinkError(role, kind string) {
	RegisterMetrics()
	linkErrors.WithLabelValues(role, kind).Inc()
}

func RecordAnswer(correct bool) {
	RegisterMetrics()
	quizAnswers.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func RecordRound() {
	RegisterMetrics()
	quizRounds.Inc()
}
