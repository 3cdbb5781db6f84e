package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chess"

var (
	connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Current number of open client connections",
	})

	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Client messages received, by type",
	}, []string{"type"})

	errorReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "error_replies_total",
		Help:      "Error replies sent to clients, by reason",
	}, []string{"reason"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Login attempts, by result",
	}, []string{"result"})

	queueWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "matchmaking_waiting",
		Help:      "Players currently waiting in the matchmaking queue",
	})

	matchesMade = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_total",
		Help:      "Pairs produced by matchmaking",
	})

	matchWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_wait_seconds",
		Help:      "Time the requesting player waited before being matched",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
	})

	gamesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "games_active",
		Help:      "Games currently in progress",
	})

	gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_finished_total",
		Help:      "Games that left the active set, by result",
	}, []string{"result"})

	panicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "panics_recovered_total",
		Help:      "Handler panics caught and turned into error replies, by surface",
	}, []string{"surface"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of admin HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of admin HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// PanicRecovered records a handler panic on surface (http or protocol)
func PanicRecovered(surface string) { panicsRecovered.WithLabelValues(surface).Inc() }

// ConnectionOpened records a new client connection
func ConnectionOpened() { connections.Inc() }

// ConnectionClosed records a client connection going away
func ConnectionClosed() { connections.Dec() }

// MessageReceived counts an inbound message by type
func MessageReceived(msgType string) { messagesReceived.WithLabelValues(msgType).Inc() }

// ErrorReplied counts an error reply by reason
func ErrorReplied(reason string) { errorReplies.WithLabelValues(reason).Inc() }

// LoginAttempted counts a login by outcome
func LoginAttempted(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	logins.WithLabelValues(result).Inc()
}

// QueueJoined records a player entering the matchmaking queue
func QueueJoined() { queueWaiting.Inc() }

// QueueLeft records a player leaving the matchmaking queue for any reason
func QueueLeft() { queueWaiting.Dec() }

// MatchMade records a pairing and how long the requester waited
func MatchMade(wait time.Duration) {
	matchesMade.Inc()
	matchWait.Observe(wait.Seconds())
}

// GameStarted records a new active game
func GameStarted() { gamesActive.Inc() }

// GameFinished records a game leaving the active set.
// result is the winner for completed games or "abandoned".
func GameFinished(result string) {
	gamesActive.Dec()
	gamesFinished.WithLabelValues(result).Inc()
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records admin request metrics with Prometheus labels.
// Paths are labelled with the route template when the router provides one.
func Middleware(routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if routeName != nil {
				if name := routeName(r); name != "" {
					path = name
				}
			}
			labels := prometheus.Labels{
				"method": r.Method,
				"path":   path,
				"status": strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
