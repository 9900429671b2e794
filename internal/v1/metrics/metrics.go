package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the room coordination server.
//
// Naming convention: namespace_subsystem_name
// - namespace: room_coordinator (application-level grouping)
// - subsystem: websocket, room, screenshare, history, ratelimit (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, viewers)
// - Counter: Cumulative events (messages processed, evictions)
// - Histogram: Latency distributions (dispatch time)

var (
	// ActiveConnections tracks the current number of open socket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "room_coordinator",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active socket connections",
	})

	// ActiveRooms tracks the current number of rooms in the room registry.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "room_coordinator",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomUsers tracks the number of users in each room (GaugeVec with room_id label).
	RoomUsers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "room_coordinator",
		Subsystem: "room",
		Name:      "users_count",
		Help:      "Number of users currently in each room",
	}, []string{"room_id"})

	// InboundMessages tracks the total number of inbound messages processed (CounterVec).
	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "room_coordinator",
		Subsystem: "websocket",
		Name:      "messages_total",
		Help:      "Total inbound messages processed",
	}, []string{"kind", "status"})

	// MessageProcessingDuration tracks the time spent dispatching an inbound message (HistogramVec).
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "room_coordinator",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent dispatching an inbound message",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"kind"})

	// ActiveScreenShares tracks the number of rooms with an ongoing screen share.
	ActiveScreenShares = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "room_coordinator",
		Subsystem: "screenshare",
		Name:      "active_total",
		Help:      "Current number of rooms with an active screen share",
	})

	// ScreenShareViewers tracks the viewer count for the active share in a room.
	ScreenShareViewers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "room_coordinator",
		Subsystem: "screenshare",
		Name:      "viewers_count",
		Help:      "Number of viewers attached to a room's active screen share",
	}, []string{"room_id"})

	// HistoryMessagesStored tracks the current length of a room's replay buffer.
	HistoryMessagesStored = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "room_coordinator",
		Subsystem: "history",
		Name:      "messages_stored",
		Help:      "Number of messages retained in a room's replay buffer",
	}, []string{"room_id"})

	// HistoryEvictions counts history evictions by reason (cap, ttl, idle-room).
	HistoryEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "room_coordinator",
		Subsystem: "history",
		Name:      "evictions_total",
		Help:      "Total history entries or rooms evicted",
	}, []string{"reason"})

	// RateLimitExceeded counts messages denied by the per-connection rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "room_coordinator",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total inbound messages denied by the rate limiter",
	}, []string{"reason"})

	// RateLimitSweptConnections counts idle limiter entries dropped by the
	// periodic rate-limit sweep.
	RateLimitSweptConnections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "room_coordinator",
		Subsystem: "ratelimit",
		Name:      "swept_connections_total",
		Help:      "Total idle rate-limiter entries dropped by the periodic sweep",
	})

	// ConnectionsRejected counts connections refused before or during upgrade.
	ConnectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "room_coordinator",
		Subsystem: "websocket",
		Name:      "connections_rejected_total",
		Help:      "Total connection attempts rejected before a session was established",
	}, []string{"reason"})

	// CircuitBreakerState tracks the breaker state per upstream used by the sibling HTTP API.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "room_coordinator",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"upstream"})

	// CircuitBreakerFailures tracks the total number of requests rejected by the circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "room_coordinator",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"upstream"})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
