package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	// Helper to check if a metric is registered and has the expected name fragment
	// in its descriptor. This is a loose sanity check since promauto metrics are
	// registered to the global default registry.
	checkMetric := func(t *testing.T, name string, collector prometheus.Collector) {
		ch := make(chan prometheus.Metric, 10)
		collector.Collect(ch)
		close(ch)

		var found bool
		for m := range ch {
			desc := m.Desc().String()
			if strings.Contains(desc, name) {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected collector for %q to produce a descriptor containing that name", name)
		}
	}

	t.Run("InboundMessages", func(t *testing.T) {
		InboundMessages.WithLabelValues("chat_message", "ok").Inc()
		val := testutil.ToFloat64(InboundMessages.WithLabelValues("chat_message", "ok"))
		if val < 1 {
			t.Errorf("expected InboundMessages to be at least 1, got %v", val)
		}
		checkMetric(t, "messages_total", InboundMessages)
	})

	t.Run("MessageProcessingDuration", func(t *testing.T) {
		MessageProcessingDuration.WithLabelValues("chat_message").Observe(0.01)
		checkMetric(t, "message_processing_seconds", MessageProcessingDuration)
	})

	t.Run("RoomUsers", func(t *testing.T) {
		RoomUsers.WithLabelValues("room-1").Set(3)
		val := testutil.ToFloat64(RoomUsers.WithLabelValues("room-1"))
		if val != 3 {
			t.Errorf("expected RoomUsers to be 3, got %v", val)
		}
	})

	t.Run("ActiveScreenShares", func(t *testing.T) {
		ActiveScreenShares.Inc()
		val := testutil.ToFloat64(ActiveScreenShares)
		if val < 1 {
			t.Errorf("expected ActiveScreenShares to be at least 1, got %v", val)
		}
		ActiveScreenShares.Dec()
	})

	t.Run("ScreenShareViewers", func(t *testing.T) {
		ScreenShareViewers.WithLabelValues("room-1").Set(2)
		val := testutil.ToFloat64(ScreenShareViewers.WithLabelValues("room-1"))
		if val != 2 {
			t.Errorf("expected ScreenShareViewers to be 2, got %v", val)
		}
	})

	t.Run("HistoryMessagesStored", func(t *testing.T) {
		HistoryMessagesStored.WithLabelValues("room-1").Set(42)
		val := testutil.ToFloat64(HistoryMessagesStored.WithLabelValues("room-1"))
		if val != 42 {
			t.Errorf("expected HistoryMessagesStored to be 42, got %v", val)
		}
	})

	t.Run("HistoryEvictions", func(t *testing.T) {
		HistoryEvictions.WithLabelValues("cap").Inc()
		val := testutil.ToFloat64(HistoryEvictions.WithLabelValues("cap"))
		if val < 1 {
			t.Errorf("expected HistoryEvictions to be at least 1, got %v", val)
		}
	})

	t.Run("RateLimitExceeded", func(t *testing.T) {
		RateLimitExceeded.WithLabelValues("burst").Inc()
		val := testutil.ToFloat64(RateLimitExceeded.WithLabelValues("burst"))
		if val < 1 {
			t.Errorf("expected RateLimitExceeded to be at least 1, got %v", val)
		}
	})

	t.Run("RateLimitSweptConnections", func(t *testing.T) {
		before := testutil.ToFloat64(RateLimitSweptConnections)
		RateLimitSweptConnections.Add(2)
		val := testutil.ToFloat64(RateLimitSweptConnections)
		if val != before+2 {
			t.Errorf("expected RateLimitSweptConnections to increase by 2, got %v", val-before)
		}
	})

	t.Run("ConnectionsRejected", func(t *testing.T) {
		ConnectionsRejected.WithLabelValues("ip_throttled").Inc()
		val := testutil.ToFloat64(ConnectionsRejected.WithLabelValues("ip_throttled"))
		if val < 1 {
			t.Errorf("expected ConnectionsRejected to be at least 1, got %v", val)
		}
	})

	t.Run("CircuitBreakerState", func(t *testing.T) {
		CircuitBreakerState.WithLabelValues("chat-upstream").Set(1)
		val := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("chat-upstream"))
		if val != 1 {
			t.Errorf("expected CircuitBreakerState to be 1, got %v", val)
		}
	})

	t.Run("CircuitBreakerFailures", func(t *testing.T) {
		CircuitBreakerFailures.WithLabelValues("chat-upstream").Inc()
		val := testutil.ToFloat64(CircuitBreakerFailures.WithLabelValues("chat-upstream"))
		if val < 1 {
			t.Errorf("expected CircuitBreakerFailures to be at least 1, got %v", val)
		}
	})
}

func TestIncDecConnection(t *testing.T) {
	before := testutil.ToFloat64(ActiveConnections)
	IncConnection()
	if testutil.ToFloat64(ActiveConnections) != before+1 {
		t.Errorf("expected ActiveConnections to increment")
	}
	DecConnection()
	if testutil.ToFloat64(ActiveConnections) != before {
		t.Errorf("expected ActiveConnections to decrement back")
	}
}
