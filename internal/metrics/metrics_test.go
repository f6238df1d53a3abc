package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCacheHit("protocol")
	m.RecordCacheHit("protocol")
	m.RecordCacheMiss("stats")
	m.IncrementCreated()
	m.IncrementProtocolRetry()
	m.RecordTransition("concluded")
	m.RecordNotification("telegram", nil)
	m.RecordNotification("telegram", errors.New("x"))
	m.IncrementDropped()
	m.SetLiveClients(3)
	m.ObserveOperation("create", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("protocol")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("stats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComplaintsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProtocolRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("concluded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("telegram", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDropped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LiveClients))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCacheHit("x")
		m.RecordCacheMiss("x")
		m.IncrementCreated()
		m.IncrementDeleted()
		m.IncrementProtocolRetry()
		m.RecordTransition("x")
		m.ObserveOperation("x", time.Now())
		m.RecordNotification("x", nil)
		m.IncrementDropped()
		m.SetLiveClients(1)
	})
}
