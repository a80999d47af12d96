package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.IncReceived()
	m.IncDelivered()
	m.IncFailed("delivery_error")
	m.IncFailed("delivery_error")
	m.IncTokenCacheHit()
	m.ObserveTokenExchange("success", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.received))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.delivered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failed.WithLabelValues("delivery_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("success")))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.IncDelivered()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "push_delivered_total 1")
}
