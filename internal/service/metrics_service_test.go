package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsServiceFanoutCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveNotificationFanout(FanoutModeParents, 2, 1, 20*time.Millisecond)
	m.ObserveNotificationFanout(FanoutModeParents, 3, 0, 10*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `notification_fanout_recipients_total{mode="parents",outcome="sent"} 5`)
	assert.Contains(t, body, `notification_fanout_recipients_total{mode="parents",outcome="failed"} 1`)
}

func TestMetricsServiceCacheAndTransitions(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCampaignTransition("FINISHED")
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/campaigns", http.StatusOK, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `cache_lookups_total{result="miss"} 2`)
	assert.Contains(t, body, `campaign_transitions_total{status="FINISHED"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/campaigns",status="200"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveNotificationFanout(FanoutModeStaff, 1, 0, time.Millisecond)
	m.RecordDroppedJob()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
