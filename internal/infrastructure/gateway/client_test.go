package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"camlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "secret", 2*time.Second, zap.NewNop().Sugar()).(*Client)
	// keep test failures fast
	c.retryCfg.InitialDelay = time.Millisecond
	c.retryCfg.MaxDelay = 2 * time.Millisecond
	return c, srv
}

func TestPing(t *testing.T) {
	var gotAuth atomic.Value
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		require.Equal(t, "/api/v1/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}))

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "Bearer secret", gotAuth.Load())
}

func TestPingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(srv.URL, "", time.Second, zap.NewNop().Sugar()).(*Client)
	c.retryCfg.InitialDelay = time.Millisecond

	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrGatewayUnreachable)
}

func TestListMonitors(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/monitors", r.URL.Path)
		w.Write([]byte(`{"monitors":[
			{"id":"m1","name":"front door","stream_id":"cam1","enabled":true},
			{"id":"m2","name":"garage","stream_id":"cam2","enabled":false}
		]}`))
	}))

	monitors, err := c.ListMonitors(context.Background())
	require.NoError(t, err)
	require.Len(t, monitors, 2)
	assert.Equal(t, domain.MonitorID("m1"), monitors[0].ID)
	assert.Equal(t, domain.StreamID("cam2"), monitors[1].StreamID)
}

func TestGetMonitorNotFound(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such monitor", http.StatusNotFound)
	}))

	_, err := c.GetMonitor(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrMonitorNotFound)
	// 4xx responses must not be retried
	assert.Equal(t, int32(1), calls.Load())
}

func TestListEventsQueryParams(t *testing.T) {
	after := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "m1", q.Get("monitor_id"))
		require.Equal(t, "2026-08-01T12:00:00Z", q.Get("after"))
		require.Equal(t, "25", q.Get("limit"))
		w.Write([]byte(`{"events":[{"id":"e1","monitor_id":"m1","cause":"motion"}]}`))
	}))

	events, err := c.ListEvents(context.Background(), domain.EventQuery{
		MonitorID: "m1",
		After:     after,
		Limit:     25,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "motion", events[0].Cause)
}

func TestListMonitorsIsCached(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"monitors":[{"id":"m1","name":"front door","stream_id":"cam1","enabled":true}]}`))
	}))

	for i := 0; i < 3; i++ {
		monitors, err := c.ListMonitors(context.Background())
		require.NoError(t, err)
		require.Len(t, monitors, 1)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"monitors":[]}`))
	}))

	monitors, err := c.ListMonitors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, monitors)
	assert.Equal(t, int32(3), calls.Load())
}
