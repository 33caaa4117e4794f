package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/code-practice/internal/metrics"
	"github.com/koopa0/system-design/code-practice/internal/room"
	"github.com/koopa0/system-design/code-practice/internal/testutils"
)

// TestMetrics_ObserveRoomLifecycle 測試房間活動轉成指標
func TestMetrics_ObserveRoomLifecycle(t *testing.T) {
	m := metrics.New()
	c := room.NewCoordinator(testutils.TestLogger(), room.WithObserver(m))

	for _, id := range []room.ConnID{"a", "b", "c"} {
		require.NoError(t, c.Connect(id, room.SenderFunc(func(room.Event) {})))
	}
	require.NoError(t, c.Join("a", "r1"))
	require.NoError(t, c.Join("b", "r1"))
	require.NoError(t, c.Join("c", "r2"))
	require.NoError(t, c.Edit("b", "r1", "x"))

	expected := `
# HELP codepractice_active_rooms Number of rooms with at least one member
# TYPE codepractice_active_rooms gauge
codepractice_active_rooms 2
# HELP codepractice_room_members Room members by role
# TYPE codepractice_room_members gauge
codepractice_room_members{role="mentor"} 2
codepractice_room_members{role="student"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"codepractice_active_rooms", "codepractice_room_members"))

	c.Disconnect("a")
	require.NoError(t, c.Leave("b", "r1"))
	c.Disconnect("c")

	expected = `
# HELP codepractice_active_rooms Number of rooms with at least one member
# TYPE codepractice_active_rooms gauge
codepractice_active_rooms 0
# HELP codepractice_room_members Room members by role
# TYPE codepractice_room_members gauge
codepractice_room_members{role="mentor"} 0
codepractice_room_members{role="student"} 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"codepractice_active_rooms", "codepractice_room_members"))
}

// TestMetrics_Counters 測試計數器
func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.MessageDropped()
	m.CommandRejected("NOT_MEMBER")
	m.CommandRejected("NOT_MEMBER")
	m.ObserveHTTP(http.MethodGet, "GET /api/code-blocks", http.StatusOK, 3*time.Millisecond)

	expected := `
# HELP codepractice_commands_rejected_total Rejected client commands by error code
# TYPE codepractice_commands_rejected_total counter
codepractice_commands_rejected_total{code="NOT_MEMBER"} 2
# HELP codepractice_outbound_dropped_total Outbound events dropped because a connection queue was full
# TYPE codepractice_outbound_dropped_total counter
codepractice_outbound_dropped_total 1
# HELP codepractice_websocket_connections Open WebSocket connections
# TYPE codepractice_websocket_connections gauge
codepractice_websocket_connections 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"codepractice_commands_rejected_total",
		"codepractice_outbound_dropped_total",
		"codepractice_websocket_connections"))

	count, err := testutil.GatherAndCount(m.Registry(), "codepractice_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestMetrics_Handler 測試 /metrics 輸出
func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.MessageDropped()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "codepractice_outbound_dropped_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
