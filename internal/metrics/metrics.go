// Package metrics 提供 Prometheus 指標
//
// 每個 Metrics 擁有自己的 Registry，測試之間不會互相污染。
// Metrics 同時實作 room.Observer，房間活動直接轉成指標。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koopa0/system-design/code-practice/internal/room"
)

const namespace = "codepractice"

// Metrics 指標集合
type Metrics struct {
	registry *prometheus.Registry

	rooms       prometheus.Gauge
	members     *prometheus.GaugeVec
	connections prometheus.Gauge
	activities  *prometheus.CounterVec
	dropped     prometheus.Counter
	rejected    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New 創建指標集合（含 Go runtime 與 process 指標）
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms with at least one member",
		}),
		members: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_members",
			Help:      "Room members by role",
		}, []string{"role"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open WebSocket connections",
		}),
		activities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_activities_total",
			Help:      "Accepted room operations by kind",
		}, []string{"kind"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_dropped_total",
			Help:      "Outbound events dropped because a connection queue was full",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Rejected client commands by error code",
		}, []string{"code"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "path"}),
	}
}

// Handler /metrics 端點
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 底層 Registry（測試用）
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe 實作 room.Observer
func (m *Metrics) Observe(a room.Activity) {
	m.activities.WithLabelValues(string(a.Kind)).Inc()

	switch a.Kind {
	case room.ActivityJoined:
		// 導師只會在建立房間時產生
		if a.Role == room.RoleMentor {
			m.rooms.Inc()
		}
		m.members.WithLabelValues(string(a.Role)).Inc()
	case room.ActivityLeft, room.ActivityDisconnected:
		if a.Role != room.RoleNone {
			m.members.WithLabelValues(string(a.Role)).Dec()
		}
		if a.RoomClosed() {
			m.rooms.Dec()
		}
	}
}

// ConnOpened WebSocket 連線建立
func (m *Metrics) ConnOpened() { m.connections.Inc() }

// ConnClosed WebSocket 連線關閉
func (m *Metrics) ConnClosed() { m.connections.Dec() }

// MessageDropped 輸出佇列滿而丟棄事件
func (m *Metrics) MessageDropped() { m.dropped.Inc() }

// CommandRejected 指令被拒絕
func (m *Metrics) CommandRejected(code string) {
	m.rejected.WithLabelValues(code).Inc()
}

// ObserveHTTP 記錄一次 HTTP 請求
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
