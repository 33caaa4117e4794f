// Package handler 提供 HTTP API
//
// 路由（Go 1.22 ServeMux 方法模式）：
//
//	GET /                      存活檢查
//	GET /health                依賴檢查（PostgreSQL、Redis）
//	GET /api/code-blocks       題目列表
//	GET /api/code-blocks/{id}  單一題目
//	GET /api/rooms             房間快照
//	GET /api/rooms/{room_id}   單一房間快照
//	GET /stats                 協調器統計
//	GET /metrics               Prometheus
//	GET /ws                    WebSocket
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/koopa0/system-design/code-practice/internal/catalog"
	"github.com/koopa0/system-design/code-practice/internal/metrics"
	"github.com/koopa0/system-design/code-practice/internal/room"
	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
)

// Pinger 可以做健康檢查的依賴
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 讓普通函數實作 Pinger
type PingFunc func(ctx context.Context) error

// Ping 實作 Pinger
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Deps Handler 的依賴
type Deps struct {
	Catalog     catalog.Store
	Coordinator *room.Coordinator
	WebSocket   http.Handler      // nil 表示不提供 /ws
	Metrics     *metrics.Metrics  // nil 表示不提供 /metrics
	Checks      map[string]Pinger // /health 檢查項目
	Origins     []string          // CORS 允許的來源
	Logger      *slog.Logger
}

// Handler HTTP 請求處理器
type Handler struct {
	catalog     catalog.Store
	coordinator *room.Coordinator
	ws          http.Handler
	metrics     *metrics.Metrics
	checks      map[string]Pinger
	origins     []string
	logger      *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(deps Deps) *Handler {
	return &Handler{
		catalog:     deps.Catalog,
		coordinator: deps.Coordinator,
		ws:          deps.WebSocket,
		metrics:     deps.Metrics,
		checks:      deps.Checks,
		origins:     deps.Origins,
		logger:      deps.Logger,
	}
}

// Routes 設定路由
//
// 中間件順序：recoverer → 日誌 → CORS → 指標 → 路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.root)
	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /api/code-blocks", h.listCodeBlocks)
	mux.HandleFunc("GET /api/code-blocks/{id}", h.getCodeBlock)

	mux.HandleFunc("GET /api/rooms", h.listRooms)
	mux.HandleFunc("GET /api/rooms/{room_id}", h.getRoom)
	mux.HandleFunc("GET /stats", h.stats)

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
	if h.ws != nil {
		mux.Handle("GET /ws", h.ws)
	}

	var next http.Handler = mux
	next = h.metricsMiddleware(next)
	next = h.corsMiddleware(next)
	next = h.loggerMiddleware(next)
	next = h.recoverer(next)
	return next
}

type codeBlocksResponse struct {
	CodeBlocks []catalog.Summary `json:"codeBlocks"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type roomsResponse struct {
	Rooms []room.Snapshot `json:"rooms"`
	Total int             `json:"total"`
}

// root 存活檢查
func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, statusResponse{
		Status:  "healthy",
		Message: "API is running",
	})
}

// health 依賴檢查；任何一項失敗返回 503
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "healthy", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			resp.Checks[name] = "unhealthy"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	h.respondJSON(w, status, resp)
}

// listCodeBlocks 題目列表（只含 id 與名稱）
func (h *Handler) listCodeBlocks(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, codeBlocksResponse{CodeBlocks: list})
}

// getCodeBlock 單一題目（含內容與解答）
func (h *Handler) getCodeBlock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.respondError(w, r, apperr.New(apperr.ErrCodeBadRequest, "invalid code block id"))
		return
	}

	e, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, e)
}

// listRooms 所有房間快照
func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.coordinator.Rooms()
	h.respondJSON(w, http.StatusOK, roomsResponse{Rooms: rooms, Total: len(rooms)})
}

// getRoom 單一房間快照
func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.coordinator.Room(r.PathValue("room_id"))
	if !ok {
		h.respondError(w, r, apperr.ErrRoomNotFound)
		return
	}

	h.respondJSON(w, http.StatusOK, snap)
}

// stats 協調器統計
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.coordinator.Stats())
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// respondError 錯誤回應：{"error": message}，內部錯誤不外洩細節
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	h.respondJSON(w, status, map[string]string{"error": apperr.PublicMessage(err)})
}
