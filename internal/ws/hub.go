// Package ws 提供房間協調器的 WebSocket 傳輸層
//
// 每條連線兩個 goroutine（與 gorilla/websocket 官方範例相同）：
//
//	readPump  ─ 解析 JSON 訊框 → room.Command → Coordinator.Dispatch
//	writePump ─ 輸出佇列 → WebSocket；每 PingInterval 發送 Ping
//
// 連線關閉時 readPump 負責呼叫 Coordinator.Disconnect。
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/koopa0/system-design/code-practice/internal/room"
	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
	applog "github.com/koopa0/system-design/code-practice/pkg/logger"
)

// Options 連線參數
type Options struct {
	SendBuffer     int           // 每條連線的輸出佇列長度
	MaxMessageSize int64         // 單一入站訊息上限（bytes）
	PingInterval   time.Duration // 必須小於 PongWait
	PongWait       time.Duration
	WriteWait      time.Duration
	AllowedOrigins []string // 空或包含 "*" 表示不限制
}

// DefaultOptions 預設參數：54s Ping、60s 讀取期限、10s 寫入期限
func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		MaxMessageSize: 64 * 1024,
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
	}
}

// Recorder 傳輸層指標（metrics.Metrics 實作此接口）
type Recorder interface {
	ConnOpened()
	ConnClosed()
	MessageDropped()
	CommandRejected(code string)
}

type nopRecorder struct{}

func (nopRecorder) ConnOpened()            {}
func (nopRecorder) ConnClosed()            {}
func (nopRecorder) MessageDropped()        {}
func (nopRecorder) CommandRejected(string) {}

// ErrHubClosed Hub 已關閉
var ErrHubClosed = errors.New("websocket hub closed")

// Hub 管理所有 WebSocket 連線
type Hub struct {
	coordinator *room.Coordinator
	logger      *slog.Logger
	opts        Options
	upgrader    websocket.Upgrader
	rec         Recorder

	mu      sync.Mutex
	clients map[room.ConnID]*Client
	closed  bool
	wg      sync.WaitGroup
}

// HubOption Hub 選項
type HubOption func(*Hub)

// WithRecorder 設定指標記錄器
func WithRecorder(r Recorder) HubOption {
	return func(h *Hub) {
		if r != nil {
			h.rec = r
		}
	}
}

// NewHub 創建 WebSocket Hub
func NewHub(coordinator *room.Coordinator, logger *slog.Logger, opts Options, hubOpts ...HubOption) *Hub {
	def := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = def.MaxMessageSize
	}
	if opts.PongWait <= 0 {
		opts.PongWait = def.PongWait
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongWait {
		opts.PingInterval = opts.PongWait * 9 / 10
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}

	h := &Hub{
		coordinator: coordinator,
		logger:      logger,
		opts:        opts,
		rec:         nopRecorder{},
		clients:     make(map[room.ConnID]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	for _, opt := range hubOpts {
		opt(h)
	}

	return h
}

// ServeWS 處理 WebSocket 升級
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已經回覆了錯誤
		h.logger.Warn("websocket upgrade failed", "error", err, "origin", r.Header.Get("Origin"))
		return
	}

	id := room.ConnID(uuid.NewString())
	client := newClient(id, h, conn)

	if err := h.register(client); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server is shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	ctx := applog.WithConnID(r.Context(), string(id))
	h.logger.InfoContext(ctx, "websocket connected", "remote_addr", r.RemoteAddr)
}

// register 註冊連線並通知協調器
func (h *Hub) register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	if err := h.coordinator.Connect(c.id, c); err != nil {
		return fmt.Errorf("register connection: %w", err)
	}
	h.clients[c.id] = c
	h.wg.Add(2) // readPump + writePump
	h.rec.ConnOpened()
	return nil
}

// unregister 取消註冊（readPump 結束時呼叫）
func (h *Hub) unregister(c *Client) {
	h.coordinator.Disconnect(c.id)

	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	if ok {
		h.rec.ConnClosed()
		h.logger.Info("websocket disconnected", "conn_id", c.id)
	}
}

// Len 目前的連線數
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown 關閉所有連線並等待 goroutine 結束
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("websocket hub stopped", "closed_connections", len(clients))
		return nil
	case <-ctx.Done():
		// 強制關閉底層連線，讓 readPump 結束
		for _, c := range clients {
			_ = c.conn.Close()
		}
		return ctx.Err()
	}
}

// handleMessage 處理一則入站訊息
//
// 單一訊息處理中的 panic 只影響這條連線，回報 INTERNAL 後繼續讀取。
func (c *Client) handleMessage(messageType int, message []byte) {
	h := c.hub
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("panic while handling message",
				"panic", rec,
				"stack", string(debug.Stack()))
			h.rec.CommandRejected(apperr.ErrCodeInternal)
			h.coordinator.Reject(c.id, apperr.ErrInternal)
		}
	}()

	if messageType != websocket.TextMessage {
		err := apperr.ErrInvalidMessage.WithDetails("only text frames are supported")
		h.rec.CommandRejected(apperr.Code(err))
		h.coordinator.Reject(c.id, err)
		return
	}

	cmd, err := room.DecodeCommand(message)
	if err != nil {
		h.rec.CommandRejected(apperr.Code(err))
		h.coordinator.Reject(c.id, err)
		return
	}

	if err := h.coordinator.Dispatch(c.id, cmd); err != nil {
		h.rec.CommandRejected(apperr.Code(err))
	}
}

// checkOrigin 只接受設定中的來源；沒有 Origin（非瀏覽器客戶端）一律接受
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, "*") || slices.Contains(h.opts.AllowedOrigins, origin)
}
