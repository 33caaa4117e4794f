package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/system-design/code-practice/internal/room"
)

// Client 一條 WebSocket 連線
//
// 輸出佇列是有界的 channel：滿了就丟掉最舊的事件再放入新事件，
// 慢客戶端只會漏掉舊的更新，不會拖慢房間的其他成員。
// send channel 永遠不關閉，關閉連線改用 done 通知 writePump。
type Client struct {
	id     room.ConnID
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	send   chan []byte
	sendMu sync.Mutex // 讓「丟最舊 + 放入」成為一個步驟

	done      chan struct{}
	closeOnce sync.Once
}

var _ room.RawSender = (*Client)(nil)

func newClient(id room.ConnID, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		logger: hub.logger.With("conn_id", id),
		send:   make(chan []byte, hub.opts.SendBuffer),
		done:   make(chan struct{}),
	}
}

// Send 實作 room.Sender（不阻塞）
func (c *Client) Send(ev room.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error("marshal event failed", "event", ev.Type, "error", err)
		return
	}
	c.enqueue(data)
}

// SendRaw 實作 room.RawSender：廣播時事件已經編碼過（data 唯讀共用）
func (c *Client) SendRaw(data []byte) {
	c.enqueue(data)
}

func (c *Client) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	for {
		select {
		case c.send <- msg:
			return
		default:
		}

		// 佇列已滿：丟掉最舊的一則
		select {
		case <-c.send:
			c.hub.rec.MessageDropped()
			c.logger.Debug("outbound queue full, dropped oldest event")
		default:
		}
	}
}

// Close 關閉連線（冪等，可與 Send 並行）
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump 讀取客戶端訊息
//
// 超過 PongWait 沒有收到任何訊息（包含 Pong）就視為死連線。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Close()
		_ = c.conn.Close()
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(opts.PongWait)); err != nil {
		c.logger.Error("set read deadline failed", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		c.handleMessage(messageType, message)
	}
}

// writePump 寫入訊息並定期發送 Ping
func (c *Client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// 送出佇列中剩下的事件後優雅關閉
			c.drain()
			deadline := time.Now().Add(time.Second)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

func (c *Client) drain() {
	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
