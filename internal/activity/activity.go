// Package activity 將房間活動推送到 NATS
//
// 主題格式：<subject>.<room>，例如 codeblocks.rooms.code-block-1。
// 下游（儀表板、稽核）可以用 codeblocks.rooms.> 訂閱全部房間。
//
// 發布是盡力而為：Observe 只把活動放進有界佇列，
// 由單一 goroutine 依序發布；佇列滿時丟棄並記錄日誌。
package activity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/koopa0/system-design/code-practice/internal/room"
)

// Conn NATS 連線中發布所需的部分（*nats.Conn 實作此接口）
type Conn interface {
	Publish(subject string, data []byte) error
}

// Connect 連接 NATS Server
//
// 自動重連：斷線後無限重試，每秒一次。
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("code-practice"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// Publisher 房間活動發布者（實作 room.Observer）
type Publisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger

	queue   chan room.Activity
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

// NewPublisher 創建發布者並啟動背景 goroutine
func NewPublisher(conn Conn, subject string, buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 1024
	}

	p := &Publisher{
		conn:    conn,
		subject: strings.TrimSuffix(subject, "."),
		logger:  logger,
		queue:   make(chan room.Activity, buffer),
		done:    make(chan struct{}),
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// Observe 實作 room.Observer（不阻塞）
func (p *Publisher) Observe(a room.Activity) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- a:
	default:
		p.dropped.Add(1)
		p.logger.Warn("activity queue full, dropping", "room_id", a.Room, "kind", a.Kind)
	}
}

// Dropped 因佇列滿而丟棄的活動數
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close 停止接收並發布佇列中剩餘的活動（冪等）
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

// Subject 房間對應的主題
//
// NATS 主題中的 '.' 是分隔符，'*' 與 '>' 是萬用字元，空白不合法，都換成 '_'。
func (p *Publisher) Subject(roomID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, roomID)
	return p.subject + "." + token
}

func (p *Publisher) run() {
	defer p.wg.Done()

	for {
		select {
		case a := <-p.queue:
			p.publish(a)
		case <-p.done:
			// 發布剩餘的活動
			for {
				select {
				case a := <-p.queue:
					p.publish(a)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(a room.Activity) {
	data, err := json.Marshal(a)
	if err != nil {
		p.logger.Error("marshal activity failed", "error", err)
		return
	}

	subject := p.Subject(a.Room)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("publish activity failed", "subject", subject, "error", err)
	}
}
