package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/code-practice/internal/room"
	"github.com/koopa0/system-design/code-practice/internal/testutils"
)

type countingRecorder struct {
	nopRecorder
	dropped atomic.Int64
}

func (r *countingRecorder) MessageDropped() { r.dropped.Add(1) }

func newTestClient(buffer int) (*Client, *countingRecorder) {
	rec := &countingRecorder{}
	h := &Hub{
		logger:  testutils.TestLogger(),
		opts:    Options{SendBuffer: buffer},
		rec:     rec,
		clients: make(map[room.ConnID]*Client),
	}
	return newClient("c1", h, nil), rec
}

func queued(t *testing.T, c *Client) []string {
	t.Helper()
	var out []string
	for {
		select {
		case msg := <-c.send:
			var ev struct {
				Data room.CodeData `json:"data"`
			}
			require.NoError(t, json.Unmarshal(msg, &ev))
			out = append(out, ev.Data.Code)
		default:
			return out
		}
	}
}

// TestClient_DropOldest 測試佇列滿時保留最新的事件
func TestClient_DropOldest(t *testing.T) {
	c, rec := newTestClient(3)

	for i := 0; i < 5; i++ {
		c.Send(room.CodeUpdate(fmt.Sprintf("v%d", i)))
	}

	assert.Equal(t, []string{"v2", "v3", "v4"}, queued(t, c))
	assert.Equal(t, int64(2), rec.dropped.Load())
}

// TestClient_SendRaw 測試已編碼的事件與 Send 共用同一個佇列
func TestClient_SendRaw(t *testing.T) {
	c, rec := newTestClient(2)

	raw, err := json.Marshal(room.CodeUpdate("shared"))
	require.NoError(t, err)

	c.SendRaw(raw)
	c.Send(room.CodeUpdate("own"))
	c.SendRaw(raw)

	assert.Equal(t, []string{"own", "shared"}, queued(t, c))
	assert.Equal(t, int64(1), rec.dropped.Load())
}

// TestClient_SendNeverBlocks 測試沒有讀取者時並發 Send 不會阻塞
func TestClient_SendNeverBlocks(t *testing.T) {
	c, rec := newTestClient(4)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Send(room.CodeUpdate("x"))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, queued(t, c), 4)
	assert.Equal(t, int64(800-4), rec.dropped.Load())
}

// TestClient_CloseIdempotent 測試重複關閉以及關閉後 Send
func TestClient_CloseIdempotent(t *testing.T) {
	c, _ := newTestClient(2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Close()
		}()
		go func() {
			defer wg.Done()
			c.Send(room.CodeUpdate("late"))
		}()
	}
	wg.Wait()

	assert.NotPanics(t, func() {
		c.Close()
		c.Send(room.CodeUpdate("after close"))
	})

	select {
	case <-c.done:
	default:
		t.Fatal("done channel not closed")
	}
}

// TestNewHub_Defaults 測試參數預設值與萬用來源
func TestNewHub_Defaults(t *testing.T) {
	h := NewHub(room.NewCoordinator(testutils.TestLogger()), testutils.TestLogger(), Options{
		AllowedOrigins: []string{"*"},
	})

	assert.Equal(t, DefaultOptions().SendBuffer, h.opts.SendBuffer)
	assert.Equal(t, DefaultOptions().MaxMessageSize, h.opts.MaxMessageSize)
	assert.Less(t, h.opts.PingInterval, h.opts.PongWait)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	assert.True(t, h.checkOrigin(req))
}
