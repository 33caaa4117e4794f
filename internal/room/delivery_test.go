package room_test

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koopa0/system-design/code-practice/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gate 在 armed 之後的第一次 Send 卡住，直到 release 被關閉
type gate struct {
	recorder
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gate) Send(ev room.Event) {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	g.recorder.Send(ev)
}

// within 在 timeout 內完成 fn，否則測試失敗
func within(t *testing.T, timeout time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("%s did not complete within %s", what, timeout)
	}
}

// TestCoordinator_SlowRoomDoesNotBlockOthers 慢接收者只影響自己的房間
func TestCoordinator_SlowRoomDoesNotBlockOthers(t *testing.T) {
	c := newCoordinator(t)

	slow := newGate()
	require.NoError(t, c.Connect("slow", slow))
	connect(t, c, "a2")
	connect(t, c, "a3")
	b1 := connect(t, c, "b1")
	b2 := connect(t, c, "b2")

	require.NoError(t, c.Join("slow", "A"))
	require.NoError(t, c.Join("b1", "B"))
	require.NoError(t, c.Join("b2", "B"))

	slow.armed.Store(true)

	// a2 的加入會卡在送給 slow 的人數更新
	joined := make(chan error, 1)
	go func() { joined <- c.Join("a2", "A") }()
	<-slow.entered

	within(t, time.Second, "join to the busy room", func() {
		assert.NoError(t, c.Join("a3", "A"))
	})
	within(t, time.Second, "edit in another room", func() {
		assert.NoError(t, c.Edit("b1", "B", "x"))
	})
	within(t, time.Second, "leave in another room", func() {
		assert.NoError(t, c.Leave("b1", "B"))
	})
	within(t, time.Second, "snapshots", func() {
		_ = c.Rooms()
		_ = c.Stats()
	})

	assert.Equal(t, []string{"x"}, b2.codes())
	assert.Equal(t, 0, b2.lastCount())

	close(slow.release)
	require.NoError(t, <-joined)

	// 卡住期間排入的事件依序送達
	counts := slow.ofType(room.EventUserCountUpdate)
	var got []int
	for _, ev := range counts {
		got = append(got, ev.Data.(room.CountData).Count)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

// TestCoordinator_MoveDropsPendingEvents 換房後不會再收到原房間尚未送出的事件
func TestCoordinator_MoveDropsPendingEvents(t *testing.T) {
	c := newCoordinator(t)

	slow := newGate()
	require.NoError(t, c.Connect("mentor", slow))
	x := connect(t, c, "x")
	connect(t, c, "y")

	require.NoError(t, c.Join("mentor", "A"))
	require.NoError(t, c.Join("x", "A"))
	require.NoError(t, c.Join("y", "A"))

	slow.armed.Store(true)

	edited := make(chan error, 1)
	go func() { edited <- c.Edit("y", "A", "first") }()
	<-slow.entered

	// drainer 仍卡住，這則只會排進 outbox
	require.NoError(t, c.Edit("y", "A", "stale"))
	require.NoError(t, c.Join("x", "B"))

	close(slow.release)
	require.NoError(t, <-edited)

	assert.NotContains(t, x.codes(), "stale")
	assert.Equal(t, room.RoleMentor, x.lastRole())
	assert.Equal(t, []string{"first", "stale"}, slow.codes())
}

// rawRecorder 接收編碼後的事件
type rawRecorder struct {
	recorder
	mu  sync.Mutex
	raw [][]byte
}

func (r *rawRecorder) SendRaw(data []byte) {
	r.mu.Lock()
	r.raw = append(r.raw, data)
	r.mu.Unlock()
}

func (r *rawRecorder) frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.raw...)
}

// TestCoordinator_BroadcastEncodedOnce 廣播的事件只編碼一次
func TestCoordinator_BroadcastEncodedOnce(t *testing.T) {
	c := newCoordinator(t)

	connect(t, c, "author")
	r1 := &rawRecorder{}
	r2 := &rawRecorder{}
	plain := &recorder{}
	require.NoError(t, c.Connect("r1", r1))
	require.NoError(t, c.Connect("r2", r2))
	require.NoError(t, c.Connect("plain", plain))

	for _, id := range []room.ConnID{"author", "r1", "r2", "plain"} {
		require.NoError(t, c.Join(id, "room"))
	}
	n1, n2 := len(r1.frames()), len(r2.frames())

	require.NoError(t, c.Edit("author", "room", "shared"))

	f1, f2 := r1.frames()[n1:], r2.frames()[n2:]
	require.Len(t, f1, 1)
	require.Len(t, f2, 1)
	assert.Same(t, &f1[0][0], &f2[0][0], "recipients share one encoding")

	var ev struct {
		Event string        `json:"event"`
		Data  room.CodeData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(f1[0], &ev))
	assert.Equal(t, room.EventCodeUpdate, ev.Event)
	assert.Equal(t, "shared", ev.Data.Code)

	// 只實作 Sender 的接收者仍收到 Event
	assert.Equal(t, []string{"shared"}, plain.codes())
	assert.Empty(t, r1.codes())
}
