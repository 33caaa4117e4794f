package room

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Role 成員在房間中的角色
type Role string

const (
	RoleNone    Role = ""
	RoleMentor  Role = "mentor"  // 第一位加入者
	RoleStudent Role = "student" // 其後的加入者
)

// ConnID 連線識別碼（傳輸層產生，例如 UUID）
type ConnID string

// Sender 連線的輸出端
//
// Send 必須是非阻塞的，慢客戶端的緩衝策略（例如丟棄最舊的事件）由實作決定。
type Sender interface {
	Send(Event)
}

// RawSender 可以直接接收編碼後事件的 Sender
//
// 廣播時同一個事件只編碼一次，所有 RawSender 共用同一份唯讀 bytes。
type RawSender interface {
	Sender
	SendRaw(data []byte)
}

// SenderFunc 讓普通函數實作 Sender
type SenderFunc func(Event)

// Send 實作 Sender
func (f SenderFunc) Send(ev Event) { f(ev) }

// member 一次房間成員資格
//
// 離開房間時關閉；關閉後這個房間尚未送出的事件不會再送到該連線。
type member struct {
	id ConnID

	mu     sync.Mutex // 與 close 互斥，關閉後不會再有 Send
	to     Sender
	closed bool
}

func (m *member) send(ev Event, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if rs, ok := m.to.(RawSender); ok && raw != nil {
		rs.SendRaw(raw)
		return
	}
	m.to.Send(ev)
}

func (m *member) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// delivery 一個事件與它的接收者
type delivery struct {
	ev Event
	to []*member
}

// Room 協作房間
//
// mu 保護成員與 outbox。事件在持有 mu 時依接受順序放進 outbox，
// 釋放所有鎖之後由一個 drainer 依序送出；同一時間每個房間最多一個 drainer。
type Room struct {
	id        string
	createdAt time.Time

	mu       sync.Mutex
	mentor   *member
	students map[ConnID]*member
	outbox   []delivery
	draining bool
}

// Snapshot 房間的唯讀快照
type Snapshot struct {
	ID        string    `json:"room_id"`
	HasMentor bool      `json:"has_mentor"`
	Students  int       `json:"students"`
	CreatedAt time.Time `json:"created_at"`
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		id:        id,
		createdAt: now,
		students:  make(map[ConnID]*member),
	}
}

// 以下方法都需要持有 r.mu

// add 加入成員並返回角色：沒有導師時成為導師
//
// 只有新建的房間會沒有任何成員；導師離開後的房間不會再產生導師。
func (r *Room) add(id ConnID, s Sender) Role {
	m := &member{id: id, to: s}
	if r.mentor == nil && len(r.students) == 0 {
		r.mentor = m
		return RoleMentor
	}
	r.students[id] = m
	return RoleStudent
}

// remove 移除成員並關閉其成員資格，返回原角色
func (r *Room) remove(id ConnID) Role {
	if r.mentor != nil && r.mentor.id == id {
		r.mentor.close()
		r.mentor = nil
		return RoleMentor
	}
	if m, ok := r.students[id]; ok {
		m.close()
		delete(r.students, id)
		return RoleStudent
	}
	return RoleNone
}

func (r *Room) memberOf(id ConnID) *member {
	if r.mentor != nil && r.mentor.id == id {
		return r.mentor
	}
	return r.students[id]
}

func (r *Room) roleOf(id ConnID) Role {
	if r.mentor != nil && r.mentor.id == id {
		return RoleMentor
	}
	if _, ok := r.students[id]; ok {
		return RoleStudent
	}
	return RoleNone
}

func (r *Room) studentCount() int {
	return len(r.students)
}

func (r *Room) empty() bool {
	return r.mentor == nil && len(r.students) == 0
}

// recipients 返回除了 except 以外的所有成員
func (r *Room) recipients(except ConnID) []*member {
	out := make([]*member, 0, len(r.students)+1)
	if r.mentor != nil && r.mentor.id != except {
		out = append(out, r.mentor)
	}
	for id, m := range r.students {
		if id != except {
			out = append(out, m)
		}
	}
	return out
}

// post 把事件排進 outbox
func (r *Room) post(ev Event, to ...*member) {
	if len(to) == 0 {
		return
	}
	r.outbox = append(r.outbox, delivery{ev: ev, to: to})
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{
		ID:        r.id,
		HasMentor: r.mentor != nil,
		Students:  len(r.students),
		CreatedAt: r.createdAt,
	}
}

// drain 送出 outbox 中的事件（不可持有任何鎖）
//
// 已經有其他 goroutine 在送時直接返回，由它接手送出新排入的事件。
func (r *Room) drain(logger *slog.Logger) {
	for {
		r.mu.Lock()
		if r.draining || len(r.outbox) == 0 {
			r.mu.Unlock()
			return
		}
		r.draining = true
		pending := r.outbox
		r.outbox = nil
		r.mu.Unlock()

		r.deliver(pending, logger)
	}
}

func (r *Room) deliver(pending []delivery, logger *slog.Logger) {
	defer func() {
		r.mu.Lock()
		r.draining = false
		r.mu.Unlock()
	}()

	for _, d := range pending {
		raw, err := json.Marshal(d.ev)
		if err != nil {
			logger.Error("marshal event failed", "room_id", r.id, "event", d.ev.Type, "error", err)
			raw = nil
		}
		for _, m := range d.to {
			m.send(d.ev, raw)
		}
	}
}
