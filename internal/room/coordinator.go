package room

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
)

// Coordinator 房間協調器
//
// 鎖順序：c.mu → Room.mu → member.mu。
// 成員變更（Join / Leave / Disconnect）持有 c.mu 寫鎖；
// Edit 與查詢只持有讀鎖，不同房間的編輯可以並行。
// 事件在鎖內排進房間的 outbox，釋放所有鎖之後才送出，
// 慢的接收者只拖慢送出它的 goroutine，不會卡住任何鎖。
type Coordinator struct {
	mu    sync.RWMutex
	rooms map[string]*Room  // roomID -> Room
	conns map[ConnID]Sender // 已連線
	index map[ConnID]string // connID -> roomID

	observers []Observer
	now       func() time.Time
	logger    *slog.Logger
}

// Option Coordinator 選項
type Option func(*Coordinator)

// WithObserver 註冊活動觀察者
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithClock 替換時間來源（測試用）
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator 創建房間協調器
func NewCoordinator(logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms:  make(map[string]*Room),
		conns:  make(map[ConnID]Sender),
		index:  make(map[ConnID]string),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect 註冊連線；同一 ID 重複註冊會替換 Sender
func (c *Coordinator) Connect(id ConnID, s Sender) error {
	if id == "" || s == nil {
		return apperr.New(apperr.ErrCodeBadRequest, "connection id and sender are required")
	}

	c.mu.Lock()
	c.conns[id] = s
	c.mu.Unlock()

	c.logger.Debug("connection registered", "conn_id", id)
	return nil
}

// Join 加入房間
//
//   - 房間不存在：建立房間，加入者成為導師
//   - 房間存在：加入者成為學生
//   - 已在同一房間：狀態不變，重新告知角色與人數
//   - 已在其他房間：先離開原房間
func (c *Coordinator) Join(id ConnID, roomID string) error {
	if roomID == "" {
		return apperr.ErrRoomRequired
	}

	c.mu.Lock()
	sender, ok := c.conns[id]
	if !ok {
		c.mu.Unlock()
		return apperr.ErrConnNotFound
	}

	prev, inRoom := c.index[id]
	if inRoom && prev == roomID {
		r := c.rooms[roomID]
		r.mu.Lock()
		self := r.memberOf(id)
		r.post(RoomJoined(roomID, r.roleOf(id)), self)
		r.post(UserCountUpdate(r.studentCount()), self)
		r.mu.Unlock()
		c.mu.Unlock()

		r.drain(c.logger)
		return nil
	}

	var (
		left     *Room
		leftActs []Activity
	)
	if inRoom {
		left, leftActs = c.removeLocked(id, prev, ActivityLeft)
	}

	r, exists := c.rooms[roomID]
	if !exists {
		r = newRoom(roomID, c.now())
		c.rooms[roomID] = r
	}

	r.mu.Lock()
	role := r.add(id, sender)
	c.index[id] = roomID
	count := r.studentCount()
	r.post(RoomJoined(roomID, role), r.memberOf(id))
	r.post(UserCountUpdate(count), r.recipients("")...)
	act := c.activity(ActivityJoined, r, id, role)
	r.mu.Unlock()
	c.mu.Unlock()

	if left != nil {
		left.drain(c.logger)
	}
	r.drain(c.logger)
	c.notify(append(leftActs, act)...)

	c.logger.Info("room joined",
		"room_id", roomID,
		"conn_id", id,
		"role", role,
		"students", count,
		"previous_room", prev)

	return nil
}

// Leave 離開房間；不在該房間返回 NOT_MEMBER
func (c *Coordinator) Leave(id ConnID, roomID string) error {
	if roomID == "" {
		return apperr.ErrRoomRequired
	}

	c.mu.Lock()
	if cur, ok := c.index[id]; !ok || cur != roomID {
		c.mu.Unlock()
		return apperr.ErrNotMember.WithDetails(roomID)
	}
	r, acts := c.removeLocked(id, roomID, ActivityLeft)
	c.mu.Unlock()

	r.drain(c.logger)
	c.notify(acts...)

	c.logger.Info("room left", "room_id", roomID, "conn_id", id)
	return nil
}

// Disconnect 連線關閉：離開所在房間並取消註冊（冪等）
func (c *Coordinator) Disconnect(id ConnID) {
	c.mu.Lock()
	_, registered := c.conns[id]
	delete(c.conns, id)

	roomID, inRoom := c.index[id]
	var (
		r    *Room
		acts []Activity
	)
	if inRoom {
		r, acts = c.removeLocked(id, roomID, ActivityDisconnected)
	}
	c.mu.Unlock()

	if r != nil {
		r.drain(c.logger)
		c.notify(acts...)
	}

	if registered || inRoom {
		c.logger.Debug("connection unregistered", "conn_id", id, "room_id", roomID)
	}
}

// Edit 廣播程式碼變更給房間內其他成員（不含發送者）
func (c *Coordinator) Edit(id ConnID, roomID, code string) error {
	if roomID == "" {
		return apperr.ErrRoomRequired
	}

	c.mu.RLock()
	r, ok := c.rooms[roomID]
	if !ok || c.index[id] != roomID {
		c.mu.RUnlock()
		return apperr.ErrNotMember.WithDetails(roomID)
	}

	r.mu.Lock()
	r.post(CodeUpdate(code), r.recipients(id)...)
	act := c.activity(ActivityEdited, r, id, r.roleOf(id))
	r.mu.Unlock()
	c.mu.RUnlock()

	r.drain(c.logger)
	c.notify(act)

	c.logger.Debug("code updated", "room_id", roomID, "conn_id", id, "size", len(code))
	return nil
}

// Dispatch 執行一個客戶端指令
//
// 被拒絕的指令以 error 事件回給發送者，並返回錯誤；不影響其他連線。
func (c *Coordinator) Dispatch(id ConnID, cmd Command) error {
	var err error
	switch cmd.Kind {
	case CommandJoin:
		err = c.Join(id, cmd.Room)
	case CommandLeave:
		err = c.Leave(id, cmd.Room)
	case CommandCodeChange:
		err = c.Edit(id, cmd.Room, cmd.Code)
	default:
		err = apperr.ErrUnknownCommand.WithDetails(cmd.Kind.String())
	}

	if err != nil {
		c.Reject(id, err)
	}
	return err
}

// Reject 把錯誤以 error 事件回給單一連線
func (c *Coordinator) Reject(id ConnID, err error) {
	c.mu.RLock()
	s := c.conns[id]
	c.mu.RUnlock()

	c.logger.Debug("command rejected", "conn_id", id, "code", apperr.Code(err), "error", err)

	if s != nil {
		s.Send(ErrorEvent(err))
	}
}

// Room 返回房間快照
func (c *Coordinator) Room(roomID string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(), true
}

// Rooms 返回所有房間快照（依 ID 排序）
func (c *Coordinator) Rooms() []Snapshot {
	c.mu.RLock()
	out := make([]Snapshot, 0, len(c.rooms))
	for _, r := range c.rooms {
		r.mu.Lock()
		out = append(out, r.snapshot())
		r.mu.Unlock()
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomOf 返回連線目前所在的房間
func (c *Coordinator) RoomOf(id ConnID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	roomID, ok := c.index[id]
	return roomID, ok
}

// Stats 統計資訊
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
	Members     int `json:"members"`
	Mentors     int `json:"mentors"`
	Students    int `json:"students"`
}

// Stats 返回目前的統計資訊
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Rooms:       len(c.rooms),
		Connections: len(c.conns),
		Members:     len(c.index),
	}
	for _, r := range c.rooms {
		r.mu.Lock()
		if r.mentor != nil {
			s.Mentors++
		}
		s.Students += len(r.students)
		r.mu.Unlock()
	}
	return s
}

// removeLocked 將連線移出房間（需持有 c.mu 寫鎖）
//
// 返回的房間可能已從表中刪除，呼叫者仍需在釋放鎖之後 drain。
func (c *Coordinator) removeLocked(id ConnID, roomID string, kind ActivityKind) (*Room, []Activity) {
	delete(c.index, id)

	r := c.rooms[roomID]
	r.mu.Lock()
	defer r.mu.Unlock()

	role := r.remove(id)
	if !r.empty() {
		r.post(UserCountUpdate(r.studentCount()), r.recipients("")...)
	} else {
		delete(c.rooms, roomID)
		c.logger.Debug("room closed", "room_id", roomID)
	}
	return r, []Activity{c.activity(kind, r, id, role)}
}

func (c *Coordinator) activity(kind ActivityKind, r *Room, id ConnID, role Role) Activity {
	return Activity{
		Kind:      kind,
		Room:      r.id,
		Conn:      id,
		Role:      role,
		Students:  len(r.students),
		HasMentor: r.mentor != nil,
		At:        c.now(),
	}
}

// notify 呼叫觀察者（不可持有任何鎖）
func (c *Coordinator) notify(acts ...Activity) {
	for _, a := range acts {
		for _, o := range c.observers {
			o.Observe(a)
		}
	}
}
