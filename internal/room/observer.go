package room

import "time"

// ActivityKind 房間活動種類
type ActivityKind string

const (
	ActivityJoined       ActivityKind = "joined"
	ActivityLeft         ActivityKind = "left"
	ActivityDisconnected ActivityKind = "disconnected"
	ActivityEdited       ActivityKind = "edited"
)

// Activity 一次被接受的房間操作
//
// Students / HasMentor 是操作完成後的房間狀態。
type Activity struct {
	Kind      ActivityKind `json:"kind"`
	Room      string       `json:"room_id"`
	Conn      ConnID       `json:"conn_id"`
	Role      Role         `json:"role,omitempty"`
	Students  int          `json:"students"`
	HasMentor bool         `json:"has_mentor"`
	At        time.Time    `json:"at"`
}

// RoomClosed 操作後房間已被刪除
func (a Activity) RoomClosed() bool {
	return a.Students == 0 && !a.HasMentor
}

// Observer 接收房間活動（metrics、活動推送）
//
// Observe 在所有鎖釋放後呼叫，但仍在發起操作的 goroutine 上，不可阻塞。
type Observer interface {
	Observe(Activity)
}

// ObserverFunc 讓普通函數實作 Observer
type ObserverFunc func(Activity)

// Observe 實作 Observer
func (f ObserverFunc) Observe(a Activity) { f(a) }
