package room

import (
	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
)

// 事件名稱（客戶端 → 伺服器）
const (
	EventJoin       = "join"
	EventLeave      = "leave"
	EventCodeChange = "code_change"
)

// 事件名稱（伺服器 → 客戶端）
const (
	EventUserCountUpdate = "user_count_update"
	EventRoomJoined      = "room_joined"
	EventCodeUpdate      = "code_update"
	EventError           = "error"
)

// Event 線上傳輸的事件
//
//	{"event": "code_update", "data": {"code": "..."}}
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

// CountData user_count_update 的內容
type CountData struct {
	Count int `json:"count"`
}

// JoinedData room_joined 的內容
type JoinedData struct {
	Room string `json:"room"`
	Role Role   `json:"role"`
}

// CodeData code_update 的內容
type CodeData struct {
	Code string `json:"code"`
}

// ErrorData error 的內容
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UserCountUpdate 在線學生人數
func UserCountUpdate(count int) Event {
	return Event{Type: EventUserCountUpdate, Data: CountData{Count: count}}
}

// RoomJoined 告知加入者自己的角色
func RoomJoined(roomID string, role Role) Event {
	return Event{Type: EventRoomJoined, Data: JoinedData{Room: roomID, Role: role}}
}

// CodeUpdate 程式碼更新
func CodeUpdate(code string) Event {
	return Event{Type: EventCodeUpdate, Data: CodeData{Code: code}}
}

// ErrorEvent 將錯誤轉成只回給發送者的事件，內部錯誤不外洩細節
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Data: ErrorData{
		Code:    apperr.Code(err),
		Message: apperr.PublicMessage(err),
	}}
}
