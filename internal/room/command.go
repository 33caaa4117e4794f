package room

import (
	"encoding/json"
	"fmt"

	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
)

// CommandKind 客戶端指令種類
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandJoin
	CommandLeave
	CommandCodeChange
)

// String 返回對應的事件名稱
func (k CommandKind) String() string {
	switch k {
	case CommandJoin:
		return EventJoin
	case CommandLeave:
		return EventLeave
	case CommandCodeChange:
		return EventCodeChange
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Command 已解析的客戶端意圖
type Command struct {
	Kind CommandKind
	Room string
	Code string
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type payload struct {
	Room string `json:"room"`
	Code string `json:"code"`
}

// DecodeCommand 解析一個 JSON 文字訊框
//
//	{"event": "join", "data": {"room": "code-block-1"}}
//
// 缺少 room 不在這裡檢查，交給 Coordinator 統一回報。
func DecodeCommand(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, apperr.ErrInvalidMessage.WithDetails(err.Error())
	}

	var kind CommandKind
	switch env.Event {
	case EventJoin:
		kind = CommandJoin
	case EventLeave:
		kind = CommandLeave
	case EventCodeChange:
		kind = CommandCodeChange
	case "":
		return Command{}, apperr.ErrInvalidMessage.WithDetails("missing event")
	default:
		return Command{}, apperr.ErrUnknownCommand.WithDetails(env.Event)
	}

	var p payload
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Command{}, apperr.ErrInvalidMessage.WithDetails(err.Error())
		}
	}

	return Command{Kind: kind, Room: p.Room, Code: p.Code}, nil
}
