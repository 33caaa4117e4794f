// Package errors 提供應用程式錯誤處理
//
// 錯誤碼同時服務兩個出口：
//   - HTTP API：轉換成狀態碼 + {"error": message}
//   - WebSocket：轉換成只回給發送者的 error 事件
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// 定義錯誤碼
const (
	// ErrCodeNotFound 資源未找到（題目不存在、房間不存在）
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeBadRequest 無效請求（缺少房間 ID、格式錯誤）
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeNotMember 連線不是該房間成員
	ErrCodeNotMember = "NOT_MEMBER"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 實現 errors.Is（以錯誤碼比較）
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 返回帶詳細資訊的副本（預定義錯誤是共用的，不能原地修改）
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	// ErrCodeBlockNotFound 題目不存在
	ErrCodeBlockNotFound = New(ErrCodeNotFound, "code block not found")

	// ErrRoomNotFound 房間不存在
	ErrRoomNotFound = New(ErrCodeNotFound, "room not found")

	// ErrRoomRequired 缺少房間 ID
	ErrRoomRequired = New(ErrCodeBadRequest, "room is required")

	// ErrInvalidMessage 無法解析的訊息
	ErrInvalidMessage = New(ErrCodeBadRequest, "invalid message")

	// ErrUnknownCommand 未知的指令
	ErrUnknownCommand = New(ErrCodeBadRequest, "unknown command")

	// ErrConnNotFound 連線未註冊（尚未 Connect 或已 Disconnect）
	ErrConnNotFound = New(ErrCodeNotFound, "connection not found")

	// ErrNotMember 連線不在房間內
	ErrNotMember = New(ErrCodeNotMember, "connection is not a member of the room")

	// ErrInternal 內部錯誤
	ErrInternal = New(ErrCodeInternal, "internal server error")
)

// Code 取出錯誤碼，非 AppError 一律視為內部錯誤
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus 錯誤碼對應的 HTTP 狀態碼
func HTTPStatus(err error) int {
	switch Code(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotMember:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage 可以回給客戶端的訊息；內部錯誤不外洩細節
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != ErrCodeInternal {
		if appErr.Details != "" {
			return appErr.Message + ": " + appErr.Details
		}
		return appErr.Message
	}
	return ErrInternal.Message
}

// IsNotFound 檢查是否為未找到錯誤
func IsNotFound(err error) bool {
	return Code(err) == ErrCodeNotFound
}

// IsBadRequest 檢查是否為無效請求錯誤
func IsBadRequest(err error) bool {
	return Code(err) == ErrCodeBadRequest
}

// IsNotMember 檢查是否為非成員錯誤
func IsNotMember(err error) bool {
	return Code(err) == ErrCodeNotMember
}
