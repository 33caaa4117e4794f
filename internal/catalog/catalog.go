// Package catalog 提供練習題目（code block）的唯讀查詢
//
// 存儲架構：
//
//	Memory（開發/測試） 或 Postgres（生產）
//	        ↑
//	RedisCache（可選的 Cache-Aside 裝飾器）
package catalog

import (
	"context"
	"time"
)

// Exercise 練習題目
//
// 啟動時建立一次，之後唯讀。
type Exercise struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`  // 題目（給學生的起始程式碼）
	Solution  string    `json:"solution"` // 參考解答
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary 題目列表項目（不含內容與解答）
type Summary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Store 題庫查詢介面
type Store interface {
	// List 返回所有題目，依 ID 遞增排序
	List(ctx context.Context) ([]Summary, error)

	// Get 依 ID 取得題目，不存在時返回 NOT_FOUND
	Get(ctx context.Context, id int64) (*Exercise, error)
}

// Seeder 啟動時灌入初始題目
//
// 只在題庫為空時寫入，重複呼叫不會產生重複資料。
type Seeder interface {
	Seed(ctx context.Context, exercises []Exercise) (int, error)
}

// SeedStore 同時支援查詢與初始化的存儲
type SeedStore interface {
	Store
	Seeder
}
