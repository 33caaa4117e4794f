package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
)

// Memory 記憶體題庫
//
// 沒有設定資料庫時使用，也用於單元測試（不需要 Mock）。
// 重啟後資料消失，但題目本來就在啟動時重新灌入。
type Memory struct {
	mu        sync.RWMutex
	exercises map[int64]*Exercise
	nextID    int64
	now       func() time.Time
}

// NewMemory 創建記憶體題庫
func NewMemory() *Memory {
	return &Memory{
		exercises: make(map[int64]*Exercise),
		nextID:    1,
		now:       time.Now,
	}
}

// Seed 題庫為空時依序寫入，ID 從 1 開始
func (m *Memory) Seed(ctx context.Context, exercises []Exercise) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.exercises) > 0 {
		return 0, nil
	}

	now := m.now().UTC()
	for _, e := range exercises {
		e.ID = m.nextID
		e.CreatedAt = now
		e.UpdatedAt = now
		m.exercises[e.ID] = &e
		m.nextID++
	}

	return len(exercises), nil
}

// List 返回所有題目摘要
func (m *Memory) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.exercises))
	for _, e := range m.exercises {
		out = append(out, Summary{ID: e.ID, Name: e.Name})
	}

	// map 迭代順序不固定，排序確保同一進程內結果穩定
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// Get 取得題目
//
// 返回副本，防止呼叫方修改共享資料。
func (m *Memory) Get(ctx context.Context, id int64) (*Exercise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, exists := m.exercises[id]
	if !exists {
		return nil, apperr.ErrCodeBlockNotFound
	}

	cp := *e
	return &cp, nil
}

// Ping 記憶體存儲永遠可用
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}
