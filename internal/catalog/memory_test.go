package catalog_test

import (
	"context"
	"testing"

	"github.com/koopa0/system-design/code-practice/internal/catalog"
	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seededMemory 返回已灌入預設題目的記憶體題庫
func seededMemory(t *testing.T) *catalog.Memory {
	t.Helper()
	m := catalog.NewMemory()
	n, err := m.Seed(context.Background(), catalog.DefaultExercises())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return m
}

// TestMemory_List 測試列表只含 ID 與名稱，且順序穩定
func TestMemory_List(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)

	names := make([]string, 0, len(list))
	for i, s := range list {
		assert.Equal(t, int64(i+1), s.ID)
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Async Case", "Promises", "Array Methods", "Closure"}, names)

	// 同一進程內多次呼叫結果一致
	for i := 0; i < 10; i++ {
		again, err := m.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, list, again)
	}
}

// TestMemory_Get 測試依 ID 取得題目
func TestMemory_Get(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()
	seed := catalog.DefaultExercises()

	tests := []struct {
		name     string
		id       int64
		wantName string
		wantErr  bool
	}{
		{name: "first", id: 1, wantName: "Async Case"},
		{name: "last", id: 4, wantName: "Closure"},
		{name: "unseeded", id: 5, wantErr: true},
		{name: "zero", id: 0, wantErr: true},
		{name: "negative", id: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := m.Get(ctx, tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.IsNotFound(err))
				assert.Nil(t, e)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.id, e.ID)
			assert.Equal(t, tt.wantName, e.Name)
			assert.Equal(t, seed[tt.id-1].Content, e.Content)
			assert.Equal(t, seed[tt.id-1].Solution, e.Solution)
			assert.False(t, e.CreatedAt.IsZero())
		})
	}
}

// TestMemory_GetReturnsCopy 測試返回的是副本
func TestMemory_GetReturnsCopy(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	e, err := m.Get(ctx, 1)
	require.NoError(t, err)
	e.Name = "mutated"

	again, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Async Case", again.Name)
}

// TestMemory_SeedIdempotent 測試重複灌入不會產生重複資料
func TestMemory_SeedIdempotent(t *testing.T) {
	m := seededMemory(t)

	n, err := m.Seed(context.Background(), catalog.DefaultExercises())
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

// TestMemory_Empty 測試空題庫
func TestMemory_Empty(t *testing.T) {
	m := catalog.NewMemory()

	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = m.Get(context.Background(), 1)
	assert.ErrorIs(t, err, apperr.ErrCodeBlockNotFound)
}
