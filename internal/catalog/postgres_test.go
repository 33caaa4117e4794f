package catalog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/koopa0/system-design/code-practice/internal/catalog"
	"github.com/koopa0/system-design/code-practice/internal/testutils"
	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPostgres_SeedListGet 測試 PostgreSQL 題庫
func TestPostgres_SeedListGet(t *testing.T) {
	pool, _ := testutils.SetupPostgres(t)
	store := catalog.NewPostgres(pool, testutils.TestLogger())
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	t.Run("empty before seeding", func(t *testing.T) {
		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("seed", func(t *testing.T) {
		n, err := store.Seed(ctx, catalog.DefaultExercises())
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("list", func(t *testing.T) {
		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 4)

		names := []string{}
		for _, s := range list {
			assert.NotZero(t, s.ID)
			names = append(names, s.Name)
		}
		assert.Equal(t, []string{"Async Case", "Promises", "Array Methods", "Closure"}, names)
	})

	t.Run("get", func(t *testing.T) {
		list, err := store.List(ctx)
		require.NoError(t, err)

		e, err := store.Get(ctx, list[3].ID)
		require.NoError(t, err)
		assert.Equal(t, "Closure", e.Name)
		assert.Equal(t, catalog.DefaultExercises()[3].Solution, e.Solution)
		assert.False(t, e.CreatedAt.IsZero())
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, 9999)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("seed again is a no-op", func(t *testing.T) {
		n, err := store.Seed(ctx, catalog.DefaultExercises())
		require.NoError(t, err)
		assert.Zero(t, n)

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 4)
	})
}

// TestPostgres_ConcurrentSeed 測試多個實例同時啟動只寫入一次
func TestPostgres_ConcurrentSeed(t *testing.T) {
	pool, _ := testutils.SetupPostgres(t)
	store := catalog.NewPostgres(pool, testutils.TestLogger())
	ctx := context.Background()
	testutils.TruncateCodeBlocks(t, pool)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Seed(ctx, catalog.DefaultExercises())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
