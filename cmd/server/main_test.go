package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/code-practice/internal/catalog"
	"github.com/koopa0/system-design/code-practice/internal/config"
	"github.com/koopa0/system-design/code-practice/internal/handler"
	"github.com/koopa0/system-design/code-practice/internal/testutils"
)

// TestNewCatalog_Memory 測試沒有資料庫時使用記憶體題庫並註冊健康檢查
func TestNewCatalog_Memory(t *testing.T) {
	ctx := context.Background()
	checks := map[string]handler.Pinger{}

	store, closeStore, err := newCatalog(ctx, config.Default(), testutils.TestLogger(), checks)
	require.NoError(t, err)
	defer closeStore()

	assert.IsType(t, &catalog.Memory{}, store)
	require.Contains(t, checks, "catalog")
	assert.NotContains(t, checks, "postgres")
	assert.NoError(t, checks["catalog"].Ping(ctx))
}

// TestNewCatalog_Postgres 測試設定資料庫時執行遷移並使用 PostgreSQL
func TestNewCatalog_Postgres(t *testing.T) {
	_, dsn := testutils.SetupPostgres(t)
	ctx := context.Background()
	checks := map[string]handler.Pinger{}

	cfg := config.Default()
	cfg.Postgres.URL = dsn

	store, closeStore, err := newCatalog(ctx, cfg, testutils.TestLogger(), checks)
	require.NoError(t, err)
	defer closeStore()

	assert.IsType(t, &catalog.Postgres{}, store)
	require.Contains(t, checks, "postgres")
	assert.NotContains(t, checks, "catalog")
	assert.NoError(t, checks["postgres"].Ping(ctx))
}
