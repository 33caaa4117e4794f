package migrations_test

import (
	"context"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/code-practice/internal/migrations"
	"github.com/koopa0/system-design/code-practice/internal/testutils"
)

// TestMigrator_UpDown 測試遷移、重複遷移與回滾
func TestMigrator_UpDown(t *testing.T) {
	pool, dsn := testutils.SetupPostgres(t)
	ctx := context.Background()

	tableExists := func() bool {
		var exists bool
		err := pool.QueryRow(ctx, "SELECT to_regclass('public.code_blocks') IS NOT NULL").Scan(&exists)
		require.NoError(t, err)
		return exists
	}

	m, err := migrations.New(dsn, testutils.TestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	// SetupPostgres 已經執行過 Up
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	assert.True(t, tableExists())

	t.Run("up is idempotent", func(t *testing.T) {
		require.NoError(t, m.Up())
		require.NoError(t, migrations.Run(dsn, testutils.TestLogger()))

		version, _, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(1), version)
	})

	t.Run("down drops the table", func(t *testing.T) {
		require.NoError(t, m.Down())
		assert.False(t, tableExists())

		_, _, err := m.Version()
		assert.ErrorIs(t, err, migrate.ErrNilVersion)
	})

	t.Run("up again", func(t *testing.T) {
		require.NoError(t, m.Up())
		assert.True(t, tableExists())
	})
}

// TestNew_InvalidURL 測試無效的資料庫位址
func TestNew_InvalidURL(t *testing.T) {
	_, err := migrations.New("not-a-url", testutils.TestLogger())
	assert.Error(t, err)
}
