package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
)

// Postgres PostgreSQL 題庫
//
// 表結構由 internal/migrations 建立：
//
//	CREATE TABLE code_blocks (
//	  id         SERIAL PRIMARY KEY,
//	  name       VARCHAR(100) NOT NULL,
//	  content    TEXT NOT NULL,
//	  solution   TEXT NOT NULL,
//	  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres 創建 PostgreSQL 題庫（連接池生命週期由呼叫方管理）
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

// Seed 題庫為空時寫入初始題目
//
// 在同一個交易內先鎖表再檢查，多個實例同時啟動也只會寫入一次。
func (p *Postgres) Seed(ctx context.Context, exercises []Exercise) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `LOCK TABLE code_blocks IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("lock code_blocks: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM code_blocks)`).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check code_blocks: %w", err)
	}
	if exists {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range exercises {
		batch.Queue(`INSERT INTO code_blocks (name, content, solution) VALUES ($1, $2, $3)`,
			e.Name, e.Content, e.Solution)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert code blocks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}

	p.logger.Info("code blocks seeded", "count", len(exercises))
	return len(exercises), nil
}

// List 返回所有題目摘要
func (p *Postgres) List(ctx context.Context) ([]Summary, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM code_blocks ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "query code blocks")
	}
	defer rows.Close()

	out := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "scan code block")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "iterate code blocks")
	}

	return out, nil
}

// Get 取得題目
func (p *Postgres) Get(ctx context.Context, id int64) (*Exercise, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, content, solution, created_at, updated_at
		FROM code_blocks
		WHERE id = $1
	`, id)

	var e Exercise
	if err := row.Scan(&e.ID, &e.Name, &e.Content, &e.Solution, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrCodeBlockNotFound
		}
		p.logger.Error("query code block failed", "id", id, "error", err)
		return nil, apperr.Wrap(err, apperr.ErrCodeInternal, "query code block")
	}

	return &e, nil
}

// Ping 健康檢查
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
