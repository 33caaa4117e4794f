package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperr "github.com/koopa0/system-design/code-practice/pkg/errors"
)

const (
	cacheKeyPrefix  = "code_block:"
	cacheKeyList    = "code_blocks:list"
	cacheNullMarker = "null"
	negativeTTL     = time.Minute
)

// ErrCacheMiss 快取未命中
var ErrCacheMiss = errors.New("cache miss")

// RedisClient Redis 客戶端接口
//
// 只暴露用得到的方法，測試時可用記憶體實作替代。
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// goRedis 將 go-redis 客戶端轉成 RedisClient
type goRedis struct {
	rdb *redis.Client
}

// NewRedisClient 包裝 go-redis 客戶端
func NewRedisClient(rdb *redis.Client) RedisClient {
	return &goRedis{rdb: rdb}
}

func (g *goRedis) Get(ctx context.Context, key string) (string, error) {
	v, err := g.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (g *goRedis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return g.rdb.Set(ctx, key, value, ttl).Err()
}

func (g *goRedis) Del(ctx context.Context, keys ...string) error {
	return g.rdb.Del(ctx, keys...).Err()
}

func (g *goRedis) Ping(ctx context.Context) error {
	return g.rdb.Ping(ctx).Err()
}

// RedisCache Cache-Aside 快取層
//
//	讀取：先查 Redis → 未命中查後端 → 回寫 Redis
//
// 題目唯讀，不需要處理寫入後的失效；不存在的 ID 以 "null" 短暫快取，
// 避免重複穿透到資料庫。Redis 任何錯誤都退回後端查詢，不影響讀取。
type RedisCache struct {
	client  RedisClient
	backend Store
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRedisCache 創建快取層（ttl 為 0 時預設 1 小時）
func NewRedisCache(client RedisClient, backend Store, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl == 0 {
		ttl = time.Hour
	}

	return &RedisCache{
		client:  client,
		backend: backend,
		ttl:     ttl,
		logger:  logger,
	}
}

// List 返回所有題目摘要
func (r *RedisCache) List(ctx context.Context) ([]Summary, error) {
	if data, err := r.client.Get(ctx, cacheKeyList); err == nil {
		var out []Summary
		if err := json.Unmarshal([]byte(data), &out); err == nil {
			return out, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("cache read failed", "key", cacheKeyList, "error", err)
	}

	out, err := r.backend.List(ctx)
	if err != nil {
		return nil, err
	}

	r.store(ctx, cacheKeyList, out, r.ttl)
	return out, nil
}

// Get 取得題目
func (r *RedisCache) Get(ctx context.Context, id int64) (*Exercise, error) {
	key := cacheKeyPrefix + strconv.FormatInt(id, 10)

	data, err := r.client.Get(ctx, key)
	switch {
	case err == nil:
		if data == cacheNullMarker {
			return nil, apperr.ErrCodeBlockNotFound
		}
		var e Exercise
		if err := json.Unmarshal([]byte(data), &e); err == nil {
			return &e, nil
		}
		// 快取內容損壞，刪掉後查後端
		_ = r.client.Del(ctx, key)
	case !errors.Is(err, ErrCacheMiss):
		r.logger.Warn("cache read failed", "key", key, "error", err)
	}

	e, err := r.backend.Get(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			if setErr := r.client.Set(ctx, key, cacheNullMarker, negativeTTL); setErr != nil {
				r.logger.Warn("cache write failed", "key", key, "error", setErr)
			}
		}
		return nil, err
	}

	r.store(ctx, key, e, r.ttl)
	return e, nil
}

// Ping 檢查 Redis 連線
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// store 寫入快取，失敗只記錄日誌
func (r *RedisCache) store(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, string(data), ttl); err != nil {
		r.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
