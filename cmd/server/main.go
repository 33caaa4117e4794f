package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/koopa0/system-design/code-practice/internal/activity"
	"github.com/koopa0/system-design/code-practice/internal/catalog"
	"github.com/koopa0/system-design/code-practice/internal/config"
	"github.com/koopa0/system-design/code-practice/internal/handler"
	"github.com/koopa0/system-design/code-practice/internal/metrics"
	"github.com/koopa0/system-design/code-practice/internal/migrations"
	"github.com/koopa0/system-design/code-practice/internal/room"
	"github.com/koopa0/system-design/code-practice/internal/ws"
	"github.com/koopa0/system-design/code-practice/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 載入配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 設定日誌
	log, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()
	checks := map[string]handler.Pinger{}

	store, closeStore, err := newCatalog(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.Seed(ctx, catalog.DefaultExercises())
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if n > 0 {
		log.Info("catalog seeded", "count", n)
	}

	// 快取：有 REDIS_ADDR 才啟用
	var reader catalog.Store = store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		// Redis 暫時不可用不阻止啟動，讀取會退回後端
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable at startup", "addr", cfg.Redis.Addr, "error", err)
		}

		cache := catalog.NewRedisCache(catalog.NewRedisClient(rdb), store, cfg.Redis.CacheTTL, log)
		checks["redis"] = cache
		reader = cache
		log.Info("redis cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	// 房間協調器與觀察者
	m := metrics.New()
	roomOpts := []room.Option{room.WithObserver(m)}

	if cfg.NATS.URL != "" {
		nc, err := activity.Connect(cfg.NATS.URL, log)
		if err != nil {
			return err
		}
		defer nc.Close()

		publisher := activity.NewPublisher(nc, cfg.NATS.Subject, 0, log)
		defer publisher.Close()

		roomOpts = append(roomOpts, room.WithObserver(publisher))
		checks["nats"] = handler.PingFunc(func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("nats not connected")
			}
			return nil
		})
		log.Info("room activity feed enabled", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}

	coordinator := room.NewCoordinator(log, roomOpts...)

	hub := ws.NewHub(coordinator, log, ws.Options{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, ws.WithRecorder(m))

	h := handler.NewHandler(handler.Deps{
		Catalog:     reader,
		Coordinator: coordinator,
		WebSocket:   http.HandlerFunc(hub.ServeWS),
		Metrics:     m,
		Checks:      checks,
		Origins:     cfg.CORS.AllowedOrigins,
		Logger:      log,
	})

	// 設定 HTTP 伺服器
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}

	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// 被 Hijack 的 WebSocket 不受 srv.Shutdown 管理，需要另外關閉
		if err := hub.Shutdown(ctx); err != nil {
			log.Warn("websocket hub shutdown incomplete", "error", err)
		}

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("failed to shutdown server", "error", err)
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("failed to force close server", "error", closeErr)
			}
		}
	}

	return nil
}

// newCatalog 建立題庫：有 DATABASE_URL 用 PostgreSQL，否則用記憶體
//
// 題庫會註冊到 checks，讓 /health 回報它的狀態。
func newCatalog(ctx context.Context, cfg *config.Config, log *slog.Logger, checks map[string]handler.Pinger) (catalog.SeedStore, func(), error) {
	if cfg.Postgres.URL == "" {
		mem := catalog.NewMemory()
		checks["catalog"] = mem
		log.Info("using in-memory catalog")
		return mem, func() {}, nil
	}

	if err := migrations.Run(cfg.Postgres.URL, log); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := newPostgresPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	pg := catalog.NewPostgres(pool, log)
	checks["postgres"] = pg
	log.Info("using postgres catalog")
	return pg, pool.Close, nil
}

// newPostgresPool 建立連接池並確認可連線
func newPostgresPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pgConfig, err := pgxpool.ParseConfig(cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pgConfig.MaxConns = cfg.Postgres.MaxConns
	pgConfig.MinConns = cfg.Postgres.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
