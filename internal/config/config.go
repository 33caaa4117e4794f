// Package config 載入服務配置
//
// 來源優先順序（後者覆蓋前者）：
//
//	預設值 → config.yaml → .env（僅開發環境）→ 環境變數
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Env string `yaml:"env"`

	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	WebSocket struct {
		SendBuffer     int           `yaml:"send_buffer"`      // 每條連線的出站佇列長度
		MaxMessageSize int64         `yaml:"max_message_size"` // 單一入站訊息上限（bytes）
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongWait       time.Duration `yaml:"pong_wait"`
		WriteWait      time.Duration `yaml:"write_wait"`
	} `yaml:"websocket"`

	Postgres struct {
		URL      string `yaml:"url"` // 空字串表示使用記憶體題庫
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"postgres"`

	Redis struct {
		Addr     string        `yaml:"addr"` // 空字串表示不啟用快取
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`

	NATS struct {
		URL     string `yaml:"url"` // 空字串表示不發布房間動態
		Subject string `yaml:"subject"`
	} `yaml:"nats"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
}

// Default 返回預設配置
func Default() *Config {
	cfg := &Config{Env: "development"}

	cfg.Server.Port = 5000
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.WebSocket.SendBuffer = 256
	cfg.WebSocket.MaxMessageSize = 64 * 1024
	cfg.WebSocket.PingInterval = 54 * time.Second
	cfg.WebSocket.PongWait = 60 * time.Second
	cfg.WebSocket.WriteWait = 10 * time.Second

	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2

	cfg.Redis.CacheTTL = time.Hour

	cfg.NATS.Subject = "codeblocks.rooms"

	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stdout"

	return cfg
}

// Load 載入配置
//
// path 不存在時只使用預設值與環境變數（方便本機直接啟動）。
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path 來自命令列參數
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// 沒有設定檔，使用預設值
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// 先決定環境，才知道要不要讀 .env
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if cfg.IsDevelopment() {
		// .env 不存在不是錯誤
		_ = godotenv.Load()
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv 環境變數覆蓋（生產環境常用）
func (c *Config) applyEnv() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.CORS.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate 檢查配置是否合理
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send_buffer must be positive, got %d", c.WebSocket.SendBuffer)
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket ping_interval (%s) must be shorter than pong_wait (%s)",
			c.WebSocket.PingInterval, c.WebSocket.PongWait)
	}
	if c.Env == "production" && c.Postgres.URL == "" {
		return errors.New("DATABASE_URL is required in production")
	}
	return nil
}

// IsDevelopment 是否為開發環境
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Addr HTTP 監聽位址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
