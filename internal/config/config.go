package config

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server-side settings
	DatabaseDSN string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`

	// Shared settings
	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`
	LogLevel    string `env:"LOG_LEVEL"`

	// Client-side settings
	ServerURL    string `env:"-"`
	ClientDBPath string `env:"CLIENT_DB_PATH"` // каталог файлов локального хранилища
	TokenFile    string `env:"TOKEN_FILE"`
	Version      bool   `env:"-"` // show client version and exit (flag only)

	// Локальное хранилище
	StoreName    string        `env:"STORE_NAME"`
	StoreVersion int           `env:"STORE_VERSION"` // 0 — последняя миграция
	OpTimeout    time.Duration `env:"OP_TIMEOUT"`

	// Очередь синхронизации
	SyncMaxAttempts int `env:"SYNC_MAX_ATTEMPTS"`

	// Кэш запросов
	CacheVersion      string   `env:"CACHE_VERSION"`
	CachePrefix       string   `env:"CACHE_PREFIX"`
	CacheBackend      string   `env:"CACHE_BACKEND"` // sqlite | memory
	CacheTrustedHosts []string `env:"CACHE_TRUSTED_HOSTS" envSeparator:","`
}

const (
	DefaultStoreName       = "ShelfDB"
	DefaultOpTimeout       = 10 * time.Second
	DefaultSyncMaxAttempts = 3
	// DefaultDatabaseDSN — встроенная SQLite рядом с сервером, если PostgreSQL не задан.
	DefaultDatabaseDSN = "sqlite:mdshelf.db"
)

// DefaultTrustedHosts — внешние хосты, чьи ресурсы кэшируются как статические.
var DefaultTrustedHosts = []string{"cdn.jsdelivr.net", "fonts.googleapis.com", "fonts.gstatic.com"}

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// flags работают ТОЛЬКО если переменные из env не заданы
	// Server flags
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "строка подключения к БД (postgres DSN или sqlite:<path>)")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "секрет для подписи JWT")
	// Shared/client flags
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "base URL of the sync server (host:port)")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "enable HTTPS (client: prefer https scheme for BaseURL)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "уровень логирования: debug|info|warn|error")
	// Client flags
	flag.StringVar(&cfg.ClientDBPath, "client-db", cfg.ClientDBPath, "каталог локального хранилища")
	flag.StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "path to auth token file (client)")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show client version and exit")
	flag.DurationVar(&cfg.OpTimeout, "op-timeout", cfg.OpTimeout, "дедлайн одной операции хранилища/сети")

	flag.Parse()

	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = DefaultDatabaseDSN
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "dev-secret-key"
	}
	// validate BaseURL: must be in "address:port" (no scheme, no path). Otherwise use default.
	hostPortRe := regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = "localhost:8081"
	}

	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + cfg.BaseURL
	} else {
		cfg.ServerURL = "http://" + cfg.BaseURL
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}

	// Fill client defaults if empty
	home, _ := os.UserHomeDir()
	if cfg.ClientDBPath == "" {
		cfg.ClientDBPath = filepath.Join(home, ".mdshelf")
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = filepath.Join(home, ".mdshelf_token")
	}

	if cfg.StoreName == "" {
		cfg.StoreName = DefaultStoreName
	}
	if cfg.StoreVersion < 0 {
		cfg.StoreVersion = 0
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	if cfg.SyncMaxAttempts <= 0 {
		cfg.SyncMaxAttempts = DefaultSyncMaxAttempts
	}
	if cfg.CacheVersion == "" {
		cfg.CacheVersion = "v1"
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = "shelf"
	}
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	if cfg.CacheBackend != "memory" {
		cfg.CacheBackend = "sqlite"
	}
	if len(cfg.CacheTrustedHosts) == 0 {
		cfg.CacheTrustedHosts = append([]string(nil), DefaultTrustedHosts...)
	}
}
