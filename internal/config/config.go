package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Значения по умолчанию
const (
	defaultPort             = "8080"
	defaultBucketCapacity   = 10
	defaultBucketWindow     = 10
	defaultSlidingWindow    = 60
	defaultSlidingLimit     = 50
	defaultMaxQueue         = 256
	defaultHashAsyncBytes   = 10 << 20
	defaultWebhookRetries   = 3
	defaultWebhookBackoffMs = 1000
	defaultWebhookTimeout   = 5
	defaultWebhookParallel  = 8
	defaultRouteCacheTTL    = 3600
	defaultRouteMissTTL     = 30
	defaultDemoUserID       = 1
)

var (
	defaultPathPrefixes  = []string{"/r/", "/api/v1/releases", "/api/v1/routes"}
	defaultTargetSchemes = []string{"https", "http"}
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
	Webhook   WebhookConfig

	v *viper.Viper
}

type AppConfig struct {
	Port           string
	AllowedOrigins []string
	RouteCacheTTL  time.Duration
	RouteMissTTL   time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

// APIKey секрет подписи и владелец ключа
type APIKey struct {
	Secret string
	UserID int64
}

type AuthConfig struct {
	APIKeys    map[string]APIKey // key_id -> секрет и пользователь
	DemoUserID int64             // пользователь по умолчанию, когда ключи не настроены
}

// RateLimitConfig настройки скользящего окна (middleware по префиксам путей).
// Параметры token bucket читаются на лету через TokenBucket().
type RateLimitConfig struct {
	PathPrefixes []string
	Limit        int
	Window       time.Duration
	IdleTTL      time.Duration
}

type WorkerConfig struct {
	MaxQueue           int
	TaskTTL            time.Duration
	HashAsyncSizeBytes int64
}

type WebhookConfig struct {
	MaxRetries     int
	Backoff        time.Duration
	Timeout        time.Duration
	MaxConcurrency int
}

// TokenBucketConfig ёмкость и окно пополнения token bucket
type TokenBucketConfig struct {
	Capacity int
	Window   time.Duration
}

// TargetPolicy правила проверки target URL для редиректов
type TargetPolicy struct {
	AllowedSchemes []string
	BlockedDomains []string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// .env не обязателен: в контейнере всё приходит через окружение
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else {
		v.WatchConfig()
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := Config{v: v}

	cfg.App.Port = v.GetString("APP_PORT")
	if cfg.App.Port == "" {
		cfg.App.Port = defaultPort
	}
	cfg.App.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"), false)
	cfg.App.RouteCacheTTL = seconds(v, "ROUTE_CACHE_TTL_SEC", defaultRouteCacheTTL)
	cfg.App.RouteMissTTL = seconds(v, "ROUTE_CACHE_MISS_TTL_SEC", defaultRouteMissTTL)

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")

	// Format: key_id:secret:user_id,key_id2:secret2:user_id2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))
	cfg.Auth.DemoUserID = v.GetInt64("DEMO_USER_ID")
	if cfg.Auth.DemoUserID <= 0 {
		cfg.Auth.DemoUserID = defaultDemoUserID
	}

	cfg.RateLimit.PathPrefixes = splitList(v.GetString("RATE_LIMIT_PATH_PREFIXES"), false)
	if len(cfg.RateLimit.PathPrefixes) == 0 {
		cfg.RateLimit.PathPrefixes = defaultPathPrefixes
	}
	// RATE_LIMIT_LIMIT имеет приоритет над RATE_LIMIT_PER_MINUTE
	cfg.RateLimit.Limit = v.GetInt("RATE_LIMIT_LIMIT")
	if cfg.RateLimit.Limit <= 0 {
		cfg.RateLimit.Limit = v.GetInt("RATE_LIMIT_PER_MINUTE")
	}
	if cfg.RateLimit.Limit <= 0 {
		cfg.RateLimit.Limit = defaultSlidingLimit
	}
	cfg.RateLimit.Window = seconds(v, "RATE_LIMIT_WINDOW_SEC", defaultSlidingWindow)
	cfg.RateLimit.IdleTTL = seconds(v, "RATE_LIMIT_IDLE_TTL_SEC", 0)

	cfg.Worker.MaxQueue = v.GetInt("WORKER_MAX_QUEUE")
	if cfg.Worker.MaxQueue <= 0 {
		cfg.Worker.MaxQueue = defaultMaxQueue
	}
	cfg.Worker.TaskTTL = seconds(v, "WORKER_TASK_TTL_SEC", 0)
	cfg.Worker.HashAsyncSizeBytes = v.GetInt64("HASH_ASYNC_SIZE_BYTES")
	if cfg.Worker.HashAsyncSizeBytes <= 0 {
		cfg.Worker.HashAsyncSizeBytes = defaultHashAsyncBytes
	}

	cfg.Webhook.MaxRetries = v.GetInt("WEBHOOK_MAX_RETRIES")
	if cfg.Webhook.MaxRetries <= 0 {
		cfg.Webhook.MaxRetries = defaultWebhookRetries
	}
	backoffMs := v.GetInt("WEBHOOK_BACKOFF_MS")
	if backoffMs <= 0 {
		backoffMs = defaultWebhookBackoffMs
	}
	cfg.Webhook.Backoff = time.Duration(backoffMs) * time.Millisecond
	cfg.Webhook.Timeout = seconds(v, "WEBHOOK_TIMEOUT_SEC", defaultWebhookTimeout)
	cfg.Webhook.MaxConcurrency = v.GetInt("WEBHOOK_MAX_CONCURRENCY")
	if cfg.Webhook.MaxConcurrency <= 0 {
		cfg.Webhook.MaxConcurrency = defaultWebhookParallel
	}

	return &cfg
}

// TokenBucket перечитывает параметры token bucket при каждом вызове,
// чтобы лимиты можно было менять без рестарта.
func (c *Config) TokenBucket() TokenBucketConfig {
	capacity := c.v.GetInt("RATE_LIMIT_BURST")
	if capacity <= 0 {
		capacity = defaultBucketCapacity
	}
	return TokenBucketConfig{
		Capacity: capacity,
		Window:   seconds(c.v, "RATE_LIMIT_WINDOW_SEC", defaultBucketWindow),
	}
}

// TargetPolicy перечитывает списки схем и заблокированных доменов
func (c *Config) TargetPolicy() TargetPolicy {
	schemes := splitList(c.v.GetString("ALLOWED_TARGET_SCHEMES"), true)
	if len(schemes) == 0 {
		schemes = defaultTargetSchemes
	}
	return TargetPolicy{
		AllowedSchemes: schemes,
		BlockedDomains: splitList(c.v.GetString("BLOCKED_TARGET_DOMAINS"), true),
	}
}

func seconds(v *viper.Viper, key string, def int) time.Duration {
	n := v.GetInt(key)
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

// splitList разбирает список через запятую, убирая пустые значения и дубли
func splitList(raw string, lower bool) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if lower {
			item = strings.ToLower(item)
		}
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// parseAPIKeys parses API keys in format "key_id:secret:user_id,..."
func parseAPIKeys(raw string) map[string]APIKey {
	keys := make(map[string]APIKey)
	for _, entry := range splitList(raw, false) {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			continue
		}
		userID, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil || userID <= 0 {
			continue
		}
		keys[strings.TrimSpace(parts[0])] = APIKey{
			Secret: strings.TrimSpace(parts[1]),
			UserID: userID,
		}
	}
	return keys
}
