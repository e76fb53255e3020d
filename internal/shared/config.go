package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	RedisPrefix string
	GatewayBase string
	GatewayKey  string
	GatewayRPS  int

	Workers       int
	StubTimeout   time.Duration
	FacetTimeout  time.Duration
	ToggleTimeout time.Duration
	CacheTTL      time.Duration
	MarkTTL       time.Duration // 0 keeps reaction marks until cleared
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/trackfeed?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		RedisPrefix:   env("REDIS_PREFIX", ""),
		GatewayBase:   env("GATEWAY_BASE_URL", "https://gateway.trackfeed.local/v1"),
		GatewayKey:    env("GATEWAY_API_KEY", ""),
		GatewayRPS:    atoi("GATEWAY_RPS", 10),
		Workers:       atoi("AGG_WORKERS", 8),
		StubTimeout:   time.Duration(atoi("STUB_TIMEOUT_SECONDS", 5)) * time.Second,
		FacetTimeout:  time.Duration(atoi("FACET_TIMEOUT_SECONDS", 2)) * time.Second,
		ToggleTimeout: time.Duration(atoi("TOGGLE_TIMEOUT_SECONDS", 3)) * time.Second,
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 86400)) * time.Second,
		MarkTTL:       time.Duration(atoi("MARK_TTL_SECONDS", 0)) * time.Second,
	}
	if c.GatewayKey == "" {
		log.Warn().Msg("GATEWAY_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
