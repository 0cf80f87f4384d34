// 包 config：从 .env 与环境变量读取运行配置，缺省值内联
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr    string
	APIBase string

	StoreDriver string // sqlite | postgres
	SQLitePath  string
	PostgresDSN string
	PGMaxOpen   int
	PGMaxIdle   int

	RemoteMode      string // mirrors | proxy
	RemoteMirrors   []string
	RemoteProxyURL  string
	RemoteTimeout   time.Duration
	RemoteCacheBust bool

	WidthRegencies int
	WidthDistricts int
	WidthVillages  int
	SyncWeekly     bool
	SyncWeekday    time.Weekday
	SyncHour       int
	SyncTZ         string

	RedisEnabled     bool
	RedisAddr        string
	RedisPass        string
	RedisDB          int
	ResponseCacheTTL time.Duration

	AdminToken string

	RateLimitEnabled bool
	RateLimitQPS     int

	TLSEnable   bool
	TLSCertPath string
	TLSKeyPath  string
}

// 文档注释：加载配置
// 约束：先尝试 .env 与 data/env/.env（不存在时忽略），已存在的环境变量优先于文件。
func Load() Config {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	return FromEnv()
}

// FromEnv：只读取当前进程环境
func FromEnv() Config {
	c := Config{
		Addr:        str("ADDR", ":8080"),
		APIBase:     strings.TrimSuffix("/"+strings.Trim(str("API_BASE", "/api"), "/"), "/"),
		StoreDriver: strings.ToLower(str("STORE_DRIVER", "sqlite")),
		SQLitePath:  str("SQLITE_PATH", filepath.Join("data", "wilayah.db")),
		PostgresDSN: os.Getenv("PG_DSN"),
		PGMaxOpen:   num("PG_MAX_OPEN_CONNS", 50),
		PGMaxIdle:   num("PG_MAX_IDLE_CONNS", 25),

		RemoteMode:      strings.ToLower(str("REMOTE_MODE", "mirrors")),
		RemoteMirrors:   list("REMOTE_MIRRORS"),
		RemoteProxyURL:  os.Getenv("REMOTE_PROXY_URL"),
		RemoteTimeout:   time.Duration(num("REMOTE_TIMEOUT_MS", 15000)) * time.Millisecond,
		RemoteCacheBust: flag("REMOTE_CACHE_BUST", true),

		WidthRegencies: num("SYNC_WIDTH_REGENCIES", 6),
		WidthDistricts: num("SYNC_WIDTH_DISTRICTS", 12),
		WidthVillages:  num("SYNC_WIDTH_VILLAGES", 20),
		SyncWeekly:     flag("SYNC_WEEKLY", false),
		SyncWeekday:    weekday("SYNC_WEEKDAY", time.Monday),
		SyncHour:       num("SYNC_HOUR", 3),
		SyncTZ:         str("SYNC_TZ", "Asia/Jakarta"),

		RedisEnabled:     flag("REDIS_ENABLED", false),
		RedisPass:        os.Getenv("REDIS_PASS"),
		RedisDB:          num("REDIS_DB", 0),
		ResponseCacheTTL: time.Duration(num("RESPONSE_CACHE_TTL_MIN", 24*60)) * time.Minute,

		AdminToken: os.Getenv("ADMIN_TOKEN"),

		RateLimitEnabled: flag("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:     num("RATE_LIMIT_QPS", 200),

		TLSEnable:   flag("TLS_ENABLE", false),
		TLSCertPath: str("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:  str("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
	}
	c.RedisAddr = str("REDIS_HOST", "127.0.0.1") + ":" + str("REDIS_PORT", "6379")
	if c.PostgresDSN == "" {
		c.PostgresDSN = BuildPostgresDSNFromEnv()
	}
	return c
}

// RemoteOrigins：按模式返回候选源；代理模式下仅一个
func (c Config) RemoteOrigins() []string {
	if c.RemoteMode == "proxy" && c.RemoteProxyURL != "" {
		return []string{c.RemoteProxyURL}
	}
	return c.RemoteMirrors
}

func BuildPostgresDSNFromEnv() string {
	host := str("PG_HOST", "localhost")
	port := str("PG_PORT", "5432")
	user := str("PG_USER", "postgres")
	pass := os.Getenv("PG_PASSWORD")
	db := str("PG_DB", "wilayah")
	ssl := str("PG_SSLMODE", "disable")
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// num：解析失败或为负时回退默认
func num(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func flag(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func weekday(key string, def time.Weekday) time.Weekday {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || v == name[:3] {
			return d
		}
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n)
	}
	return def
}
