// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"time"
	"wilayah-api/internal/api"
	"wilayah-api/internal/app"
	"wilayah-api/internal/bulksync"
	"wilayah-api/internal/config"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/metrics"
	"wilayah-api/internal/middleware"
	"wilayah-api/internal/utils"
)

func main() {
	cfg := config.Load()
	l := logger.Setup()
	l.Debug("log_init_ok")
	l.Debug("config_api_base", "base", cfg.APIBase)
	ctx := context.Background()

	// 响应缓存：启用 Redis 且可连通时共享缓存，否则退回进程内缓存
	var cache api.ResponseCache
	if cfg.RedisEnabled {
		rc := utils.OpenRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
			cache = api.NewRedisCache(rc, cfg.ResponseCacheTTL)
		}
	}
	if cache == nil {
		l.Info("redis_disabled")
		cache = api.NewMemCache(cfg.ResponseCacheTTL)
	}

	a, err := app.Build(ctx, cfg, bulksync.WithFinishHook(func(error) {
		cache.Flush(context.Background())
	}))
	if err != nil {
		l.Error("app_build_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.SyncWeekly {
		loc, err := time.LoadLocation(cfg.SyncTZ)
		if err != nil {
			l.Warn("sync_tz_invalid", "tz", cfg.SyncTZ, "err", err)
			loc = nil
		}
		bulksync.StartWeekly(ctx, a.Sync, loc, cfg.SyncWeekday, cfg.SyncHour)
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(a.Resolver, a.Sync, cache, cfg.AdminToken)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	handler := logger.AccessMiddleware(l)(mux)
	if cfg.RateLimitEnabled {
		handler = middleware.RateLimit(cfg.RateLimitQPS)(handler)
		l.Info("rate_limit_enabled", "qps", cfg.RateLimitQPS)
	}
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "wilayah-api.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
		if err := s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath); err != nil {
			l.Error("server_error", "err", err)
		}
		return
	}
	l.Info("listening", "addr", cfg.Addr, "base", cfg.APIBase)
	if err := s.ListenAndServe(); err != nil {
		l.Error("server_error", "err", err)
	}
}
