// 包 app：按配置装配存储、远端客户端、解析器与同步器，供服务端与命令行共用
package app

import (
	"context"
	"database/sql"
	"fmt"
	"wilayah-api/internal/bulksync"
	"wilayah-api/internal/config"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/remote"
	"wilayah-api/internal/resolver"
	"wilayah-api/internal/store"
	"wilayah-api/internal/utils"
)

type App struct {
	Store    *store.Store
	Remote   *remote.Client
	Resolver *resolver.Resolver
	Sync     *bulksync.Synchronizer
}

// openDB：按驱动打开数据库并返回对应方言
func openDB(cfg config.Config) (*sql.DB, store.Dialect, error) {
	switch cfg.StoreDriver {
	case "", "sqlite":
		db, err := utils.OpenSQLite(cfg.SQLitePath)
		return db, store.SQLite, err
	case "postgres", "pg":
		db, err := utils.OpenPostgres(cfg.PostgresDSN, cfg.PGMaxOpen, cfg.PGMaxIdle)
		return db, store.Postgres, err
	}
	return nil, 0, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// 文档注释：装配整套引擎
// 约束：建表失败视为启动失败；syncOpts 追加在宽度配置之后。
func Build(ctx context.Context, cfg config.Config, syncOpts ...bulksync.Option) (*App, error) {
	l := logger.L()
	db, dialect, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	st, err := store.Open(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	l.Info("store_ready", "driver", dialect.String())

	rc := remote.New(cfg.RemoteOrigins(),
		remote.WithTimeout(cfg.RemoteTimeout),
		remote.WithCacheBust(cfg.RemoteCacheBust),
		remote.WithIdleConnsPerHost(max(cfg.WidthRegencies, cfg.WidthDistricts, cfg.WidthVillages, remote.DefaultIdleConnsPerHost)),
	)
	l.Info("remote_ready", "mode", cfg.RemoteMode, "origins", len(rc.Origins()))

	res := resolver.New(st, rc)
	opts := append([]bulksync.Option{bulksync.WithWidths(bulksync.Widths{
		Regencies: cfg.WidthRegencies,
		Districts: cfg.WidthDistricts,
		Villages:  cfg.WidthVillages,
	})}, syncOpts...)
	return &App{Store: st, Remote: rc, Resolver: res, Sync: bulksync.New(res, opts...)}, nil
}

func (a *App) Close() error { return a.Store.Close() }
