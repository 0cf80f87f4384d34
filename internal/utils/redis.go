// 包 utils：数据库、Redis 与 TLS 证书等基础设施的打开工具
package utils

import (
	"wilayah-api/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按地址、密码与库号打开 Redis 客户端；地址为空时返回 nil
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	if db < 0 {
		db = 0
	}
	logger.L().Debug("redis_open", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}
