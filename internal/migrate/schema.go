package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/region"
)

// Statements：四个集合的建表与索引语句
// 约束：名称索引与父字段索引在建库时必然存在，读路径不再需要扫描回退；SQLite 与 PostgreSQL 通用。
func Statements() []string {
	var stmts []string
	for _, l := range region.Levels {
		t := l.Table()
		if l.HasParent() {
			stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            %s TEXT NOT NULL,
            name TEXT NOT NULL
        )`, t, l.ParentColumn()))
			stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s, name)`, t, l.ParentColumn(), t, l.ParentColumn()))
		} else {
			stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL
        )`, t))
		}
		stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_name ON %s(name)`, t, t))
	}
	return stmts
}

// 文档注释：首次运行自动创建集合与索引
// 约束：使用 IF NOT EXISTS，重复执行无副作用。
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range Statements() {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema stmt %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
