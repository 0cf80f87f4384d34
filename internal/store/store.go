// 包 store：四个行政层级集合的本地持久化访问层（SQLite / PostgreSQL）
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"wilayah-api/internal/logger"
	"wilayah-api/internal/migrate"
	"wilayah-api/internal/region"
)

// Dialect：SQL 方言，仅影响占位符写法
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// placeholder：第 n 个（从 1 起）参数占位符
func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Store：本地存储入口，持有连接池；读写均按层级路由到对应集合
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func AttachDB(db *sql.DB, d Dialect) *Store { return &Store{db: db, dialect: d} }

// 文档注释：挂载连接并确保表结构与索引存在
func Open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	logger.L().Debug("store_open", "dialect", d.String())
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func columns(l region.Level) string {
	if l.HasParent() {
		return "id, " + l.ParentColumn() + ", name"
	}
	return "id, name"
}

func (s *Store) query(ctx context.Context, l region.Level, q string, args ...any) ([]region.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", l.Table(), err)
	}
	defer rows.Close()
	var out []region.Record
	for rows.Next() {
		var r region.Record
		if l.HasParent() {
			err = rows.Scan(&r.ID, &r.ParentID, &r.Name)
		} else {
			err = rows.Scan(&r.ID, &r.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", l.Table(), err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", l.Table(), err)
	}
	return region.SortByName(out), nil
}

// All：返回层级全部记录，按名称区域规则排序
func (s *Store) All(ctx context.Context, l region.Level) ([]region.Record, error) {
	q := "SELECT " + columns(l) + " FROM " + l.Table() + " ORDER BY name"
	return s.query(ctx, l, q)
}

// 文档注释：按父级索引查询子记录
// 约束：根层级无父字段，等价于 All；结果按名称排序。
func (s *Store) ByParent(ctx context.Context, l region.Level, parentID string) ([]region.Record, error) {
	if !l.HasParent() {
		return s.All(ctx, l)
	}
	q := "SELECT " + columns(l) + " FROM " + l.Table() +
		" WHERE " + l.ParentColumn() + " = " + s.dialect.placeholder(1) + " ORDER BY name"
	return s.query(ctx, l, q, parentID)
}

func (s *Store) upsertSQL(l region.Level) string {
	cols := columns(l)
	n := strings.Count(cols, ",") + 1
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.dialect.placeholder(i + 1)
	}
	set := "name=EXCLUDED.name"
	if l.HasParent() {
		set = l.ParentColumn() + "=EXCLUDED." + l.ParentColumn() + ", " + set
	}
	return "INSERT INTO " + l.Table() + "(" + cols + ") VALUES(" + strings.Join(ph, ",") + ") ON CONFLICT (id) DO UPDATE SET " + set
}

// 文档注释：批量写入（按 id 覆盖）
// 约束：单事务提交，任一失败整体回滚；空输入不开启事务。
func (s *Store) PutBulk(ctx context.Context, l region.Level, recs []region.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", l.Table(), err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, s.upsertSQL(l))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", l.Table(), err)
	}
	defer stmt.Close()
	for _, r := range recs {
		if l.HasParent() {
			_, err = stmt.ExecContext(ctx, r.ID, r.ParentID, r.Name)
		} else {
			_, err = stmt.ExecContext(ctx, r.ID, r.Name)
		}
		if err != nil {
			return fmt.Errorf("upsert %s %q: %w", l.Table(), r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", l.Table(), err)
	}
	logger.L().Debug("store_put_bulk", "level", l.String(), "count", len(recs))
	return nil
}

func (s *Store) Count(ctx context.Context, l region.Level) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+l.Table()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", l.Table(), err)
	}
	return n, nil
}

// ClearAll：单事务清空四个集合，自叶向根删除
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()
	for i := len(region.Levels) - 1; i >= 0; i-- {
		t := region.Levels[i].Table()
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	logger.L().Info("store_cleared")
	return nil
}
