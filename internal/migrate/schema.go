package migrate

import (
	"context"
	"database/sql"

	"sentinel-api/internal/logger"
)

// Statements：建表语句，按顺序执行
// 约束：全部使用 IF NOT EXISTS / ON CONFLICT DO NOTHING，可重复执行
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS _pings (
        id UUID PRIMARY KEY,
        lat DOUBLE PRECISION NOT NULL,
        lng DOUBLE PRECISION NOT NULL,
        origin TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        expires_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_pings_created ON _pings(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS _crimes (
        id BIGSERIAL PRIMARY KEY,
        month TEXT NOT NULL,
        crime_type TEXT NOT NULL,
        lng DOUBLE PRECISION NOT NULL,
        lat DOUBLE PRECISION NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_crimes_lat_lng ON _crimes(lat, lng)`,
	`CREATE INDEX IF NOT EXISTS idx_crimes_month ON _crimes(month)`,
	`CREATE TABLE IF NOT EXISTS _stats_total (
        id INT PRIMARY KEY,
        total_requests BIGINT NOT NULL DEFAULT 0,
        total_visitors BIGINT NOT NULL DEFAULT 0
    )`,
	`CREATE TABLE IF NOT EXISTS _stats_daily (
        day DATE PRIMARY KEY,
        requests BIGINT NOT NULL DEFAULT 0,
        visitors BIGINT NOT NULL DEFAULT 0
    )`,
	`INSERT INTO _stats_total(id, total_requests, total_visitors)
     VALUES(1, 0, 0)
     ON CONFLICT (id) DO NOTHING`,
}

// Execer：*sql.DB / *sql.Tx 的公共子集
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// 背景：首次运行自动创建 ping、犯罪点与统计表
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
