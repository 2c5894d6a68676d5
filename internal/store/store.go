// 包 store: PostgreSQL 数据访问层，负责 ping 记录、犯罪点查询与请求统计
package store

import (
	"context"
	"database/sql"
	"time"

	"sentinel-api/internal/borough"
	"sentinel-api/internal/crime"
	"sentinel-api/internal/logger"
	"sentinel-api/internal/pings"
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// RecordPing: 实现 pings.Recorder；同一 id 重复写入时忽略
func (s *Store) RecordPing(ctx context.Context, p pings.Ping) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO _pings(id, lat, lng, origin, created_at, expires_at)
        VALUES($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Lat, p.Lng, p.Origin, p.CreatedAt, p.ExpiresAt)
	return err
}

// RecentPings: 最近 limit 条 ping，按创建时间倒序
func (s *Store) RecentPings(ctx context.Context, limit int) ([]pings.Ping, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, lat, lng, origin, created_at, expires_at
        FROM _pings ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]pings.Ping, 0, limit)
	for rows.Next() {
		var p pings.Ping
		if err := rows.Scan(&p.ID, &p.Lat, &p.Lng, &p.Origin, &p.CreatedAt, &p.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// 文档注释：按范围查询犯罪点
// 约束：范围含边界；crimeType 为空时不按类型过滤；limit<=0 时不限条数。
func (s *Store) CrimesInBounds(ctx context.Context, b borough.Bounds, crimeType string, limit int) ([]crime.Record, error) {
	q := `SELECT month, crime_type, lng, lat FROM _crimes
        WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4
          AND ($5 = '' OR crime_type = $5)`
	args := []any{b.South, b.North, b.West, b.East, crimeType}
	if limit > 0 {
		q += " LIMIT $6"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]crime.Record, 0)
	for rows.Next() {
		var r crime.Record
		if err := rows.Scan(&r.Month, &r.Type, &r.Lng, &r.Lat); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	logger.L().Debug("db_crimes_in_bounds", "rows", len(out), "type", crimeType)
	return out, rows.Err()
}

// CrimeCount: _crimes 行数，用于启动时判断是否需要初始导入
func (s *Store) CrimeCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM _crimes").Scan(&n)
	return n, err
}

// IncrStats: 成功请求后递增总计与当日计数；newVisitor 为真时递增访客计数
// 约束：统计失败不影响业务，只记录日志
func (s *Store) IncrStats(ctx context.Context, newVisitor bool) {
	exec := func(q string) {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			logger.L().Warn("stats_incr_error", "err", err)
		}
	}
	exec("UPDATE _stats_total SET total_requests=total_requests+1 WHERE id=1")
	exec("INSERT INTO _stats_daily(day, requests) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET requests=_stats_daily.requests+1")
	if newVisitor {
		exec("UPDATE _stats_total SET total_visitors=total_visitors+1 WHERE id=1")
		exec("INSERT INTO _stats_daily(day, visitors) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET visitors=_stats_daily.visitors+1")
	}
	logger.L().Debug("stats_incr", "new_visitor", newVisitor)
}

// Totals: 累计与当日的请求数、访客数
type Totals struct {
	TotalRequests int64     `json:"totalRequests"`
	TotalVisitors int64     `json:"totalVisitors"`
	TodayRequests int64     `json:"todayRequests"`
	TodayVisitors int64     `json:"todayVisitors"`
	At            time.Time `json:"at"`
}

// GetTotals: 读取统计；当日尚无记录时按 0 返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	t := Totals{At: time.Now().UTC()}
	err := s.db.QueryRowContext(ctx, "SELECT total_requests, total_visitors FROM _stats_total WHERE id=1").
		Scan(&t.TotalRequests, &t.TotalVisitors)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, "SELECT requests, visitors FROM _stats_daily WHERE day=current_date").
		Scan(&t.TodayRequests, &t.TodayVisitors)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	logger.L().Debug("stats_totals", "total", t.TotalRequests, "today", t.TodayRequests)
	return &t, nil
}
