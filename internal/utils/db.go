// 包 utils：Postgres / Redis / TLS 连接工具，统一从环境变量读取
package utils

import (
	"database/sql"
	"os"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

// DBEnabled：DB_ENABLED=false 时以纯内存模式运行
func DBEnabled() bool {
	return !strings.EqualFold(os.Getenv("DB_ENABLED"), "false")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// BuildPostgresDSNFromEnv：PG_HOST/PG_PORT/PG_USER/PG_PASSWORD/PG_DB/PG_SSLMODE 拼接 DSN
func BuildPostgresDSNFromEnv() string {
	dsn := "postgres://" + envOr("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + envOr("PG_HOST", "localhost") + ":" + envOr("PG_PORT", "5432") +
		"/" + envOr("PG_DB", "sentinel") + "?sslmode=" + envOr("PG_SSLMODE", "disable")
	return dsn
}

// OpenPostgresFromEnv：打开连接池，PG_MAX_OPEN_CONNS / PG_MAX_IDLE_CONNS 可调
// 约束：sql.Open 不建立连接，调用方需 Ping 确认可用
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(envInt("PG_MAX_OPEN_CONNS", 20))
	db.SetMaxIdleConns(envInt("PG_MAX_IDLE_CONNS", 10))
	return db, nil
}
