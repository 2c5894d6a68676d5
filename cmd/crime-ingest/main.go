// 数据导入工具：读取本地或远端的街头犯罪 CSV，过滤到伦敦范围后批量写入 PostgreSQL
package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"sentinel-api/internal/borough"
	"sentinel-api/internal/crime"
	"sentinel-api/internal/logger"
	"sentinel-api/internal/migrate"
	"sentinel-api/internal/utils"

	"github.com/joho/godotenv"
)

// 用法：crime-ingest [path-or-url]；缺省依次取 CRIME_CSV_PATH、CRIME_REFRESH_URL
func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	src := os.Getenv("CRIME_CSV_PATH")
	if src == "" {
		src = os.Getenv("CRIME_REFRESH_URL")
	}
	if len(os.Args) > 1 {
		src = os.Args[1]
	}
	if src == "" {
		l.Error("crime_ingest_no_source")
		os.Exit(2)
	}

	ctx := context.Background()
	var recs []crime.Record
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		r, err := crime.Fetch(ctx, nil, src)
		if err != nil {
			l.Error("crime_fetch_error", "src", src, "err", err)
			os.Exit(1)
		}
		recs = r
	} else {
		f, err := os.Open(src)
		if err != nil {
			l.Error("crime_open_error", "src", src, "err", err)
			os.Exit(1)
		}
		r, skipped, err := crime.Parse(f, borough.London)
		_ = f.Close()
		if err != nil {
			l.Error("crime_parse_error", "src", src, "err", err)
			os.Exit(1)
		}
		l.Info("crime_parse_ok", "rows", len(r), "skipped", skipped)
		recs = r
	}

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	if err := crime.Import(ctx, db, recs); err != nil {
		l.Error("crime_import_error", "err", err)
		os.Exit(1)
	}
	l.Info("crime_ingest_done", "rows", len(recs))
}
