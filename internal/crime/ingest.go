package crime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sentinel-api/internal/borough"
	"sentinel-api/internal/logger"
	"sentinel-api/internal/metrics"
)

const BatchSize = 5000

var ErrBadStatus = errors.New("bad status")

const insertSQL = "INSERT INTO _crimes(month, crime_type, lng, lat) VALUES($1,$2,$3,$4)"

// 文档注释：全量替换 _crimes 表
// 背景：首个事务先清空旧数据，之后每 BatchSize 行提交一次，降低锁持有与 WAL 压力。
// 异常：数据库错误直接返回，已提交的批次不回滚（交由下次刷新覆盖）。
func Import(ctx context.Context, db *sql.DB, recs []Record) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM _crimes"); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return err
	}
	for i, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.Month, r.Type, r.Lng, r.Lat); err != nil {
			return err
		}
		if (i+1)%BatchSize == 0 {
			logger.L().Info("crime_import_progress", "count", i+1)
			if err := tx.Commit(); err != nil {
				return err
			}
			if tx, err = db.BeginTx(ctx, nil); err != nil {
				return err
			}
			if stmt, err = tx.PrepareContext(ctx, insertSQL); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.CrimeRowsImportedTotal.Add(float64(len(recs)))
	logger.L().Info("crime_import_done", "count", len(recs))
	return nil
}

// Fetch：下载远端 CSV 并解析（伦敦范围过滤）
func Fetch(ctx context.Context, client *http.Client, srcURL string) ([]Record, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	recs, skipped, err := Parse(resp.Body, borough.London)
	if err != nil {
		return nil, err
	}
	logger.L().Info("crime_fetch_ok", "src", srcURL, "rows", len(recs), "skipped", skipped)
	return recs, nil
}

// Refresher：拉取→替换内存数据集→（可选）写库
type Refresher struct {
	URL     string
	Client  *http.Client
	Dataset *Dataset
	DB      *sql.DB
}

func (r *Refresher) Refresh(ctx context.Context) error {
	recs, err := Fetch(ctx, r.Client, r.URL)
	if err != nil {
		return err
	}
	if r.Dataset != nil {
		r.Dataset.Replace(recs)
	}
	if r.DB != nil {
		return Import(ctx, r.DB, recs)
	}
	return nil
}
