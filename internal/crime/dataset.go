package crime

import (
	"os"
	"sync/atomic"
	"time"

	"sentinel-api/internal/borough"
	"sentinel-api/internal/logger"
)

type snapshot struct {
	records  []Record
	loadedAt time.Time
}

// Dataset：内存中的犯罪点集合，整体替换，读无锁
type Dataset struct {
	cur atomic.Pointer[snapshot]
}

func NewDataset(recs []Record) *Dataset {
	d := &Dataset{}
	d.Replace(recs)
	return d
}

// LoadFile：从本地 CSV 构建数据集（伦敦范围过滤）
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, skipped, err := Parse(f, borough.London)
	if err != nil {
		return nil, err
	}
	logger.L().Info("crime_csv_loaded", "path", path, "rows", len(recs), "skipped", skipped)
	return NewDataset(recs), nil
}

func (d *Dataset) Replace(recs []Record) {
	d.cur.Store(&snapshot{records: recs, loadedAt: time.Now()})
}

func (d *Dataset) Len() int {
	if s := d.cur.Load(); s != nil {
		return len(s.records)
	}
	return 0
}

func (d *Dataset) LoadedAt() time.Time {
	if s := d.cur.Load(); s != nil {
		return s.loadedAt
	}
	return time.Time{}
}

// InBounds：范围内记录；crimeType 非空时同时按类型过滤
func (d *Dataset) InBounds(b borough.Bounds, crimeType string) []Record {
	s := d.cur.Load()
	if s == nil {
		return []Record{}
	}
	out := make([]Record, 0)
	for _, r := range s.records {
		if crimeType != "" && r.Type != crimeType {
			continue
		}
		if b.Contains(r.Lng, r.Lat) {
			out = append(out, r)
		}
	}
	return out
}
