// 包 crime：警方街头犯罪 CSV 的解析、内存数据集与数据库导入
package crime

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"sentinel-api/internal/borough"
)

var ErrMissingColumn = errors.New("missing csv column")

// Record：单条犯罪点
type Record struct {
	Month string  `json:"month"`
	Type  string  `json:"crimeType"`
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
}

// Coordinates：[lng, lat]
func (r Record) Coordinates() [2]float64 { return [2]float64{r.Lng, r.Lat} }

// 文档注释：解析 CSV 并按范围过滤
// 参数：bounds 为保留范围（含边界），通常为 borough.London。
// 约束：必须包含 Longitude、Latitude 列；Crime type、Month 可缺省。坐标为空、非数字或越界的行被跳过。
// 返回：保留的记录与被跳过的行数。
func Parse(r io.Reader, bounds borough.Bounds) ([]Record, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	lngCol, ok1 := cols["Longitude"]
	latCol, ok2 := cols["Latitude"]
	if !ok1 || !ok2 {
		return nil, 0, fmt.Errorf("%w: Longitude/Latitude", ErrMissingColumn)
	}
	typeCol, hasType := cols["Crime type"]
	monthCol, hasMonth := cols["Month"]

	var out []Record
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, err
		}
		lng, okLng := field(row, lngCol)
		lat, okLat := field(row, latCol)
		if !okLng || !okLat || !bounds.Contains(lng, lat) {
			skipped++
			continue
		}
		rec := Record{Lng: lng, Lat: lat}
		if hasType && typeCol < len(row) {
			rec.Type = row[typeCol]
		}
		if hasMonth && monthCol < len(row) {
			rec.Month = row[monthCol]
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

func field(row []string, i int) (float64, bool) {
	if i >= len(row) {
		return 0, false
	}
	s := strings.TrimSpace(row[i])
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FilterBounds：保留落在 b 内（含边界）的记录
func FilterBounds(recs []Record, b borough.Bounds) []Record {
	out := make([]Record, 0)
	for _, r := range recs {
		if b.Contains(r.Lng, r.Lat) {
			out = append(out, r)
		}
	}
	return out
}
