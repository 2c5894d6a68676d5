package borough

import (
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
)

// 文档注释：伦敦行政区（borough）的最小数据结构
// 约束：Shape 仅来自 GeoJSON 的 Polygon/MultiPolygon，第一环为外环；Bounds 只取外环极值。
type Borough struct {
	Code   string
	Name   string
	Color  string
	Shape  orb.MultiPolygon
	Bounds Bounds
}

// Bounds：包围盒，字段名与前端保持一致
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Contains：闭区间判定，边界上的点视为命中
func (b Bounds) Contains(lng, lat float64) bool {
	return lng >= b.West && lng <= b.East && lat >= b.South && lat <= b.North
}

// 加载结果快照：只读引用，查询期共享
type Snapshot struct {
	Boroughs   []Borough
	Collection *geojson.FeatureCollection
	BuiltAt    time.Time
}

// London：伦敦整体范围（随机 ping 与犯罪数据过滤共用）
var London = Bounds{North: 51.686, South: 51.286, West: -0.51, East: 0.334}
