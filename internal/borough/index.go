// 包 borough：伦敦行政区边界的加载、包围盒映射与点归属查询
package borough

import (
	"sort"
	"sync/atomic"
	"time"

	"sentinel-api/internal/logger"
	"sentinel-api/internal/metrics"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// 文档注释：borough 查询索引（包围盒候选 → 多边形精确判定）
// 约束：快照整体替换（Swap），查询期无锁读取；替换时清空查询缓存。
type Index struct {
	snap  atomic.Pointer[Snapshot]
	cache *lookupCache
}

func NewIndex(snap *Snapshot, cacheSize int, ttl time.Duration) *Index {
	idx := &Index{cache: newLookupCache(cacheSize, ttl)}
	idx.snap.Store(snap)
	return idx
}

// Swap：替换快照（热加载）
func (i *Index) Swap(snap *Snapshot) {
	i.snap.Store(snap)
	i.cache.purge()
	logger.L().Info("borough_snapshot_swapped", "count", len(snap.Boroughs))
}

func (i *Index) Snapshot() *Snapshot { return i.snap.Load() }

// 文档注释：按坐标查询所在 borough
// 返回：命中的 borough 与 true；不在任何 borough 内时返回 false。
// 约束：geohash 格子可能跨越边界，缓存只给出候选，结果始终以多边形判定为准；未命中任何 borough 不入缓存。
func (i *Index) Lookup(lng, lat float64) (Borough, bool) {
	snap := i.snap.Load()
	if snap == nil {
		return Borough{}, false
	}
	pt := orb.Point{lng, lat}
	key := geohash(lat, lng, 7)
	if n, ok := i.cache.get(key); ok && n >= 0 && n < len(snap.Boroughs) {
		b := snap.Boroughs[n]
		if b.Bounds.Contains(lng, lat) && planar.MultiPolygonContains(b.Shape, pt) {
			metrics.BoroughCacheHitsTotal.Inc()
			return b, true
		}
	}
	metrics.BoroughCacheMissesTotal.Inc()
	for n, b := range snap.Boroughs {
		if !b.Bounds.Contains(lng, lat) {
			continue
		}
		if planar.MultiPolygonContains(b.Shape, pt) {
			i.cache.set(key, n)
			return b, true
		}
	}
	return Borough{}, false
}

// ByName：按名称取 borough（同名多要素取第一个）
func (i *Index) ByName(name string) (Borough, bool) {
	snap := i.snap.Load()
	if snap == nil {
		return Borough{}, false
	}
	for _, b := range snap.Boroughs {
		if b.Name == name {
			return b, true
		}
	}
	return Borough{}, false
}

// 文档注释：名称 → 包围盒映射
// 约束：同名多要素时取后出现者，与前端 reduce 覆盖语义一致。
func (i *Index) BoundsByName() map[string]Bounds {
	out := map[string]Bounds{}
	snap := i.snap.Load()
	if snap == nil {
		return out
	}
	for _, b := range snap.Boroughs {
		out[b.Name] = b.Bounds
	}
	return out
}

// Names：去重并排序的 borough 名称
func (i *Index) Names() []string {
	m := i.BoundsByName()
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Collection：带 fillColor 属性的 GeoJSON
func (i *Index) Collection() *geojson.FeatureCollection {
	snap := i.snap.Load()
	if snap == nil {
		return geojson.NewFeatureCollection()
	}
	return snap.Collection
}
