package borough

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
)

// LondonCodePrefix：伦敦 borough 的 LAD 编码前缀
const LondonCodePrefix = "E09"

var ErrNoBoroughs = errors.New("no boroughs in geojson")

// 文档注释：从文件加载 borough 快照
// 约束：文件为 LAD GeoJSON FeatureCollection（lad.json）；rnd 用于分配填充色，传入固定种子可复现。
func LoadSnapshot(path string, rnd *rand.Rand) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(b, rnd)
}

// 文档注释：解析 LAD GeoJSON 为快照
// 约束：
// - 有 LAD13CD 的要素仅保留 E09 前缀；无编码的要素（精简静态数据）全部保留；
// - 名称取 LAD13NM，缺失时回退 name；
// - 同名 borough 共用一种颜色，颜色按首次出现顺序分配。
func ParseSnapshot(data []byte, rnd *rand.Rand) (*Snapshot, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boroughs: %w", err)
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	colors := map[string]string{}
	out := geojson.NewFeatureCollection()
	var boroughs []Borough
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		code := propString(f, "LAD13CD")
		if code != "" && !strings.HasPrefix(code, LondonCodePrefix) {
			continue
		}
		name := propString(f, "LAD13NM")
		if name == "" {
			name = propString(f, "name")
		}
		shape := toMultiPolygon(f.Geometry)
		if len(shape) == 0 {
			continue
		}
		c, ok := colors[name]
		if !ok {
			c = pastelColor(rnd)
			colors[name] = c
		}
		f.SetProperty("fillColor", c)
		out.AddFeature(f)
		boroughs = append(boroughs, Borough{
			Code:   code,
			Name:   name,
			Color:  c,
			Shape:  shape,
			Bounds: outerBounds(shape),
		})
	}
	if len(boroughs) == 0 {
		return nil, ErrNoBoroughs
	}
	return &Snapshot{Boroughs: boroughs, Collection: out, BuiltAt: time.Now()}, nil
}

func propString(f *geojson.Feature, key string) string {
	if f.Properties == nil {
		return ""
	}
	s, err := f.PropertyString(key)
	if err != nil {
		return ""
	}
	return s
}

// 填充色：各通道取 127..253，返回 rgb(r,g,b)
func pastelColor(rnd *rand.Rand) string {
	r := int(math.Floor(rnd.Float64()*127 + 127))
	g := int(math.Floor(rnd.Float64()*127 + 127))
	b := int(math.Floor(rnd.Float64()*127 + 127))
	return fmt.Sprintf("rgb(%d,%d,%d)", r, g, b)
}

func toMultiPolygon(g *geojson.Geometry) orb.MultiPolygon {
	switch {
	case g.IsPolygon():
		if p := toPolygon(g.Polygon); len(p) > 0 {
			return orb.MultiPolygon{p}
		}
	case g.IsMultiPolygon():
		var mp orb.MultiPolygon
		for _, part := range g.MultiPolygon {
			if p := toPolygon(part); len(p) > 0 {
				mp = append(mp, p)
			}
		}
		return mp
	}
	return nil
}

func toPolygon(rings [][][]float64) orb.Polygon {
	var poly orb.Polygon
	for _, ring := range rings {
		r := make(orb.Ring, 0, len(ring))
		for _, c := range ring {
			if len(c) < 2 {
				continue
			}
			r = append(r, orb.Point{c[0], c[1]})
		}
		if len(r) > 0 {
			poly = append(poly, r)
		}
	}
	return poly
}

func outerBounds(mp orb.MultiPolygon) Bounds {
	b := Bounds{North: -90, South: 90, West: 180, East: -180}
	for _, p := range mp {
		for _, pt := range p[0] {
			b.West = math.Min(b.West, pt.Lon())
			b.East = math.Max(b.East, pt.Lon())
			b.South = math.Min(b.South, pt.Lat())
			b.North = math.Max(b.North, pt.Lat())
		}
	}
	return b
}
