package sector

import (
	"sentinel-api/internal/geodesic"

	geojson "github.com/paulmach/go.geojson"
)

// FillRGB：扇区填充基色（暗红），透明度由概率决定
var FillRGB = [3]int{128, 0, 32}

// 文档注释：扇区集合导出为 GeoJSON FeatureCollection
// 约束：每个扇区一个 Polygon 要素；属性包含 sectorIndex/probability/fillAlpha/fillColor，fillColor 为 [r,g,b,a]。
func FeatureCollection(sectors []Sector) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range sectors {
		f := geojson.NewPolygonFeature([][][]float64{ringCoords(s.Polygon)})
		f.SetProperty("sectorIndex", s.Index)
		f.SetProperty("probability", s.Probability)
		f.SetProperty("startBearing", s.StartBearing)
		f.SetProperty("endBearing", s.EndBearing)
		f.SetProperty("fillAlpha", int(s.FillAlpha))
		f.SetProperty("fillColor", []int{FillRGB[0], FillRGB[1], FillRGB[2], int(s.FillAlpha)})
		fc.AddFeature(f)
	}
	return fc
}

func ringCoords(ring []geodesic.Point) [][]float64 {
	out := make([][]float64, len(ring))
	for i, p := range ring {
		out[i] = []float64{p.Lon, p.Lat}
	}
	return out
}
