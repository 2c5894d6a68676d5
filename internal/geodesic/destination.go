// 包 geodesic：球面正解（起点 + 距离 + 方位角 → 终点），供扇区生成与道路查询共用
package geodesic

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadius：球面近似半径（米），与前端地图引擎及 orb/geo 保持一致
const EarthRadius = orb.EarthRadius

// ErrInvalidCoordinate：坐标含 NaN/Inf 或超出经纬度范围
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point：经纬度坐标（十进制度）
// 约束：JSON 形式为 [lon, lat] 二元数组，直接作为多边形顶点输入渲染层
type Point struct {
	Lon float64
	Lat float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var v [2]float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p.Lon, p.Lat = v[0], v[1]
	return nil
}

// Validate：校验坐标有限且落在经纬度范围内
func Validate(p Point) error {
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) {
		return fmt.Errorf("%w: non-finite (%v, %v)", ErrInvalidCoordinate, p.Lon, p.Lat)
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: out of range (%v, %v)", ErrInvalidCoordinate, p.Lon, p.Lat)
	}
	return nil
}

// 文档注释：球面正解
// 参数：lon/lat 为起点（度），distance 为大圆距离（米），bearing 为自正北顺时针方位角（度，任意实数）。
// 返回：终点经纬度（度）。
// 约束：纯函数，无错误返回；仅在极点处退化。
func Destination(lon, lat, distance, bearing float64) (float64, float64) {
	p := geo.PointAtBearingAndDistance(orb.Point{lon, lat}, bearing, distance)
	return p.Lon(), p.Lat()
}

// DestinationPoint：Destination 的 Point 版本
func DestinationPoint(from Point, distance, bearing float64) Point {
	lon, lat := Destination(from.Lon, from.Lat, distance, bearing)
	return Point{Lon: lon, Lat: lat}
}

// 球面距离（Haversine），返回米
func Distance(a, b Point) float64 {
	return geo.DistanceHaversine(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
}
