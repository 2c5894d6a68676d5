// 包 sector：围绕中心点按等角切分圆形区域，生成带归一化概率权重的扇区多边形
package sector

import (
	"errors"
	"fmt"
	"math"

	"sentinel-api/internal/geodesic"
)

// DefaultPointsPerSector：每个扇区弧线的默认采样段数
const DefaultPointsPerSector = 10

// ErrInvalidInput：中心点/半径/采样数/概率非法
var ErrInvalidInput = errors.New("invalid sector input")

// 文档注释：扇区生成参数
// 约束：Probabilities 按扇区下标对应；长度不足的部分由 ProbabilitySource 补齐；PointsPerSector 为 0 时取默认值。
type Params struct {
	Center          geodesic.Point
	Radius          float64
	Sectors         int
	PointsPerSector int
	Probabilities   []float64
}

// 文档注释：单个扇区
// 约束：Polygon 以中心点开始并以中心点闭合，顶点数为 PointsPerSector+3；Probability 为百分比。
type Sector struct {
	Polygon      []geodesic.Point `json:"polygon"`
	Index        int              `json:"sectorIndex"`
	StartBearing float64          `json:"startBearing"`
	EndBearing   float64          `json:"endBearing"`
	Probability  float64          `json:"probability"`
	FillAlpha    uint8            `json:"fillAlpha"`
}

// 文档注释：生成扇区集合
// 参数：p 为几何与概率输入；src 为占位概率来源，仅在 p.Probabilities 未覆盖的扇区上调用。
// 返回：按下标升序的扇区；Sectors<=0 时返回空集合。
// 异常：中心点非有限或越界、半径为负/非有限、采样数为负、概率为负/非有限时返回 ErrInvalidInput。
func Generate(p Params, src ProbabilitySource) ([]Sector, error) {
	if err := geodesic.Validate(p.Center); err != nil {
		return nil, fmt.Errorf("%w: center: %w", ErrInvalidInput, err)
	}
	if math.IsNaN(p.Radius) || math.IsInf(p.Radius, 0) || p.Radius < 0 {
		return nil, fmt.Errorf("%w: radius %v", ErrInvalidInput, p.Radius)
	}
	pps := p.PointsPerSector
	if pps < 0 {
		return nil, fmt.Errorf("%w: points per sector %d", ErrInvalidInput, pps)
	}
	if pps == 0 {
		pps = DefaultPointsPerSector
	}
	if p.Sectors <= 0 {
		return []Sector{}, nil
	}
	if src == nil && len(p.Probabilities) < p.Sectors {
		return nil, fmt.Errorf("%w: %d probabilities for %d sectors and no source", ErrInvalidInput, len(p.Probabilities), p.Sectors)
	}

	raw := make([]float64, p.Sectors)
	for i := range raw {
		if i < len(p.Probabilities) {
			raw[i] = p.Probabilities[i]
		} else {
			raw[i] = src.Probability(i)
		}
		if math.IsNaN(raw[i]) || math.IsInf(raw[i], 0) || raw[i] < 0 {
			return nil, fmt.Errorf("%w: probability[%d]=%v", ErrInvalidInput, i, raw[i])
		}
	}
	norm := Normalize(raw)

	span := 360.0 / float64(p.Sectors)
	out := make([]Sector, p.Sectors)
	for i := 0; i < p.Sectors; i++ {
		start := float64(i) * span
		end := float64(i+1) * span
		ring := make([]geodesic.Point, 0, pps+3)
		ring = append(ring, p.Center)
		for j := 0; j <= pps; j++ {
			bearing := start + float64(j)/float64(pps)*(end-start)
			ring = append(ring, geodesic.DestinationPoint(p.Center, p.Radius, bearing))
		}
		ring = append(ring, p.Center)
		out[i] = Sector{
			Polygon:      ring,
			Index:        i,
			StartBearing: start,
			EndBearing:   end,
			Probability:  norm[i],
			FillAlpha:    FillAlpha(norm[i]),
		}
	}
	return out, nil
}

// Normalize：按总和缩放为百分比；总和不为正时全部置 0
func Normalize(raw []float64) []float64 {
	out := make([]float64, len(raw))
	sum := 0.0
	for _, v := range raw {
		sum += v
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return out
	}
	for i, v := range raw {
		out[i] = v / sum * 100
	}
	return out
}

// FillAlpha：百分比映射到 0..255 透明度通道
func FillAlpha(probability float64) uint8 {
	a := math.Round(probability / 100 * 255)
	if math.IsNaN(a) || a < 0 {
		return 0
	}
	if a > 255 {
		return 255
	}
	return uint8(a)
}
