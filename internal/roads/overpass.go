// 包 roads：通过 Overpass API 查询点位附近道路并输出带概率的 GeoJSON 线要素
package roads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sentinel-api/internal/logger"
	"sentinel-api/internal/metrics"
	"sentinel-api/internal/sector"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultEndpoint：公共 Overpass 解释器地址
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

var ErrBadStatus = errors.New("overpass bad status")

type element struct {
	Type  string  `json:"type"`
	ID    int64   `json:"id"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Nodes []int64 `json:"nodes"`
}

type response struct {
	Elements []element `json:"elements"`
}

type Client struct {
	endpoint  string
	http      *http.Client
	tolerance float64
}

// 文档注释：构造 Overpass 客户端
// 参数：tolerance 为 Douglas-Peucker 简化阈值（度），0 表示不简化。
func NewClient(endpoint string, timeout time.Duration, tolerance float64) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: timeout}, tolerance: tolerance}
}

// Query：Overpass QL，查询半径内所有 highway 及其节点
func Query(lat, lng float64, radius int) string {
	return fmt.Sprintf("[out:json];way(around:%d,%f,%f)[\"highway\"];(._;>;);out body;", radius, lat, lng)
}

// 文档注释：查询道路并组装要素
// 约束：节点不足两个的 way 被丢弃；每条道路的概率来自 src（0..99），fillAlpha 由概率换算。
func (c *Client) Roads(ctx context.Context, lat, lng float64, radius int, src sector.ProbabilitySource) (*geojson.FeatureCollection, error) {
	ctx, span := otel.Tracer("sentinel-api/roads").Start(ctx, "roads.Roads")
	defer span.End()
	span.SetAttributes(attribute.Float64("lat", lat), attribute.Float64("lng", lng), attribute.Int("radius", radius))

	resp, err := c.fetch(ctx, Query(lat, lng, radius))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.OverpassFailTotal.Inc()
		return nil, err
	}
	fc := buildFeatures(resp.Elements, src, c.tolerance)
	span.SetAttributes(attribute.Int("features", len(fc.Features)))
	return fc, nil
}

func (c *Client) fetch(ctx context.Context, q string) (*response, error) {
	u := c.endpoint + "?data=" + url.QueryEscape(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	metrics.OverpassRequestsTotal.Inc()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.L().Error("overpass_http_error", "err", err)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.OverpassDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if resp.StatusCode != http.StatusOK {
		logger.L().Warn("overpass_bad_status", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.L().Error("overpass_decode_error", "err", err)
		return nil, fmt.Errorf("decode overpass: %w", err)
	}
	logger.L().Debug("overpass_resp", "elements", len(r.Elements), "duration_ms", time.Since(t0).Milliseconds())
	return &r, nil
}

// buildFeatures：way 节点引用解析为 LineString 要素
func buildFeatures(elements []element, src sector.ProbabilitySource, tolerance float64) *geojson.FeatureCollection {
	nodes := make(map[int64]orb.Point, len(elements))
	for _, el := range elements {
		if el.Type == "node" {
			nodes[el.ID] = orb.Point{el.Lon, el.Lat}
		}
	}
	var dp *simplify.DouglasPeuckerSimplifier
	if tolerance > 0 {
		dp = simplify.DouglasPeucker(tolerance)
	}
	fc := geojson.NewFeatureCollection()
	n := 0
	for _, el := range elements {
		if el.Type != "way" || len(el.Nodes) == 0 {
			continue
		}
		ls := make(orb.LineString, 0, len(el.Nodes))
		for _, id := range el.Nodes {
			if p, ok := nodes[id]; ok {
				ls = append(ls, p)
			}
		}
		if len(ls) < 2 {
			continue
		}
		if dp != nil {
			if s, ok := dp.Simplify(ls).(orb.LineString); ok && len(s) >= 2 {
				ls = s
			}
		}
		coords := make([][]float64, len(ls))
		for i, p := range ls {
			coords[i] = []float64{p.Lon(), p.Lat()}
		}
		f := geojson.NewLineStringFeature(coords)
		f.SetProperty("id", el.ID)
		if src != nil {
			p := src.Probability(n)
			f.SetProperty("probability", p)
			f.SetProperty("fillAlpha", int(sector.FillAlpha(p)))
		}
		fc.AddFeature(f)
		n++
	}
	return fc
}
