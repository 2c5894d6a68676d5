package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	"sentinel-api/internal/geodesic"
	"sentinel-api/internal/geoip"
	"sentinel-api/internal/logger"
	"sentinel-api/internal/metrics"
	"sentinel-api/internal/prediction"
	"sentinel-api/internal/sector"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultRadius  = 1000.0
	defaultSectors = 8
	maxSectors     = 360
	maxPoints      = 1000
)

// sectorRequest：POST /sectors 请求体；GET 形式由查询参数映射而来
type sectorRequest struct {
	Center struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"center"`
	Radius          *float64           `json:"radius"`
	Sectors         *int               `json:"sectors"`
	PointsPerSector int                `json:"pointsPerSector"`
	Seed            *int64             `json:"seed"`
	CrimeType       string             `json:"crimeType"`
	Probabilities   []float64          `json:"probabilities"`
	Prediction      *prediction.Result `json:"prediction"`
	Format          string             `json:"format"`
}

// 文档注释：扇区接口响应
// 约束：Source 取值 supplied | prediction | random；Fallback 表示预测服务失败后退回占位概率。
type sectorResponse struct {
	Source           string          `json:"source"`
	Fallback         bool            `json:"fallback,omitempty"`
	Borough          string          `json:"borough,omitempty"`
	ApprehensionTime *float64        `json:"predictedApprehensionTime,omitempty"`
	Sectors          []sector.Sector `json:"sectors"`
}

func (s *server) handleSectorsGet(w http.ResponseWriter, r *http.Request) {
	var req sectorRequest
	lat, err := queryFloat(r, "lat", nil)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	lng, err := queryFloat(r, "lng", nil)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	radius, err := queryFloat(r, "radius", ptr(defaultRadius))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	n, err := queryInt(r, "sectors", defaultSectors)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	pps, err := queryInt(r, "points", 0)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	seed, err := querySeed(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	req.Center.Lat, req.Center.Lng = &lat, &lng
	req.Radius, req.Sectors, req.PointsPerSector, req.Seed = &radius, &n, pps, seed
	req.CrimeType = r.URL.Query().Get("crimeType")
	req.Format = r.URL.Query().Get("format")
	s.serveSectors(w, r, req)
}

func (s *server) handleSectorsPost(w http.ResponseWriter, r *http.Request) {
	var req sectorRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		s.badRequest(w, fmt.Errorf("%w: body: %v", errBadParam, err))
		return
	}
	if f := r.URL.Query().Get("format"); f != "" {
		req.Format = f
	}
	s.serveSectors(w, r, req)
}

func (s *server) badRequest(w http.ResponseWriter, err error) {
	metrics.SectorInvalidTotal.Inc()
	logger.L().Debug("sectors_bad_request", "err", err)
	writeError(w, http.StatusBadRequest, err.Error())
}

// 文档注释：扇区生成主流程
// 背景：概率优先级为 请求体 probabilities > 请求体 prediction > 在线预测服务 > 占位随机；在线预测失败时降级为占位概率。
// 约束：仅确定性请求（无在线预测且给定 seed 或概率覆盖全部扇区）读写 Redis 缓存；缓存故障不影响计算。
func (s *server) serveSectors(w http.ResponseWriter, r *http.Request, req sectorRequest) {
	if req.Center.Lat == nil || req.Center.Lng == nil {
		s.badRequest(w, fmt.Errorf("%w: center.lat and center.lng are required", errBadParam))
		return
	}
	p := sector.Params{
		Center:          geodesic.Point{Lon: *req.Center.Lng, Lat: *req.Center.Lat},
		Radius:          defaultRadius,
		Sectors:         defaultSectors,
		PointsPerSector: req.PointsPerSector,
		Probabilities:   req.Probabilities,
	}
	if req.Radius != nil {
		p.Radius = *req.Radius
	}
	if req.Sectors != nil {
		p.Sectors = *req.Sectors
	}
	if p.Sectors > maxSectors || p.PointsPerSector > maxPoints {
		s.badRequest(w, fmt.Errorf("%w: at most %d sectors and %d points per sector", sector.ErrInvalidInput, maxSectors, maxPoints))
		return
	}

	ctx, span := otel.Tracer("sentinel-api/api").Start(r.Context(), "sectors.serve")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("lat", p.Center.Lat),
		attribute.Float64("lng", p.Center.Lon),
		attribute.Float64("radius", p.Radius),
		attribute.Int("sectors", p.Sectors),
	)

	res := sectorResponse{Source: "random"}
	switch {
	case len(req.Probabilities) > 0:
		res.Source = "supplied"
	case req.Prediction != nil:
		res.Source = "prediction"
		p.Probabilities = req.Prediction.Probabilities()
		res.ApprehensionTime = ptr(req.Prediction.ApprehensionTime)
	}
	live := len(p.Probabilities) == 0 && s.Predictor != nil && s.Predictor.Enabled()
	cacheable := !live && (req.Seed != nil || len(p.Probabilities) >= p.Sectors)

	var key string
	if cacheable {
		key = sectorCacheKey(p, req.Seed, res.Source, res.ApprehensionTime)
		if cached, ok := s.cacheGet(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			metrics.SectorRequestsTotal.WithLabelValues(cached.Source).Inc()
			s.countRequest(ctx, r)
			s.renderSectors(w, req.Format, cached)
			return
		}
	}

	if live {
		pred, err := s.Predictor.Predict(ctx, prediction.Request{Longitude: p.Center.Lon, Latitude: p.Center.Lat, CrimeType: req.CrimeType})
		if err != nil {
			logger.L().Warn("sectors_predict_fallback", "err", err)
			res.Fallback = true
		} else {
			res.Source = "prediction"
			p.Probabilities = pred.Probabilities()
			res.ApprehensionTime = ptr(pred.ApprehensionTime)
		}
	}

	var src sector.ProbabilitySource = s.Rand
	if req.Seed != nil {
		src = sector.NewRandomSource(*req.Seed)
	}
	t0 := time.Now()
	sectors, err := sector.Generate(p, src)
	metrics.SectorDurationMs.Observe(float64(time.Since(t0).Microseconds()) / 1000)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, sector.ErrInvalidInput) {
			s.badRequest(w, err)
			return
		}
		logger.L().Error("sectors_generate_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	res.Sectors = sectors
	if s.Boroughs != nil {
		if b, ok := s.Boroughs.Lookup(p.Center.Lon, p.Center.Lat); ok {
			res.Borough = b.Name
		}
	}
	metrics.SectorRequestsTotal.WithLabelValues(res.Source).Inc()
	logger.L().Debug("sectors_generated", "count", len(sectors), "source", res.Source, "fallback", res.Fallback)
	if cacheable {
		s.cacheSet(ctx, key, res)
	}
	s.countRequest(ctx, r)
	s.renderSectors(w, req.Format, res)
}

func (s *server) renderSectors(w http.ResponseWriter, format string, res sectorResponse) {
	if format == "geojson" {
		// FeatureCollection 不携带扩展成员，来源信息放在响应头
		w.Header().Set("x-sector-source", res.Source)
		if res.Borough != "" {
			w.Header().Set("x-borough", res.Borough)
		}
		writeJSON(w, http.StatusOK, sector.FeatureCollection(res.Sectors))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// sectorCacheKey：量化后的输入做 FNV64a 摘要
// 约束：概率来源与预计抓捕时间同样进入摘要，来源不同的同值请求不共享缓存。
func sectorCacheKey(p sector.Params, seed *int64, source string, apprehension *float64) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%.6f|%.6f|%.3f|%d|%d|", source, p.Center.Lon, p.Center.Lat, p.Radius, p.Sectors, p.PointsPerSector)
	if apprehension != nil {
		fmt.Fprintf(h, "t=%g", *apprehension)
	}
	h.Write([]byte{'|'})
	if seed != nil {
		h.Write([]byte(strconv.FormatInt(*seed, 10)))
	}
	h.Write([]byte{'|'})
	for _, v := range p.Probabilities {
		fmt.Fprintf(h, "%g,", v)
	}
	return "sectors:" + strconv.FormatUint(h.Sum64(), 16)
}

func (s *server) cacheGet(ctx context.Context, key string) (sectorResponse, bool) {
	var res sectorResponse
	if s.Cache == nil {
		return res, false
	}
	b, err := s.Cache.Get(ctx, key)
	if err != nil {
		metrics.SectorCacheMissesTotal.Inc()
		return res, false
	}
	if err := json.Unmarshal(b, &res); err != nil {
		logger.L().Warn("sectors_cache_decode_error", "key", key, "err", err)
		metrics.SectorCacheMissesTotal.Inc()
		return res, false
	}
	metrics.SectorCacheHitsTotal.Inc()
	return res, true
}

func (s *server) cacheSet(ctx context.Context, key string, res sectorResponse) {
	if s.Cache == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, key, b, s.CacheTTL); err != nil {
		logger.L().Warn("sectors_cache_set_error", "err", err)
	}
}

// countRequest：成功请求计入统计，访客去重依赖 Redis 布隆过滤器
func (s *server) countRequest(ctx context.Context, r *http.Request) {
	if s.Stats == nil {
		return
	}
	newVisitor := false
	if s.Redis != nil {
		ip := geoip.ClientIP(r)
		key := "bloom:visitors:" + time.Now().UTC().Format("20060102")
		first, err := bloomCheckAndSet(ctx, s.Redis, key, bloomPositions([]byte(ip), 1<<20, 4), 48*time.Hour)
		if err != nil {
			logger.L().Warn("visitor_bloom_error", "err", err)
		}
		newVisitor = first && err == nil
	}
	s.Stats.IncrStats(ctx, newVisitor)
}
