// 包 api：集中注册 HTTP API 路由，主入口只负责装配依赖
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sentinel-api/internal/borough"
	"sentinel-api/internal/crime"
	"sentinel-api/internal/geoip"
	"sentinel-api/internal/logger"
	"sentinel-api/internal/middleware"
	"sentinel-api/internal/pings"
	"sentinel-api/internal/prediction"
	"sentinel-api/internal/sector"
	"sentinel-api/internal/store"

	geojson "github.com/paulmach/go.geojson"
	"github.com/redis/go-redis/v9"
)

// Predictor：预测服务（*prediction.Client）
type Predictor interface {
	Enabled() bool
	Predict(ctx context.Context, req prediction.Request) (*prediction.Result, error)
}

// RoadsFetcher：道路查询（*roads.Client）
type RoadsFetcher interface {
	Roads(ctx context.Context, lat, lng float64, radius int, src sector.ProbabilitySource) (*geojson.FeatureCollection, error)
}

// StatsStore：请求统计（*store.Store）
type StatsStore interface {
	IncrStats(ctx context.Context, newVisitor bool)
	GetTotals(ctx context.Context) (*store.Totals, error)
}

// CrimeQuerier：数据库中的犯罪点（*store.Store）
type CrimeQuerier interface {
	CrimesInBounds(ctx context.Context, b borough.Bounds, crimeType string, limit int) ([]crime.Record, error)
}

// PingHistory：ping 历史（*store.Store）
type PingHistory interface {
	RecentPings(ctx context.Context, limit int) ([]pings.Ping, error)
}

// SectorCache：扇区结果缓存；未注入时由 Redis 提供
type SectorCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type redisSectorCache struct{ rc *redis.Client }

func (c redisSectorCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rc.Get(ctx, key).Bytes()
}

func (c redisSectorCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rc.Set(ctx, key, val, ttl).Err()
}

// 文档注释：路由依赖
// 约束：除 Boroughs、Pings 外均可为 nil，对应接口返回 503 或降级；Rand 为未指定 seed 时的共享占位概率来源。
type Deps struct {
	Boroughs     *borough.Index
	BoroughsPath string
	Crimes       *crime.Dataset
	CrimeDB      CrimeQuerier
	Pings        *pings.Simulator
	Hub          *pings.Hub
	History      PingHistory
	Predictor    Predictor
	Roads        RoadsFetcher
	Stats        StatsStore
	GeoIP        geoip.Locator
	Redis        *redis.Client
	Cache        SectorCache
	CacheTTL     time.Duration
	Rand         sector.ProbabilitySource
	AdminToken   string
	AdminAllow   *middleware.Allowlist
}

type server struct {
	Deps
}

// 构建并返回 API 路由：独立 ServeMux，由主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	if d.Rand == nil {
		d.Rand = sector.NewRandomSource(time.Now().UnixNano())
	}
	if d.Cache == nil && d.Redis != nil {
		d.Cache = redisSectorCache{rc: d.Redis}
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = time.Hour
	}
	if d.AdminAllow == nil {
		d.AdminAllow = middleware.ParseAllowlist("")
	}
	s := &server{Deps: d}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sectors", s.handleSectorsGet)
	mux.HandleFunc("POST /sectors", s.handleSectorsPost)
	mux.HandleFunc("GET /pings", s.handlePingsList)
	mux.HandleFunc("POST /pings", s.handlePingsCreate)
	mux.HandleFunc("GET /pings/stream", s.handlePingsStream)
	mux.HandleFunc("GET /boroughs", s.handleBoroughs)
	mux.HandleFunc("GET /boroughs/bounds", s.handleBoroughBounds)
	mux.HandleFunc("GET /boroughs/lookup", s.handleBoroughLookup)
	mux.HandleFunc("GET /crimes", s.handleCrimes)
	mux.HandleFunc("GET /roads", s.handleRoads)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("POST /reload-boroughs", s.AdminAllow.Wrap(http.HandlerFunc(s.handleReloadBoroughs)))
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Warn("http_encode_error", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// errBadParam：查询参数解析失败
var errBadParam = errors.New("bad parameter")

func queryFloat(r *http.Request, key string, def *float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		if def == nil {
			return 0, fmt.Errorf("%w: %s is required", errBadParam, key)
		}
		return *def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadParam, key, err)
	}
	return f, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadParam, key, err)
	}
	return n, nil
}

// queryCount：非负整数参数；超出 [lo, hi] 时报错
func queryCount(r *http.Request, key string, def, lo, hi int) (int, error) {
	n, err := queryInt(r, key, def)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s must be in [%d, %d]", errBadParam, key, lo, hi)
	}
	return n, nil
}

// querySeed：可选 seed；缺省返回 nil
func querySeed(r *http.Request) (*int64, error) {
	v := r.URL.Query().Get("seed")
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: seed: %v", errBadParam, err)
	}
	return &n, nil
}

func ptr[T any](v T) *T { return &v }
