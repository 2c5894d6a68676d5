// 包 geoip：基于 GeoLite2/GeoIP2 City 库把访问者 IP 定位到经纬度
package geoip

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"sentinel-api/internal/logger"

	"github.com/oschwald/geoip2-golang"
)

var (
	ErrBadIP      = errors.New("bad ip")
	ErrNoLocation = errors.New("ip has no location")
)

// Location：定位结果
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// Locator：IP → 坐标
type Locator interface {
	Locate(ip string) (Location, error)
}

type Reader struct {
	db *geoip2.Reader
}

// Open：打开 mmdb 文件
func Open(path string) (*Reader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.L().Info("geoip_open_ok", "path", path, "type", db.Metadata().DatabaseType)
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// 文档注释：查询 IP 所在城市坐标
// 异常：非法 IP 返回 ErrBadIP；库中无坐标（经纬度均为 0）返回 ErrNoLocation。
func (r *Reader) Locate(ip string) (Location, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Location{}, ErrBadIP
	}
	rec, err := r.db.City(parsed)
	if err != nil {
		return Location{}, err
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return Location{}, ErrNoLocation
	}
	return Location{
		Lat:     rec.Location.Latitude,
		Lng:     rec.Location.Longitude,
		City:    rec.City.Names["en"],
		Country: rec.Country.IsoCode,
	}, nil
}

// 文档注释：解析访问者 IP
// 约束：优先常见反向代理头，其次 Forwarded 的 for=，最后回退 RemoteAddr（去端口）。
func ClientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip"} {
		if x := h.Get(k); x != "" {
			return strings.TrimSpace(x)
		}
	}
	if x := h.Get("forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := x[i+4:]
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			y = strings.Trim(y, "\" ")
			y = strings.TrimSuffix(strings.TrimPrefix(y, "["), "]")
			return y
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
