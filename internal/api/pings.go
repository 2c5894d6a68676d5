package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"sentinel-api/internal/geodesic"
	"sentinel-api/internal/geoip"
	"sentinel-api/internal/logger"
)

type pingRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

const maxRecentPings = 1000

// GET /pings：当前存活 ping；?recent=N（1..1000）时返回数据库中的最近 N 条
func (s *server) handlePingsList(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("recent") {
		if s.History == nil {
			writeError(w, http.StatusServiceUnavailable, "ping history disabled")
			return
		}
		n, err := queryCount(r, "recent", 100, 1, maxRecentPings)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list, err := s.History.RecentPings(r.Context(), n)
		if err != nil {
			logger.L().Error("ping_history_error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pings": list})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pings": s.Pings.Active()})
}

// 文档注释：POST /pings
// 背景：空请求体时在伦敦范围内随机落点；?locate=ip 时按访问者 IP 的 GeoIP 坐标落点；否则使用请求体坐标。
func (s *server) handlePingsCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Query().Get("locate") == "ip" {
		if s.GeoIP == nil {
			writeError(w, http.StatusServiceUnavailable, "geoip disabled")
			return
		}
		ip := geoip.ClientIP(r)
		loc, err := s.GeoIP.Locate(ip)
		if err != nil {
			logger.L().Debug("ping_locate_miss", "ip", ip, "err", err)
			writeError(w, http.StatusNotFound, "ip location unavailable")
			return
		}
		writeJSON(w, http.StatusCreated, s.Pings.Add(ctx, loc.Lat, loc.Lng, "geoip"))
		return
	}

	var req pingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("body: %v", err))
		return
	}
	if req.Lat == nil && req.Lng == nil {
		writeJSON(w, http.StatusCreated, s.Pings.AddRandom(ctx))
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng must be given together")
		return
	}
	if err := geodesic.Validate(geodesic.Point{Lon: *req.Lng, Lat: *req.Lat}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.Pings.Add(ctx, *req.Lat, *req.Lng, "manual"))
}

// GET /pings/stream：websocket 实时推送
func (s *server) handlePingsStream(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "stream disabled")
		return
	}
	s.Hub.ServeWS(w, r, s.Pings.Active())
}
