package api

import (
	"crypto/subtle"
	"math"
	"math/rand"
	"net/http"
	"time"

	"sentinel-api/internal/borough"
	"sentinel-api/internal/crime"
	"sentinel-api/internal/logger"
)

func (s *server) handleBoroughs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Boroughs.Collection())
}

// GET /boroughs/bounds：名称 → 包围盒
func (s *server) handleBoroughBounds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Boroughs.BoundsByName())
}

type lookupResponse struct {
	Name   string         `json:"name"`
	Code   string         `json:"code,omitempty"`
	Color  string         `json:"color,omitempty"`
	Bounds borough.Bounds `json:"bounds"`
}

func (s *server) handleBoroughLookup(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat", nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lng, err := queryFloat(r, "lng", nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, ok := s.Boroughs.Lookup(lng, lat)
	if !ok {
		writeError(w, http.StatusNotFound, "not inside any borough")
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Name: b.Name, Code: b.Code, Color: b.Color, Bounds: b.Bounds})
}

type crimesResponse struct {
	Borough string         `json:"borough,omitempty"`
	Bounds  borough.Bounds `json:"bounds"`
	Count   int            `json:"count"`
	Points  [][2]float64   `json:"points"`
}

// 文档注释：GET /crimes?borough=&crimeType=&limit=
// 背景：borough 为空时取整个伦敦范围；优先内存数据集，数据集为空且配置了数据库时查库。
// 约束：按 borough 包围盒（含边界）过滤，返回 [lng, lat] 点列；limit 为 0 时不限条数，负数返回 400。
func (s *server) handleCrimes(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("borough")
	crimeType := r.URL.Query().Get("crimeType")
	limit, err := queryCount(r, "limit", 0, 0, math.MaxInt32)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bounds := borough.London
	if name != "" {
		b, ok := s.Boroughs.BoundsByName()[name]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown borough")
			return
		}
		bounds = b
	}

	var recs []crime.Record
	switch {
	case s.Crimes != nil && s.Crimes.Len() > 0:
		recs = s.Crimes.InBounds(bounds, crimeType)
		if limit > 0 && len(recs) > limit {
			recs = recs[:limit]
		}
	case s.CrimeDB != nil:
		recs, err = s.CrimeDB.CrimesInBounds(r.Context(), bounds, crimeType, limit)
		if err != nil {
			logger.L().Error("crimes_query_error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	pts := make([][2]float64, len(recs))
	for i, rec := range recs {
		pts[i] = rec.Coordinates()
	}
	writeJSON(w, http.StatusOK, crimesResponse{Borough: name, Bounds: bounds, Count: len(pts), Points: pts})
}

// 文档注释：POST /reload-boroughs（x-admin-token）
// 约束：重新读取 BoroughsPath 并整体替换快照；解析失败时保留旧快照。
func (s *server) handleReloadBoroughs(w http.ResponseWriter, r *http.Request) {
	t := r.Header.Get("x-admin-token")
	if s.AdminToken == "" || subtle.ConstantTimeCompare([]byte(t), []byte(s.AdminToken)) != 1 {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	snap, err := borough.LoadSnapshot(s.BoroughsPath, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		logger.L().Error("borough_reload_error", "path", s.BoroughsPath, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Boroughs.Swap(snap)
	w.WriteHeader(http.StatusNoContent)
}
