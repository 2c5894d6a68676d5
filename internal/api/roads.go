package api

import (
	"net/http"

	"sentinel-api/internal/geodesic"
	"sentinel-api/internal/logger"
	"sentinel-api/internal/sector"
)

const maxRoadsRadius = 5000

// GET /roads?lat&lng&radius=1000&seed：半径内道路，附占位概率
func (s *server) handleRoads(w http.ResponseWriter, r *http.Request) {
	if s.Roads == nil {
		writeError(w, http.StatusServiceUnavailable, "roads disabled")
		return
	}
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
	if err := geodesic.Validate(geodesic.Point{Lon: lng, Lat: lat}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	radius, err := queryInt(r, "radius", 1000)
	if err != nil || radius <= 0 || radius > maxRoadsRadius {
		writeError(w, http.StatusBadRequest, "radius must be in 1..5000")
		return
	}
	seed, err := querySeed(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var src sector.ProbabilitySource = s.Rand
	if seed != nil {
		src = sector.NewRandomSource(*seed)
	}
	fc, err := s.Roads.Roads(r.Context(), lat, lng, radius, src)
	if err != nil {
		logger.L().Warn("roads_upstream_error", "err", err)
		writeError(w, http.StatusBadGateway, "roads upstream unavailable")
		return
	}
	writeJSON(w, http.StatusOK, fc)
}
