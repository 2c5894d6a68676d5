package api

import (
	"net/http"

	"sentinel-api/internal/logger"
)

// GET /stats：请求与访客统计，附内存状态
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"persisted":   s.Stats != nil,
		"activePings": len(s.Pings.Active()),
		"boroughs":    len(s.Boroughs.Names()),
	}
	if s.Crimes != nil {
		out["crimes"] = s.Crimes.Len()
	}
	if s.Stats != nil {
		t, err := s.Stats.GetTotals(r.Context())
		if err != nil {
			logger.L().Error("stats_read_error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out["totals"] = t
	}
	writeJSON(w, http.StatusOK, out)
}
