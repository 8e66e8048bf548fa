package api

import (
	"net/http"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getStats returns current concurrency limiter state.
// GET /api/stats
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}
	if s.limiter != nil {
		resp["concurrency"] = s.limiter.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/monitor
func (s *Server) listProbes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Probes())
}

// runMonitor probes every configured workflow now.
// POST /api/monitor/run
func (s *Server) runMonitor(w http.ResponseWriter, r *http.Request) {
	probes, err := s.monitor.RunOnce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if probes == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, probes)
}
