package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soochol/hookboard/internal/hookboard"
)

// listExecutions returns all executions, most recent first.
// GET /api/executions?limit=20&offset=0&status=failed
func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	status := r.URL.Query().Get("status")

	execs, total, err := s.execs.ListAll(r.Context(), limit, offset, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": nonNil(execs),
		"total":      total,
	})
}

// GET /api/executions/{id}
func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.execs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

// listWorkflowExecutions returns one workflow's executions, most recent first.
// GET /api/workflows/{id}/executions?limit=20&offset=0
func (s *Server) listWorkflowExecutions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.workflows.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	limit, offset := parsePagination(r)

	execs, total, err := s.execs.ListByWorkflow(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": nonNil(execs),
		"total":      total,
	})
}

func nonNil(execs []*hookboard.Execution) []*hookboard.Execution {
	if execs == nil {
		return []*hookboard.Execution{}
	}
	return execs
}
