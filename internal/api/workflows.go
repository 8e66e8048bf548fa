package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soochol/hookboard/internal/hookboard"
	"github.com/soochol/hookboard/internal/webhook"
)

func (s *Server) view(wf *hookboard.Workflow) hookboard.WorkflowSafe {
	return wf.Safe(s.orchestrator.Board().Get(wf.ID))
}

func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf hookboard.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	created, err := s.workflows.Create(r.Context(), &wf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(created))
}

// listWorkflows returns every workflow with its current display status.
// GET /api/workflows
func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	list, err := s.workflows.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	result := make([]hookboard.WorkflowSafe, 0, len(list))
	for _, wf := range list {
		result = append(result, s.view(wf))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(wf))
}

func (s *Server) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf hookboard.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	wf.ID = chi.URLParam(r, "id")
	updated, err := s.workflows.Update(r.Context(), &wf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(updated))
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflows.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// triggerWorkflow starts a trigger and answers with the running execution.
// The body, if any, is the JSON object of parameters.
// POST /api/workflows/{id}/trigger
func (s *Server) triggerWorkflow(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "params must be a JSON object")
		return
	}
	exec, err := s.orchestrator.TriggerWorkflow(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, exec)
}

// testConnection probes the workflow target without recording an execution.
// A transport failure answers 502; a workflow without a target answers 400.
// POST /api/workflows/{id}/test
func (s *Server) testConnection(w http.ResponseWriter, r *http.Request) {
	ok, err := s.orchestrator.TestConnection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var te *webhook.TriggerError
		if errors.As(err, &te) && te.Kind != webhook.KindConfigurationMissing {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"reachable": false,
				"error":     te.Error(),
				"kind":      te.Kind,
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reachable": ok})
}
