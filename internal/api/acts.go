package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/faultline/internal/model"
	"github.com/seantiz/faultline/internal/scenario"
)

// actsResponse is the JSON response for GET /v1/runs/{id}/acts.
type actsResponse struct {
	RunID   string            `json:"run_id"`
	Status  string            `json:"status"`
	Verdict model.Verdict     `json:"verdict"`
	Acts    []model.ActResult `json:"acts"`
}

// actVerdictResponse answers a single act query. Final is false while the
// run is still executing and the verdict may change.
type actVerdictResponse struct {
	RunID   string        `json:"run_id"`
	Act     string        `json:"act"`
	Verdict model.Verdict `json:"verdict"`
	Message string        `json:"message,omitempty"`
	Final   bool          `json:"final"`
}

func (s *Server) handleListActs(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	acts, err := s.store.GetActResults(r.Context(), run.ID)
	if err != nil {
		s.logger.Error("get act results", "run_id", run.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get act results")
		return
	}
	if acts == nil {
		acts = []model.ActResult{}
	}

	s.writeJSON(w, http.StatusOK, actsResponse{
		RunID:   run.ID,
		Status:  run.Status,
		Verdict: run.Verdict,
		Acts:    acts,
	})
}

func (s *Server) handleGetActVerdict(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "act")

	if !hasAct(run, name) {
		s.writeError(w, http.StatusNotFound, scenario.ErrUnknownAct.Error()+": "+name)
		return
	}

	resp := actVerdictResponse{
		RunID:   run.ID,
		Act:     name,
		Verdict: model.VerdictUndefined,
		Final:   model.IsTerminal(run.Status),
	}

	acts, err := s.store.GetActResults(r.Context(), run.ID)
	if err != nil {
		s.logger.Error("get act results", "run_id", run.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get act results")
		return
	}
	for _, a := range acts {
		if a.Name == name {
			resp.Verdict = a.Verdict
			resp.Message = a.Message
			break
		}
	}
	if resp.Final && len(acts) == 0 {
		// The scenario never ran, so no act completed.
		resp.Verdict = model.VerdictFailure
		resp.Message = scenario.VerdictMessage(model.VerdictFailure)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func hasAct(run *model.Run, name string) bool {
	for i := range run.ActCount {
		if scenario.ActName(i) == name {
			return true
		}
	}
	return false
}
