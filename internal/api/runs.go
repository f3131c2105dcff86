package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/faultline/internal/chaosfile"
	"github.com/seantiz/faultline/internal/engine"
	"github.com/seantiz/faultline/internal/model"
	"github.com/seantiz/faultline/internal/scenario"
	"github.com/seantiz/faultline/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
	defaultRunName   = "chaos_api"
)

// submitRunRequest is the JSON body for POST /v1/runs.
type submitRunRequest struct {
	Name     string `json:"name"`
	Format   string `json:"format"`
	Document string `json:"document"`
}

// submitErrorResponse is returned when a scenario cannot be constructed.
type submitErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	RunID string `json:"run_id,omitempty"`
}

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Document) == "" {
		s.writeError(w, http.StatusBadRequest, "document is required")
		return
	}
	if req.Name == "" {
		req.Name = defaultRunName
	}
	if req.Format == "" {
		req.Format = model.FormatTOML
		if f, err := chaosfile.FormatFromPath(req.Name); err == nil {
			req.Format = f
		}
	}
	if req.Format != model.FormatTOML && req.Format != model.FormatYAML {
		s.writeError(w, http.StatusBadRequest, "format must be toml or yaml")
		return
	}

	run, err := s.engine.Submit(r.Context(), engine.Request{
		Name:     req.Name,
		Format:   req.Format,
		Document: req.Document,
	})
	if err != nil {
		if kind := scenario.KindOf(err); kind != "" {
			runSubmissionsTotal.WithLabelValues(string(kind)).Inc()
			resp := submitErrorResponse{Error: err.Error(), Code: string(kind)}
			if run != nil {
				resp.RunID = run.ID
			}
			s.writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		s.logger.Error("submit run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}

	runSubmissionsTotal.WithLabelValues(outcomeAccepted).Inc()
	s.writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.Run{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// lookupRun loads the run named by the {id} URL parameter, writing the error
// response itself when it cannot.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get run", "run_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return nil, false
	}
	return run, true
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
