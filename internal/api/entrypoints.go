package api

import (
	"net/http"

	"github.com/seantiz/faultline/internal/faults"
)

// entryPointsResponse is the JSON response for GET /v1/entrypoints.
type entryPointsResponse struct {
	EntryPoints []entrypointInfo `json:"entry_points"`
	FaultTypes  []string         `json:"fault_types"`
}

type entrypointInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CallSites   []string `json:"call_sites"`
}

func (s *Server) handleListEntryPoints(w http.ResponseWriter, _ *http.Request) {
	list := s.registry.List()
	infos := make([]entrypointInfo, len(list))
	for i, e := range list {
		infos[i] = entrypointInfo{Name: e.Name, Description: e.Description, CallSites: e.CallSites}
		if infos[i].CallSites == nil {
			infos[i].CallSites = []string{}
		}
	}
	s.writeJSON(w, http.StatusOK, entryPointsResponse{
		EntryPoints: infos,
		FaultTypes:  faults.Default.Names(),
	})
}
