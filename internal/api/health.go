package api

import (
	"net/http"
)

type healthResponse struct {
	Status      string `json:"status"`
	EntryPoints int    `json:"entry_points"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		EntryPoints: len(s.registry.List()),
	})
}
