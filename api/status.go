package api

import (
	"net/http"
	"time"

	"github.com/openclaw/qrgen/store"
)

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.Sessions.Len(),
		Uptime:   s.Sessions.Uptime().Truncate(time.Second).String(),
		Version:  s.Version,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := queryInt(r, "limit", 20)
	gens, err := s.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if gens == nil {
		gens = []store.Generation{}
	}
	writeJSON(w, http.StatusOK, gens)
}
