package api

import (
	"net/http"
	"strings"

	"github.com/aminmomin2/convocate/internal/ticket"
)

type scoreResponse struct {
	Status string   `json:"status"`
	Score  int      `json:"score"`
	Tips   []string `json:"tips"`
}

// score polls a scoring ticket. Settled tickets are consumed on read,
// so a second poll for the same id reports not_found.
func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}

	result, status, ok := s.tickets.Take(id)
	if !ok {
		respondJSON(w, http.StatusNotFound, scoreResponse{
			Status: "not_found", Score: 0, Tips: []string{},
		})
		return
	}

	switch status {
	case ticket.StatusPending:
		respondJSON(w, http.StatusAccepted, scoreResponse{
			Status: "pending", Score: 0, Tips: []string{},
		})
	case ticket.StatusResolved:
		tips := result.Tips
		if tips == nil {
			tips = []string{}
		}
		respondJSON(w, http.StatusOK, scoreResponse{
			Status: "complete", Score: result.Score, Tips: tips,
		})
	default:
		respondJSON(w, http.StatusInternalServerError, scoreResponse{
			Status: "error", Score: 0, Tips: []string{},
		})
	}
}
