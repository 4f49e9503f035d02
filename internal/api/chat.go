package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aminmomin2/convocate/internal/engine"
	"github.com/aminmomin2/convocate/internal/events"
	"github.com/aminmomin2/convocate/internal/parser"
	"github.com/aminmomin2/convocate/internal/profile"
	"github.com/aminmomin2/convocate/internal/quota"
	"github.com/aminmomin2/convocate/internal/ticket"
)

// chatRequest decodes the slice and object fields through pointers so
// an omitted key is distinguishable from a legitimate empty value.
type chatRequest struct {
	PersonaName  string                `json:"personaName"`
	Transcript   *[]parser.Message     `json:"transcript"`
	ChatHistory  *[]parser.Message     `json:"chatHistory"`
	UserMessage  string                `json:"userMessage"`
	StyleProfile *profile.StyleProfile `json:"styleProfile"`
}

type chatResponse struct {
	TwinReply      string   `json:"twinReply"`
	Score          int      `json:"score"`
	Tips           []string `json:"tips"`
	UserMessage    string   `json:"userMessage"`
	PersonaMessage string   `json:"personaMessage"`
	ScoreID        string   `json:"scoreId"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := quota.ClientID(w, r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PersonaName) == "" {
		respondError(w, http.StatusBadRequest, "personaName is required")
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		respondError(w, http.StatusBadRequest, "userMessage is required")
		return
	}
	if req.Transcript == nil {
		respondError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	if req.ChatHistory == nil {
		respondError(w, http.StatusBadRequest, "chatHistory is required")
		return
	}
	if req.StyleProfile == nil {
		respondError(w, http.StatusBadRequest, "styleProfile is required")
		return
	}

	if err := s.ledger.ReserveMessage(ctx, clientID); err != nil {
		if errors.Is(err, quota.ErrMessageLimit) {
			respondError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		s.logger.Error("message reservation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	result, err := s.engine.Run(ctx, engine.TurnRequest{
		PersonaName: req.PersonaName,
		Transcript:  *req.Transcript,
		ChatHistory: *req.ChatHistory,
		UserMessage: req.UserMessage,
		Profile:     *req.StyleProfile,
	})
	if err != nil {
		s.logger.Error("practice turn failed", "persona", req.PersonaName, "error", err)
		respondError(w, http.StatusInternalServerError, "could not generate a reply")
		return
	}

	scoreID := s.tickets.Create()
	s.tickets.Resolve(scoreID, ticket.Result{Score: result.Score, Tips: result.Tips})

	s.publish(events.SubjectTurnScored, events.TurnScored{
		TicketID:  scoreID,
		Score:     result.Score,
		Timestamp: events.Now(),
	})

	respondJSON(w, http.StatusOK, chatResponse{
		TwinReply:      result.Reply,
		Score:          result.Score,
		Tips:           result.Tips,
		UserMessage:    req.UserMessage,
		PersonaMessage: result.Reply,
		ScoreID:        scoreID,
	})
}
