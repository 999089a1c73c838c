package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/slotbot-ai/slotbot/internal/api/respond"
	"github.com/slotbot-ai/slotbot/internal/api/validate"
	"github.com/slotbot-ai/slotbot/internal/engine"
)

// MessageEngine is the entry point the HTTP surface drives.
type MessageEngine interface {
	HandleMessage(ctx context.Context, userID, text string, ts time.Time) (*engine.Response, error)
}

// MessagesHandler handles the inbound message endpoint.
type MessagesHandler struct {
	engine MessageEngine
}

func NewMessagesHandler(e MessageEngine) *MessagesHandler {
	return &MessagesHandler{engine: e}
}

type messageRequest struct {
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"` // RFC3339; defaults to now
}

// HandleMessage handles POST /api/messages.
func (h *MessagesHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.UserID(req.UserID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.MessageText(req.Text); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			respond.WriteBadRequest(w, "timestamp must be RFC3339")
			return
		}
		ts = parsed
	}

	resp, err := h.engine.HandleMessage(r.Context(), req.UserID, req.Text, ts)
	if err != nil {
		log.Error().Err(err).Str("userId", req.UserID).Msg("message handling failed")
		respond.WriteInternalError(w, "failed to process message")
		return
	}

	respond.WriteJSON(w, http.StatusOK, resp)
}
