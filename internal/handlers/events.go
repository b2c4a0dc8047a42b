package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"learntrust-backend/internal/middleware"
	"learntrust-backend/internal/models"
	"learntrust-backend/internal/sequence"
)

type EventsHandler struct {
	guard *sequence.Guard
}

func NewEventsHandler(guard *sequence.Guard) *EventsHandler {
	return &EventsHandler{guard: guard}
}

// WatchEvent admits one engagement event. Non-monotonic sequence
// numbers come back as 409 with the minimum acceptable number; stale
// timestamps as 400.
func (h *EventsHandler) WatchEvent(w http.ResponseWriter, r *http.Request) {
	var req models.WatchEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := map[string]string{}
	moduleID, err := uuid.Parse(req.ModuleID)
	if err != nil {
		fields["module_id"] = "must be a valid module ID"
	}
	if !models.ValidEventType(req.EventType) {
		fields["event_type"] = "unknown event type"
	}
	if req.SequenceNumber == 0 {
		fields["sequence_number"] = "must be a positive integer"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	principalID := middleware.GetUserID(r.Context())

	event, err := h.guard.Admit(
		r.Context(),
		principalID,
		moduleID,
		req.SequenceNumber,
		req.EventType,
		req.Timestamp,
		req.PositionSeconds,
		time.Now(),
	)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"sequence_number": event.SequenceNumber,
	})
}
