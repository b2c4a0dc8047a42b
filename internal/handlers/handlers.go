package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"learntrust-backend/internal/models"
	"learntrust-backend/internal/sequence"
	"learntrust-backend/internal/services"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *services.ValidationError
		conflict   *services.ConflictError
		notFound   *services.NotFoundError
		forbidden  *services.ForbiddenError
		integrity  *services.IntegrityError
		monotonic  *sequence.NonMonotonicError
		stale      *sequence.StaleEventError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validation.Fields, r))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflict.Message, r))
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFound.Message, r))
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", forbidden.Message, r))
	case errors.As(err, &monotonic):
		writeJSON(w, http.StatusConflict, errorResp("SEQUENCE_CONFLICT", monotonic.Error(), r))
	case errors.As(err, &stale):
		writeJSON(w, http.StatusBadRequest, errorResp("STALE_EVENT", stale.Error(), r))
	case errors.Is(err, sequence.ErrSequenceConflict):
		writeJSON(w, http.StatusConflict, errorResp("SEQUENCE_CONFLICT", err.Error(), r))
	case errors.As(err, &integrity):
		// Escalates past the request: operational alerting reads these logs.
		writeJSON(w, http.StatusInternalServerError, errorResp("INTEGRITY_ERROR", "Audit chain integrity failure", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Internal server error", r))
	}
}
