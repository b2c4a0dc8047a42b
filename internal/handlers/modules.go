package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"learntrust-backend/internal/middleware"
	"learntrust-backend/internal/policy"
	"learntrust-backend/internal/repository"
	"learntrust-backend/internal/services"
	"learntrust-backend/internal/token"
)

type ModulesHandler struct {
	moduleRepo *repository.ModuleRepo
	engine     *policy.Engine
	tokens     *token.Service
	heatmap    *services.HeatmapService
	streamTTL  time.Duration
}

func NewModulesHandler(moduleRepo *repository.ModuleRepo, engine *policy.Engine, tokens *token.Service, heatmap *services.HeatmapService, streamTTL time.Duration) *ModulesHandler {
	return &ModulesHandler{
		moduleRepo: moduleRepo,
		engine:     engine,
		tokens:     tokens,
		heatmap:    heatmap,
		streamTTL:  streamTTL,
	}
}

func (h *ModulesHandler) moduleFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid module ID", r))
		return uuid.Nil, false
	}
	return id, true
}

// Unlock evaluates the access policy; an allowed decision carries a
// fresh streaming grant, a denied one the full failed-criteria list.
func (h *ModulesHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleFromPath(w, r)
	if !ok {
		return
	}

	module, err := h.moduleRepo.GetByID(r.Context(), moduleID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Module not found", r))
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	principalID := middleware.GetUserID(r.Context())

	decision, err := h.engine.Evaluate(r.Context(), principalID, module)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if !decision.Allowed {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"allowed":         false,
			"failed_criteria": decision.FailedCriteria,
		})
		return
	}

	streamToken, err := h.tokens.Issue(principalID, moduleID, h.streamTTL)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"allowed":      true,
		"stream_token": streamToken,
		"expires_in":   int(h.streamTTL.Seconds()),
	})
}

// Stream validates the grant presented as a query parameter before the
// media collaborator serves a single byte.
func (h *ModulesHandler) Stream(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleFromPath(w, r)
	if !ok {
		return
	}

	streamToken := r.URL.Query().Get("token")
	if streamToken == "" {
		writeJSON(w, http.StatusForbidden, errorResp("TOKEN_MISSING", "Missing authentication token", r))
		return
	}

	principalID := middleware.GetUserID(r.Context())

	payload, err := h.tokens.Verify(streamToken, principalID, moduleID, time.Now())
	if err != nil {
		writeJSON(w, http.StatusForbidden, errorResp(tokenErrorCode(err), "Invalid or expired token", r))
		return
	}

	// The grant checks out; the media collaborator handles delivery.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"granted":    true,
		"module_id":  payload.ModuleID,
		"expires_at": payload.Expiry,
	})
}

func (h *ModulesHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := h.moduleFromPath(w, r)
	if !ok {
		return
	}

	heatmap, err := h.heatmap.ModuleHeatmap(r.Context(), moduleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, heatmap)
}

func tokenErrorCode(err error) string {
	switch {
	case errors.Is(err, token.ErrMalformed):
		return "TOKEN_MALFORMED"
	case errors.Is(err, token.ErrBadSignature):
		return "TOKEN_BAD_SIGNATURE"
	case errors.Is(err, token.ErrExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, token.ErrContextMismatch):
		return "TOKEN_CONTEXT_MISMATCH"
	default:
		return "TOKEN_INVALID"
	}
}
