package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"learntrust-backend/internal/ledger"
	"learntrust-backend/internal/middleware"
	"learntrust-backend/internal/models"
	"learntrust-backend/internal/policy"
	"learntrust-backend/internal/repository"
)

type ProgressHandler struct {
	progressRepo *repository.ProgressRepo
	moduleRepo   *repository.ModuleRepo
	quizRepo     *repository.QuizRepo
	engine       *policy.Engine
	chain        *ledger.Ledger
}

func NewProgressHandler(progressRepo *repository.ProgressRepo, moduleRepo *repository.ModuleRepo, quizRepo *repository.QuizRepo, engine *policy.Engine, chain *ledger.Ledger) *ProgressHandler {
	return &ProgressHandler{
		progressRepo: progressRepo,
		moduleRepo:   moduleRepo,
		quizRepo:     quizRepo,
		engine:       engine,
		chain:        chain,
	}
}

// Update records watch percentage for a module; completion resets the
// micro-quiz lockout and lands on the audit chain.
func (h *ProgressHandler) Update(w http.ResponseWriter, r *http.Request) {
	moduleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid module ID", r))
		return
	}

	var req struct {
		WatchPercentage float64 `json:"watch_percentage"`
		Completed       bool    `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.WatchPercentage < 0 || req.WatchPercentage > 100 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"watch_percentage": "must be between 0 and 100"}, r))
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

	progress := &models.StudentProgress{
		PrincipalID:     principalID,
		CourseID:        module.CourseID,
		ModuleID:        moduleID,
		WatchPercentage: req.WatchPercentage,
		IsCompleted:     req.Completed,
	}
	if err := h.progressRepo.Upsert(r.Context(), progress); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if req.Completed {
		if err := h.engine.ResetFailures(r.Context(), principalID, moduleID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		if _, err := h.chain.Append(r.Context(), principalID, "module_completed", map[string]interface{}{
			"module_id": moduleID,
		}); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// QuizAttempt records a micro-quiz outcome. Failures feed the lockout
// counter; the counter state comes back so clients can warn learners.
func (h *ProgressHandler) QuizAttempt(w http.ResponseWriter, r *http.Request) {
	moduleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid module ID", r))
		return
	}

	var req struct {
		Passed bool    `json:"passed"`
		Score  float64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	principalID := middleware.GetUserID(r.Context())

	attempt := &models.QuizAttempt{
		PrincipalID: principalID,
		ModuleID:    moduleID,
		Passed:      req.Passed,
		Score:       req.Score,
	}
	if err := h.quizRepo.RecordAttempt(r.Context(), attempt); err != nil {
		handleServiceError(w, r, err)
		return
	}

	failures := 0
	if !req.Passed {
		failures, err = h.engine.ReportQuizFailure(r.Context(), principalID, moduleID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"passed":        req.Passed,
		"failures":      failures,
		"failure_limit": h.engine.FailureLimit(),
	})
}

// Summary returns the principal's per-module completion state.
func (h *ProgressHandler) Summary(w http.ResponseWriter, r *http.Request) {
	principalID := middleware.GetUserID(r.Context())

	progress, err := h.progressRepo.ListByPrincipal(r.Context(), principalID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	completed := 0
	for _, p := range progress {
		if p.IsCompleted {
			completed++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modules":           progress,
		"completed_modules": completed,
	})
}
