package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"learntrust-backend/internal/certificates"
	"learntrust-backend/internal/middleware"
	"learntrust-backend/internal/models"
	"learntrust-backend/internal/repository"
)

type CertificatesHandler struct {
	certs        *certificates.Service
	certRepo     *repository.CertificateRepo
	progressRepo *repository.ProgressRepo
	queue        *redis.Client
}

func NewCertificatesHandler(certs *certificates.Service, certRepo *repository.CertificateRepo, progressRepo *repository.ProgressRepo, queue *redis.Client) *CertificatesHandler {
	return &CertificatesHandler{
		certs:        certs,
		certRepo:     certRepo,
		progressRepo: progressRepo,
		queue:        queue,
	}
}

// CompleteCourse checks that every module in the course is completed and
// enqueues certificate issuance. Issuance itself happens in the worker
// pool so the request path stays fast.
func (h *CertificatesHandler) CompleteCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}

	principalID := middleware.GetUserID(r.Context())

	done, err := h.progressRepo.CourseCompleted(r.Context(), principalID, courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !done {
		writeJSON(w, http.StatusForbidden, errorResp("COURSE_INCOMPLETE", "Not all modules in this course are completed", r))
		return
	}

	if existing, err := h.certRepo.GetByStudentAndCourse(r.Context(), principalID, courseID); err == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":            "already_issued",
			"verification_code": existing.VerificationCode,
		})
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		handleServiceError(w, r, err)
		return
	}

	job := models.Job{
		ID:         uuid.New(),
		Type:       models.JobTypeCertificateIssuance,
		StudentID:  principalID,
		CourseID:   courseID,
		EnqueuedAt: time.Now().UTC(),
	}
	jobBytes, err := json.Marshal(job)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.queue.LPush(r.Context(), models.CertificateQueue, string(jobBytes)).Err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "queued",
		"job_id": job.ID,
	})
}

// Verify is the public verification endpoint. It never reveals why a
// certificate is invalid, only that it is.
func (h *CertificatesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	code, err := uuid.Parse(chi.URLParam(r, "code"))
	if err != nil {
		writeJSON(w, http.StatusOK, models.CertificateVerification{Valid: false})
		return
	}

	result, err := h.certs.Verify(r.Context(), code)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Revoke flips the revocation flag on a certificate. Admin only.
func (h *CertificatesHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	certID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid certificate ID", r))
		return
	}

	adminID := middleware.GetUserID(r.Context())

	if err := h.certs.Revoke(r.Context(), adminID, certID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Certificate not found", r))
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
