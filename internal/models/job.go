package models

import (
	"time"

	"github.com/google/uuid"
)

// Job is the payload pushed onto Redis work queues.
type Job struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	StudentID  uuid.UUID `json:"student_id"`
	CourseID   uuid.UUID `json:"course_id"`
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

const JobTypeCertificateIssuance = "certificate-issuance"

// CertificateQueue is the Redis list certificate issuance jobs wait on.
const CertificateQueue = "queue:certificate-issuance"
