package models

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is immutable after issuance: CertificateHash binds
// student, course and issuance time to the server secret, and the
// verification code is the only externally disclosed lookup key.
type Certificate struct {
	ID               uuid.UUID `json:"id"`
	StudentID        uuid.UUID `json:"student_id"`
	CourseID         uuid.UUID `json:"course_id"`
	IssuedAt         time.Time `json:"issued_at"`
	CertificateHash  string    `json:"certificate_hash"`
	VerificationCode uuid.UUID `json:"verification_code"`
	Revoked          bool      `json:"revoked"`
}

// CertificateVerification is the public verification response. It
// never exposes more than what is already public plus a boolean.
type CertificateVerification struct {
	Valid     bool       `json:"valid"`
	StudentID *uuid.UUID `json:"student_id,omitempty"`
	CourseID  *uuid.UUID `json:"course_id,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
}
