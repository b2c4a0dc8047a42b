// Package certificates issues completion certificates and verifies
// them publicly. Verification recomputes the hash from stored fields
// and the server secret, proving possession of the secret indirectly
// without ever exposing it.
package certificates

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"learntrust-backend/internal/models"
	"learntrust-backend/internal/repository"
	"learntrust-backend/internal/token"
)

// ErrAlreadyIssued reports a duplicate (student, course) issuance.
var ErrAlreadyIssued = errors.New("certificate already issued for this student and course")

type Store interface {
	InsertTx(ctx context.Context, tx pgx.Tx, c *models.Certificate) error
	GetByVerificationCode(ctx context.Context, code uuid.UUID) (*models.Certificate, error)
	GetByStudentAndCourse(ctx context.Context, studentID, courseID uuid.UUID) (*models.Certificate, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

type Recorder interface {
	Append(ctx context.Context, principalID uuid.UUID, eventType string, metadata interface{}) (models.AuditEntry, error)
	AppendTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, eventType string, metadata interface{}) (models.AuditEntry, error)
	Publish(ctx context.Context, entry models.AuditEntry)
}

// TxBeginner opens transactions; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	db     TxBeginner
	store  Store
	tokens *token.Service
	chain  Recorder
}

func NewService(db TxBeginner, store Store, tokens *token.Service, chain Recorder) *Service {
	return &Service{db: db, store: store, tokens: tokens, chain: chain}
}

// Issue computes the certificate hash, generates a fresh verification
// code, and persists the record and its audit entry in one
// transaction, so no certificate can exist without its ledger entry.
func (s *Service) Issue(ctx context.Context, studentID, courseID uuid.UUID) (*models.Certificate, error) {
	issuedAt := time.Now().UTC().Truncate(time.Second)

	cert := &models.Certificate{
		ID:               uuid.New(),
		StudentID:        studentID,
		CourseID:         courseID,
		IssuedAt:         issuedAt,
		CertificateHash:  s.hash(studentID, courseID, issuedAt),
		VerificationCode: uuid.New(),
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertTx(ctx, tx, cert); err != nil {
		if errors.Is(err, repository.ErrCertificateExists) {
			return nil, ErrAlreadyIssued
		}
		return nil, err
	}

	entry, err := s.chain.AppendTx(ctx, tx, studentID, "certificate_issued", map[string]interface{}{
		"course_id":         courseID,
		"certificate_id":    cert.ID,
		"verification_code": cert.VerificationCode,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.chain.Publish(ctx, entry)
	return cert, nil
}

// Verify looks up a certificate by its public verification code and
// recomputes the hash. Not found, revoked, and hash mismatch all
// collapse to an invalid result.
func (s *Service) Verify(ctx context.Context, code uuid.UUID) (models.CertificateVerification, error) {
	cert, err := s.store.GetByVerificationCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CertificateVerification{Valid: false}, nil
	}
	if err != nil {
		return models.CertificateVerification{}, err
	}

	if cert.Revoked || s.hash(cert.StudentID, cert.CourseID, cert.IssuedAt) != cert.CertificateHash {
		return models.CertificateVerification{Valid: false}, nil
	}

	return models.CertificateVerification{
		Valid:     true,
		StudentID: &cert.StudentID,
		CourseID:  &cert.CourseID,
		IssuedAt:  &cert.IssuedAt,
	}, nil
}

// Revoke flips the revocation flag; the hash-bearing fields stay
// frozen so the revocation itself is auditable.
func (s *Service) Revoke(ctx context.Context, adminID uuid.UUID, certID uuid.UUID) error {
	if err := s.store.Revoke(ctx, certID); err != nil {
		return err
	}
	_, err := s.chain.Append(ctx, adminID, "certificate_revoked", map[string]interface{}{
		"certificate_id": certID,
	})
	return err
}

func (s *Service) hash(studentID, courseID uuid.UUID, issuedAt time.Time) string {
	return s.tokens.Digest(studentID.String(), courseID.String(), token.DigestTime(issuedAt))
}
