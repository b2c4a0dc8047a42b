package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"learntrust-backend/internal/models"
)

// ErrCertificateExists surfaces the (student, course) unique
// constraint so callers see a conflict instead of corrupting state.
var ErrCertificateExists = errors.New("certificate already issued")

// CertificateRepo persists issued certificates. The hash-bearing
// fields are frozen at insert; Revoke only flips the revocation flag.
type CertificateRepo struct {
	pool *pgxpool.Pool
}

func NewCertificateRepo(pool *pgxpool.Pool) *CertificateRepo {
	return &CertificateRepo{pool: pool}
}

// InsertTx runs inside the caller's transaction so the certificate
// row and its issuance audit entry commit or abort together.
func (r *CertificateRepo) InsertTx(ctx context.Context, tx pgx.Tx, c *models.Certificate) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO certificates
			(id, student_id, course_id, issued_at, certificate_hash, verification_code, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`, c.ID, c.StudentID, c.CourseID, c.IssuedAt, c.CertificateHash, c.VerificationCode)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCertificateExists
	}
	return err
}

func (r *CertificateRepo) GetByVerificationCode(ctx context.Context, code uuid.UUID) (*models.Certificate, error) {
	c := &models.Certificate{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, student_id, course_id, issued_at, certificate_hash, verification_code, revoked
		FROM certificates WHERE verification_code = $1
	`, code).Scan(&c.ID, &c.StudentID, &c.CourseID, &c.IssuedAt, &c.CertificateHash, &c.VerificationCode, &c.Revoked)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CertificateRepo) GetByStudentAndCourse(ctx context.Context, studentID, courseID uuid.UUID) (*models.Certificate, error) {
	c := &models.Certificate{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, student_id, course_id, issued_at, certificate_hash, verification_code, revoked
		FROM certificates WHERE student_id = $1 AND course_id = $2
	`, studentID, courseID).Scan(&c.ID, &c.StudentID, &c.CourseID, &c.IssuedAt, &c.CertificateHash, &c.VerificationCode, &c.Revoked)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CertificateRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE certificates SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
