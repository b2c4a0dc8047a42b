package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"learntrust-backend/internal/models"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

func (r *QuizRepo) RecordAttempt(ctx context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()
	a.AttemptedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quiz_attempts (id, principal_id, module_id, passed, score, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.PrincipalID, a.ModuleID, a.Passed, a.Score, a.AttemptedAt)
	return err
}

func (r *QuizRepo) HasPassingAttempt(ctx context.Context, principalID, moduleID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM quiz_attempts
			WHERE principal_id = $1 AND module_id = $2 AND passed
		)
	`, principalID, moduleID).Scan(&exists)
	return exists, err
}
