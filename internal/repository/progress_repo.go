package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"learntrust-backend/internal/models"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

// Get returns the stored progress, or a zero-value row when the
// principal has never touched the module.
func (r *ProgressRepo) Get(ctx context.Context, principalID, moduleID uuid.UUID) (*models.StudentProgress, error) {
	p := &models.StudentProgress{}
	err := r.pool.QueryRow(ctx, `
		SELECT principal_id, course_id, module_id, watch_percentage, is_completed, completed_at, updated_at
		FROM student_progress
		WHERE principal_id = $1 AND module_id = $2
	`, principalID, moduleID).Scan(
		&p.PrincipalID, &p.CourseID, &p.ModuleID, &p.WatchPercentage, &p.IsCompleted, &p.CompletedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.StudentProgress{PrincipalID: principalID, ModuleID: moduleID}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProgressRepo) IsModuleCompleted(ctx context.Context, principalID, moduleID uuid.UUID) (bool, error) {
	var completed bool
	err := r.pool.QueryRow(ctx, `
		SELECT is_completed FROM student_progress
		WHERE principal_id = $1 AND module_id = $2
	`, principalID, moduleID).Scan(&completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return completed, nil
}

// Upsert records watch percentage against the unique
// (principal, module) row. Watch percentage never decreases.
func (r *ProgressRepo) Upsert(ctx context.Context, p *models.StudentProgress) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO student_progress (principal_id, course_id, module_id, watch_percentage, is_completed, completed_at)
		VALUES ($1, $2, $3, $4, $5, CASE WHEN $5 THEN NOW() ELSE NULL END)
		ON CONFLICT (principal_id, module_id) DO UPDATE SET
			watch_percentage = GREATEST(student_progress.watch_percentage, EXCLUDED.watch_percentage),
			is_completed = student_progress.is_completed OR EXCLUDED.is_completed,
			completed_at = COALESCE(student_progress.completed_at, EXCLUDED.completed_at),
			updated_at = NOW()
	`, p.PrincipalID, p.CourseID, p.ModuleID, p.WatchPercentage, p.IsCompleted)
	return err
}

func (r *ProgressRepo) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.StudentProgress, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT principal_id, course_id, module_id, watch_percentage, is_completed, completed_at, updated_at
		FROM student_progress
		WHERE principal_id = $1
		ORDER BY updated_at DESC
	`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []*models.StudentProgress
	for rows.Next() {
		p := &models.StudentProgress{}
		err := rows.Scan(&p.PrincipalID, &p.CourseID, &p.ModuleID, &p.WatchPercentage, &p.IsCompleted, &p.CompletedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// CourseCompleted reports whether every module of the course is
// completed for the principal.
func (r *ProgressRepo) CourseCompleted(ctx context.Context, principalID, courseID uuid.UUID) (bool, error) {
	var total, completed int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE sp.is_completed)
		FROM modules m
		LEFT JOIN student_progress sp
			ON sp.module_id = m.id AND sp.principal_id = $1
		WHERE m.course_id = $2
	`, principalID, courseID).Scan(&total, &completed)
	if err != nil {
		return false, err
	}
	return total > 0 && total == completed, nil
}
