package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"learntrust-backend/internal/models"
)

type ModuleRepo struct {
	pool *pgxpool.Pool
}

func NewModuleRepo(pool *pgxpool.Pool) *ModuleRepo {
	return &ModuleRepo{pool: pool}
}

func (r *ModuleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Module, error) {
	m := &models.Module{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, course_id, title, position, prerequisite_id, minimum_watch_percentage,
			must_pass_quiz, release_date, created_at
		FROM modules WHERE id = $1
	`, id).Scan(
		&m.ID, &m.CourseID, &m.Title, &m.Position, &m.PrerequisiteID, &m.MinimumWatchPercentage,
		&m.MustPassQuiz, &m.ReleaseDate, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *ModuleRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*models.Module, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, course_id, title, position, prerequisite_id, minimum_watch_percentage,
			must_pass_quiz, release_date, created_at
		FROM modules WHERE course_id = $1 ORDER BY position
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []*models.Module
	for rows.Next() {
		m := &models.Module{}
		err := rows.Scan(
			&m.ID, &m.CourseID, &m.Title, &m.Position, &m.PrerequisiteID, &m.MinimumWatchPercentage,
			&m.MustPassQuiz, &m.ReleaseDate, &m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

func (r *ModuleRepo) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	c := &models.Course{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, description, is_active, created_at FROM courses WHERE id = $1
	`, id).Scan(&c.ID, &c.Title, &c.Description, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
