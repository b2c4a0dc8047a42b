package models

import (
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Module metadata read by the unlock policy. Administration of these
// records is a collaborator concern; this service only reads them.
type Module struct {
	ID                     uuid.UUID  `json:"id"`
	CourseID               uuid.UUID  `json:"course_id"`
	Title                  string     `json:"title"`
	Position               int        `json:"position"`
	PrerequisiteID         *uuid.UUID `json:"prerequisite_id"`
	MinimumWatchPercentage float64    `json:"minimum_watch_percentage"`
	MustPassQuiz           bool       `json:"must_pass_quiz"`
	ReleaseDate            *time.Time `json:"release_date"`
	CreatedAt              time.Time  `json:"created_at"`
}

type StudentProgress struct {
	PrincipalID     uuid.UUID  `json:"principal_id"`
	CourseID        uuid.UUID  `json:"course_id"`
	ModuleID        uuid.UUID  `json:"module_id"`
	WatchPercentage float64    `json:"watch_percentage"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type QuizAttempt struct {
	ID          uuid.UUID `json:"id"`
	PrincipalID uuid.UUID `json:"principal_id"`
	ModuleID    uuid.UUID `json:"module_id"`
	Passed      bool      `json:"passed"`
	Score       float64   `json:"score"`
	AttemptedAt time.Time `json:"attempted_at"`
}
