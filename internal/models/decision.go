package models

import (
	"time"

	"github.com/google/uuid"
)

// Unlock criteria names, in evaluation order. The order is fixed so
// identical stored state always yields an identical failed list.
const (
	CriterionPrerequisite    = "Prerequisite"
	CriterionWatchPercentage = "WatchPercentage"
	CriterionQuizRequired    = "QuizRequired"
	CriterionReleaseDate     = "ReleaseDate"
	CriterionFailureLimit    = "FailureLimitExceeded"
)

// UnlockDecision is produced once per evaluation and persisted as
// audit entry metadata, never as a separately mutable record.
type UnlockDecision struct {
	PrincipalID    uuid.UUID `json:"principal_id"`
	ModuleID       uuid.UUID `json:"module_id"`
	Allowed        bool      `json:"allowed"`
	FailedCriteria []string  `json:"failed_criteria"`
	DecidedAt      time.Time `json:"decided_at"`
}
