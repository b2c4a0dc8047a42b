// Package policy decides whether a module may be unlocked. Every
// criterion is evaluated on every call so the audit record names all
// violated rules, not just the first.
package policy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"learntrust-backend/internal/locks"
	"learntrust-backend/internal/models"
)

// DefaultFailureLimit is the micro-quiz failure count above which a
// module locks regardless of the other criteria.
const DefaultFailureLimit = 3

type ProgressStore interface {
	Get(ctx context.Context, principalID, moduleID uuid.UUID) (*models.StudentProgress, error)
	IsModuleCompleted(ctx context.Context, principalID, moduleID uuid.UUID) (bool, error)
}

type QuizStore interface {
	HasPassingAttempt(ctx context.Context, principalID, moduleID uuid.UUID) (bool, error)
}

// DecisionRecorder is the audit chain surface the engine writes to.
type DecisionRecorder interface {
	Append(ctx context.Context, principalID uuid.UUID, eventType string, metadata interface{}) (models.AuditEntry, error)
}

type FailureCounter interface {
	Count(ctx context.Context, principalID, moduleID uuid.UUID) (int, error)
	Increment(ctx context.Context, principalID, moduleID uuid.UUID) (int, error)
	Reset(ctx context.Context, principalID, moduleID uuid.UUID) error
}

type Engine struct {
	progress ProgressStore
	quizzes  QuizStore
	failures FailureCounter
	chain    DecisionRecorder
	keys     *locks.KeyedMutex

	defaultWatchPercent float64
	failureLimit        int
	now                 func() time.Time
}

func NewEngine(progress ProgressStore, quizzes QuizStore, failures FailureCounter, chain DecisionRecorder, defaultWatchPercent float64, failureLimit int) *Engine {
	if defaultWatchPercent <= 0 {
		defaultWatchPercent = 80.0
	}
	if failureLimit <= 0 {
		failureLimit = DefaultFailureLimit
	}
	return &Engine{
		progress:            progress,
		quizzes:             quizzes,
		failures:            failures,
		chain:               chain,
		keys:                locks.NewKeyedMutex(),
		defaultWatchPercent: defaultWatchPercent,
		failureLimit:        failureLimit,
		now:                 time.Now,
	}
}

// Evaluate runs the five criteria in fixed order and records the
// decision on the audit chain. Identical stored state always yields an
// identical decision; the keyed mutex keeps concurrent evaluations for
// the same (principal, module) from interleaving reads and writes.
func (e *Engine) Evaluate(ctx context.Context, principalID uuid.UUID, module *models.Module) (models.UnlockDecision, error) {
	e.keys.Lock(principalID, module.ID)
	defer e.keys.Unlock(principalID, module.ID)

	now := e.now().UTC()
	var failed []string

	// 1. Prerequisite complete.
	if module.PrerequisiteID != nil {
		done, err := e.progress.IsModuleCompleted(ctx, principalID, *module.PrerequisiteID)
		if err != nil {
			return models.UnlockDecision{}, err
		}
		if !done {
			failed = append(failed, models.CriterionPrerequisite)
		}
	}

	// 2. Watch percentage at or above the module threshold.
	progress, err := e.progress.Get(ctx, principalID, module.ID)
	if err != nil {
		return models.UnlockDecision{}, err
	}
	threshold := module.MinimumWatchPercentage
	if threshold <= 0 {
		threshold = e.defaultWatchPercent
	}
	if progress.WatchPercentage < threshold {
		failed = append(failed, models.CriterionWatchPercentage)
	}

	// 3. Passing quiz attempt when the module requires one.
	if module.MustPassQuiz {
		passed, err := e.quizzes.HasPassingAttempt(ctx, principalID, module.ID)
		if err != nil {
			return models.UnlockDecision{}, err
		}
		if !passed {
			failed = append(failed, models.CriterionQuizRequired)
		}
	}

	// 4. Release date reached.
	if module.ReleaseDate != nil && module.ReleaseDate.After(now) {
		failed = append(failed, models.CriterionReleaseDate)
	}

	// 5. Micro-quiz failure lockout.
	count, err := e.failures.Count(ctx, principalID, module.ID)
	if err != nil {
		return models.UnlockDecision{}, err
	}
	if count > e.failureLimit {
		failed = append(failed, models.CriterionFailureLimit)
	}

	decision := models.UnlockDecision{
		PrincipalID:    principalID,
		ModuleID:       module.ID,
		Allowed:        len(failed) == 0,
		FailedCriteria: failed,
		DecidedAt:      now,
	}

	eventType := "module_unlock_denied"
	if decision.Allowed {
		eventType = "module_unlock_allowed"
	}
	if _, err := e.chain.Append(ctx, principalID, eventType, decision); err != nil {
		return models.UnlockDecision{}, err
	}

	return decision, nil
}

// ReportQuizFailure bumps the lockout counter and returns the new
// count.
func (e *Engine) ReportQuizFailure(ctx context.Context, principalID, moduleID uuid.UUID) (int, error) {
	e.keys.Lock(principalID, moduleID)
	defer e.keys.Unlock(principalID, moduleID)
	return e.failures.Increment(ctx, principalID, moduleID)
}

// ResetFailures clears the counter: module completion or an explicit
// administrative reset.
func (e *Engine) ResetFailures(ctx context.Context, principalID, moduleID uuid.UUID) error {
	e.keys.Lock(principalID, moduleID)
	defer e.keys.Unlock(principalID, moduleID)
	return e.failures.Reset(ctx, principalID, moduleID)
}

// FailureLimit exposes the configured lockout threshold.
func (e *Engine) FailureLimit() int {
	return e.failureLimit
}
