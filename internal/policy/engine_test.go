package policy

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"learntrust-backend/internal/models"
)

type fakeProgress struct {
	watch     map[uuid.UUID]float64
	completed map[uuid.UUID]bool
}

func (f *fakeProgress) Get(_ context.Context, principalID, moduleID uuid.UUID) (*models.StudentProgress, error) {
	return &models.StudentProgress{
		PrincipalID:     principalID,
		ModuleID:        moduleID,
		WatchPercentage: f.watch[moduleID],
	}, nil
}

func (f *fakeProgress) IsModuleCompleted(_ context.Context, _, moduleID uuid.UUID) (bool, error) {
	return f.completed[moduleID], nil
}

type fakeQuizzes struct {
	passed map[uuid.UUID]bool
}

func (f *fakeQuizzes) HasPassingAttempt(_ context.Context, _, moduleID uuid.UUID) (bool, error) {
	return f.passed[moduleID], nil
}

type fakeCounter struct {
	counts map[string]int
}

func key(p, m uuid.UUID) string { return p.String() + ":" + m.String() }

func (f *fakeCounter) Count(_ context.Context, p, m uuid.UUID) (int, error) {
	return f.counts[key(p, m)], nil
}

func (f *fakeCounter) Increment(_ context.Context, p, m uuid.UUID) (int, error) {
	f.counts[key(p, m)]++
	return f.counts[key(p, m)], nil
}

func (f *fakeCounter) Reset(_ context.Context, p, m uuid.UUID) error {
	delete(f.counts, key(p, m))
	return nil
}

type fakeRecorder struct {
	entries []string
}

func (f *fakeRecorder) Append(_ context.Context, _ uuid.UUID, eventType string, _ interface{}) (models.AuditEntry, error) {
	f.entries = append(f.entries, eventType)
	return models.AuditEntry{EventType: eventType}, nil
}

type fixture struct {
	engine   *Engine
	progress *fakeProgress
	quizzes  *fakeQuizzes
	counter  *fakeCounter
	recorder *fakeRecorder
}

func newFixture() *fixture {
	progress := &fakeProgress{watch: map[uuid.UUID]float64{}, completed: map[uuid.UUID]bool{}}
	quizzes := &fakeQuizzes{passed: map[uuid.UUID]bool{}}
	counter := &fakeCounter{counts: map[string]int{}}
	recorder := &fakeRecorder{}
	return &fixture{
		engine:   NewEngine(progress, quizzes, counter, recorder, 80.0, 3),
		progress: progress,
		quizzes:  quizzes,
		counter:  counter,
		recorder: recorder,
	}
}

func openModule() *models.Module {
	return &models.Module{ID: uuid.New(), CourseID: uuid.New()}
}

func TestEvaluateAllCriteriaPass(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	module := openModule()
	f.progress.watch[module.ID] = 95.0

	decision, err := f.engine.Evaluate(context.Background(), principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("Expected Allowed, got Denied with %v", decision.FailedCriteria)
	}
	if len(f.recorder.entries) != 1 || f.recorder.entries[0] != "module_unlock_allowed" {
		t.Errorf("Expected one module_unlock_allowed audit entry, got %v", f.recorder.entries)
	}
}

func TestEvaluateWatchPercentageScenario(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	module := openModule()

	// Watched 60% against an 80% threshold.
	f.progress.watch[module.ID] = 60.0

	decision, err := f.engine.Evaluate(context.Background(), principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected Denied at 60% watch")
	}
	want := []string{models.CriterionWatchPercentage}
	if !reflect.DeepEqual(decision.FailedCriteria, want) {
		t.Errorf("Expected failed criteria %v, got %v", want, decision.FailedCriteria)
	}

	// After watching 85%, with everything else satisfied, access opens.
	f.progress.watch[module.ID] = 85.0
	decision, err = f.engine.Evaluate(context.Background(), principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("Expected Allowed at 85%%, got Denied with %v", decision.FailedCriteria)
	}
}

func TestEvaluateCollectsAllFailures(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	prereq := uuid.New()
	future := time.Now().Add(48 * time.Hour)
	module := &models.Module{
		ID:             uuid.New(),
		PrerequisiteID: &prereq,
		MustPassQuiz:   true,
		ReleaseDate:    &future,
	}
	f.counter.counts[key(principal, module.ID)] = 4

	decision, err := f.engine.Evaluate(context.Background(), principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected Denied")
	}

	// Every violated criterion is reported, in fixed order.
	want := []string{
		models.CriterionPrerequisite,
		models.CriterionWatchPercentage,
		models.CriterionQuizRequired,
		models.CriterionReleaseDate,
		models.CriterionFailureLimit,
	}
	if !reflect.DeepEqual(decision.FailedCriteria, want) {
		t.Errorf("Expected failed criteria %v, got %v", want, decision.FailedCriteria)
	}
}

func TestEvaluatePrerequisite(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	prereq := uuid.New()
	module := &models.Module{ID: uuid.New(), PrerequisiteID: &prereq}
	f.progress.watch[module.ID] = 90.0

	decision, err := f.engine.Evaluate(context.Background(), principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected Denied while prerequisite incomplete")
	}

	f.progress.completed[prereq] = true
	decision, err = f.engine.Evaluate(context.Background(), principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("Expected Allowed once prerequisite complete, got %v", decision.FailedCriteria)
	}
}

func TestEvaluateQuizRequirement(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	module := &models.Module{ID: uuid.New(), MustPassQuiz: true}
	f.progress.watch[module.ID] = 90.0

	decision, _ := f.engine.Evaluate(context.Background(), principal, module)
	want := []string{models.CriterionQuizRequired}
	if !reflect.DeepEqual(decision.FailedCriteria, want) {
		t.Errorf("Expected %v, got %v", want, decision.FailedCriteria)
	}

	f.quizzes.passed[module.ID] = true
	decision, _ = f.engine.Evaluate(context.Background(), principal, module)
	if !decision.Allowed {
		t.Errorf("Expected Allowed after passing quiz, got %v", decision.FailedCriteria)
	}
}

func TestEvaluateReleaseDate(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	past := time.Now().Add(-time.Hour)
	module := &models.Module{ID: uuid.New(), ReleaseDate: &past}
	f.progress.watch[module.ID] = 90.0

	decision, _ := f.engine.Evaluate(context.Background(), principal, module)
	if !decision.Allowed {
		t.Errorf("Expected released module to unlock, got %v", decision.FailedCriteria)
	}
}

func TestFourthFailureLocksModule(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	module := openModule()

	// Fully watched; only the lockout can deny.
	f.progress.watch[module.ID] = 100.0

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := f.engine.ReportQuizFailure(ctx, principal, module.ID); err != nil {
			t.Fatalf("ReportQuizFailure failed: %v", err)
		}
	}

	decision, err := f.engine.Evaluate(ctx, principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("Expected lockout after four failures")
	}
	want := []string{models.CriterionFailureLimit}
	if !reflect.DeepEqual(decision.FailedCriteria, want) {
		t.Errorf("Expected %v, got %v", want, decision.FailedCriteria)
	}

	// Three failures stay under the limit.
	if err := f.engine.ResetFailures(ctx, principal, module.ID); err != nil {
		t.Fatalf("ResetFailures failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		f.engine.ReportQuizFailure(ctx, principal, module.ID)
	}
	decision, _ = f.engine.Evaluate(ctx, principal, module)
	if !decision.Allowed {
		t.Errorf("Expected three failures to remain unlocked, got %v", decision.FailedCriteria)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	prereq := uuid.New()
	module := &models.Module{ID: uuid.New(), PrerequisiteID: &prereq, MustPassQuiz: true}
	f.progress.watch[module.ID] = 10.0

	first, err := f.engine.Evaluate(context.Background(), principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		next, err := f.engine.Evaluate(context.Background(), principal, module)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if next.Allowed != first.Allowed || !reflect.DeepEqual(next.FailedCriteria, first.FailedCriteria) {
			t.Fatalf("Decision not deterministic: %v vs %v", first.FailedCriteria, next.FailedCriteria)
		}
	}
}

func TestEvaluateUsesModuleThresholdOverDefault(t *testing.T) {
	f := newFixture()
	principal := uuid.New()
	module := &models.Module{ID: uuid.New(), MinimumWatchPercentage: 50.0}
	f.progress.watch[module.ID] = 60.0

	decision, err := f.engine.Evaluate(context.Background(), principal, module)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("Expected 60%% to pass a 50%% module threshold, got %v", decision.FailedCriteria)
	}
}
