// Package sequence admits engagement events: strictly increasing
// sequence numbers per (principal, module) and a freshness window
// defeat replayed, duplicated, and pre-generated submissions.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"learntrust-backend/internal/ledger"
	"learntrust-backend/internal/locks"
	"learntrust-backend/internal/models"
	"learntrust-backend/internal/repository"
)

// DefaultStalenessWindow bounds how old a client timestamp may be
// relative to server arrival.
const DefaultStalenessWindow = 30 * time.Second

// NonMonotonicError rejects any sequence number at or below the last
// accepted one. This one rule subsumes replay and duplicate detection.
type NonMonotonicError struct {
	LastAccepted uint64
	MinRequired  uint64
}

func (e *NonMonotonicError) Error() string {
	return fmt.Sprintf("sequence number must be greater than %d", e.LastAccepted)
}

// StaleEventError rejects events whose client timestamp is older than
// the staleness window at arrival.
type StaleEventError struct {
	Age    time.Duration
	Window time.Duration
}

func (e *StaleEventError) Error() string {
	return fmt.Sprintf("event timestamp too old (%.0fs stale, window %.0fs)", e.Age.Seconds(), e.Window.Seconds())
}

// ErrSequenceConflict reports a concurrent writer landing the same
// sequence number first; the caller must not retry with it.
var ErrSequenceConflict = errors.New("concurrent submission for this sequence number")

type Guard struct {
	pool   *pgxpool.Pool
	events *repository.EventRepo
	chain  *ledger.Ledger
	keys   *locks.KeyedMutex
	window time.Duration
}

func NewGuard(pool *pgxpool.Pool, events *repository.EventRepo, chain *ledger.Ledger, window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	return &Guard{
		pool:   pool,
		events: events,
		chain:  chain,
		keys:   locks.NewKeyedMutex(),
		window: window,
	}
}

// Admit validates ordering and freshness, then persists the event and
// its audit entry in one transaction. The keyed mutex makes the
// check-then-act span race-free per (principal, module); the unique
// constraint backstops writers on other instances.
func (g *Guard) Admit(ctx context.Context, principalID, moduleID uuid.UUID, seq uint64, eventType string, clientTS int64, position float64, arrival time.Time) (*models.EngagementEvent, error) {
	if err := checkFreshness(clientTS, arrival, g.window); err != nil {
		return nil, err
	}

	g.keys.Lock(principalID, moduleID)
	defer g.keys.Unlock(principalID, moduleID)

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	last, err := g.events.LastSequenceTx(ctx, tx, principalID, moduleID)
	if err != nil {
		return nil, err
	}
	if err := checkMonotonic(last, seq); err != nil {
		return nil, err
	}

	event := &models.EngagementEvent{
		PrincipalID:      principalID,
		ModuleID:         moduleID,
		SequenceNumber:   seq,
		EventType:        eventType,
		PositionSeconds:  position,
		ServerReceivedAt: arrival.UTC(),
	}
	if err := g.events.InsertTx(ctx, tx, event); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSequenceConflict
		}
		return nil, err
	}

	entry, err := g.chain.AppendTx(ctx, tx, principalID, "watch_"+eventType, map[string]interface{}{
		"module_id":       moduleID,
		"event_type":      eventType,
		"sequence_number": seq,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	g.chain.Publish(ctx, entry)
	return event, nil
}

func checkMonotonic(last, seq uint64) error {
	if seq == 0 || seq <= last {
		return &NonMonotonicError{LastAccepted: last, MinRequired: last + 1}
	}
	return nil
}

// checkFreshness accepts events whose client timestamp is within the
// window of arrival. A zero timestamp means the client sent none; the
// sequence rule still applies.
func checkFreshness(clientTS int64, arrival time.Time, window time.Duration) error {
	if clientTS == 0 {
		return nil
	}
	age := arrival.Sub(time.Unix(clientTS, 0))
	if age > window {
		return &StaleEventError{Age: age, Window: window}
	}
	return nil
}
