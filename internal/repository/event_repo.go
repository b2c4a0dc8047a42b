package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"learntrust-backend/internal/models"
)

// EventRepo persists engagement events. The table is append-only:
// there is no update or delete method, by design of the store API.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// LastSequenceTx returns the highest accepted sequence number for the
// pair, or 0 when no event exists yet. Runs inside the admission
// transaction so the check-then-act span stays consistent.
func (r *EventRepo) LastSequenceTx(ctx context.Context, tx pgx.Tx, principalID, moduleID uuid.UUID) (uint64, error) {
	var last uint64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0)
		FROM engagement_events
		WHERE principal_id = $1 AND module_id = $2
	`, principalID, moduleID).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last, nil
}

func (r *EventRepo) InsertTx(ctx context.Context, tx pgx.Tx, e *models.EngagementEvent) error {
	e.ID = uuid.New()
	return tx.QueryRow(ctx, `
		INSERT INTO engagement_events
			(id, principal_id, module_id, sequence_number, event_type, position_seconds, server_received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING server_received_at
	`, e.ID, e.PrincipalID, e.ModuleID, e.SequenceNumber, e.EventType, e.PositionSeconds, e.ServerReceivedAt,
	).Scan(&e.ServerReceivedAt)
}

// HeartbeatPositions returns the playback positions of all heartbeat
// events for a module, for heatmap bucketing.
func (r *EventRepo) HeartbeatPositions(ctx context.Context, moduleID uuid.UUID) ([]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT position_seconds
		FROM engagement_events
		WHERE module_id = $1 AND event_type = $2
		ORDER BY server_received_at
	`, moduleID, models.EventHeartbeat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (r *EventRepo) ListByModule(ctx context.Context, principalID, moduleID uuid.UUID, limit int) ([]*models.EngagementEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, principal_id, module_id, sequence_number, event_type, position_seconds, server_received_at
		FROM engagement_events
		WHERE principal_id = $1 AND module_id = $2
		ORDER BY sequence_number DESC
		LIMIT $3
	`, principalID, moduleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.EngagementEvent
	for rows.Next() {
		e := &models.EngagementEvent{}
		err := rows.Scan(&e.ID, &e.PrincipalID, &e.ModuleID, &e.SequenceNumber, &e.EventType, &e.PositionSeconds, &e.ServerReceivedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
