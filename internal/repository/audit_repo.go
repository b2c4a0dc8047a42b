package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"learntrust-backend/internal/models"
)

// AuditRepo is the storage face of the hash chain. It exposes no
// update or delete for entries; the only generating authority is the
// ledger's append path. The single head row is the only mutable state.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Pool() *pgxpool.Pool {
	return r.pool
}

// HeadForUpdateTx locks the chain head row for the duration of the
// transaction. Concurrent appenders queue here, which keeps the chain
// linear even across processes.
func (r *AuditRepo) HeadForUpdateTx(ctx context.Context, tx pgx.Tx) (index int64, hash string, err error) {
	err = tx.QueryRow(ctx, `
		SELECT head_index, head_hash FROM audit_chain_head WHERE id = 1 FOR UPDATE
	`).Scan(&index, &hash)
	return index, hash, err
}

func (r *AuditRepo) InsertEntryTx(ctx context.Context, tx pgx.Tx, e *models.AuditEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_entries
			(index, principal_id, event_type, metadata, ts, prev_hash, current_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.Index, e.PrincipalID, e.EventType, e.Metadata, e.Timestamp, e.PrevHash, e.CurrentHash)
	return err
}

func (r *AuditRepo) AdvanceHeadTx(ctx context.Context, tx pgx.Tx, index int64, hash string) error {
	_, err := tx.Exec(ctx, `
		UPDATE audit_chain_head SET head_index = $1, head_hash = $2 WHERE id = 1
	`, index, hash)
	return err
}

func (r *AuditRepo) HeadIndex(ctx context.Context) (int64, error) {
	var index int64
	err := r.pool.QueryRow(ctx, `SELECT head_index FROM audit_chain_head WHERE id = 1`).Scan(&index)
	return index, err
}

func (r *AuditRepo) Range(ctx context.Context, from, to int64) ([]models.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT index, principal_id, event_type, metadata, ts, prev_hash, current_hash
		FROM audit_entries
		WHERE index >= $1 AND index <= $2
		ORDER BY index
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		err := rows.Scan(&e.Index, &e.PrincipalID, &e.EventType, &e.Metadata, &e.Timestamp, &e.PrevHash, &e.CurrentHash)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EntryHash returns the stored hash at one index, for linking a
// partial verification range to its predecessor.
func (r *AuditRepo) EntryHash(ctx context.Context, index int64) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT current_hash FROM audit_entries WHERE index = $1`, index).Scan(&hash)
	return hash, err
}
