// Package ledger owns the append-only, hash-linked audit chain. One
// global chain spans the whole deployment; each entry's hash covers
// the previous entry's hash, so any retroactive edit is detectable.
package ledger

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"learntrust-backend/internal/models"
	"learntrust-backend/internal/repository"
	"learntrust-backend/internal/token"
)

// PubSubChannel carries accepted entries to the monitor hub.
const PubSubChannel = "audit:entries"

type Ledger struct {
	repo   *repository.AuditRepo
	tokens *token.Service
	pubsub *redis.Client

	// Local appenders queue here before taking the head row lock.
	mu sync.Mutex
}

func New(repo *repository.AuditRepo, tokens *token.Service, pubsub *redis.Client) *Ledger {
	return &Ledger{repo: repo, tokens: tokens, pubsub: pubsub}
}

// Append writes one entry in its own transaction and advances the
// head. It is the sole mutating entry point of the chain.
func (l *Ledger) Append(ctx context.Context, principalID uuid.UUID, eventType string, metadata interface{}) (models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.repo.Pool().Begin(ctx)
	if err != nil {
		return models.AuditEntry{}, err
	}
	defer tx.Rollback(ctx)

	entry, err := l.AppendTx(ctx, tx, principalID, eventType, metadata)
	if err != nil {
		return models.AuditEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.AuditEntry{}, err
	}

	l.Publish(ctx, entry)
	return entry, nil
}

// AppendTx appends inside a caller-owned transaction so an entry can
// commit atomically with the state change it records. The head row
// lock serializes appenders; an aborted transaction leaves no
// half-committed entry behind.
func (l *Ledger) AppendTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, eventType string, metadata interface{}) (models.AuditEntry, error) {
	headIndex, headHash, err := l.repo.HeadForUpdateTx(ctx, tx)
	if err != nil {
		return models.AuditEntry{}, err
	}

	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return models.AuditEntry{}, err
	}
	if metadata == nil {
		metaBytes = []byte("{}")
	}

	ts := time.Now().UTC().Truncate(time.Second)
	entry := models.AuditEntry{
		Index:       headIndex + 1,
		PrincipalID: principalID,
		EventType:   eventType,
		Metadata:    metaBytes,
		Timestamp:   ts,
		PrevHash:    headHash,
		CurrentHash: l.EntryHash(principalID, eventType, ts, headHash),
	}

	if err := l.repo.InsertEntryTx(ctx, tx, &entry); err != nil {
		return models.AuditEntry{}, err
	}
	if err := l.repo.AdvanceHeadTx(ctx, tx, entry.Index, entry.CurrentHash); err != nil {
		return models.AuditEntry{}, err
	}
	return entry, nil
}

// EntryHash computes Hash(principal, event_type, unix(ts), prev_hash,
// secret) via the shared keyed digest.
func (l *Ledger) EntryHash(principalID uuid.UUID, eventType string, ts time.Time, prevHash string) string {
	return l.tokens.Digest(principalID.String(), eventType, token.DigestTime(ts), prevHash)
}

// Publish pushes an accepted entry to the monitor channel as bare
// JSON; the hub wraps it in its message envelope. Best effort: a
// broken pub/sub connection never fails an append.
func (l *Ledger) Publish(ctx context.Context, entry models.AuditEntry) {
	if l.pubsub == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := l.pubsub.Publish(ctx, PubSubChannel, string(data)).Err(); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

// HeadIndex returns the index of the newest entry, -1 when empty.
func (l *Ledger) HeadIndex(ctx context.Context) (int64, error) {
	return l.repo.HeadIndex(ctx)
}
