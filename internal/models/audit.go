package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenesisHash stands in for the predecessor digest of the chain's
// first entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// AuditEntry is one link of the append-only hash chain. CurrentHash
// covers principal, event type, timestamp (unix seconds), PrevHash and
// the server secret; Metadata is stored alongside but not hashed.
// Once persisted, every field is frozen.
type AuditEntry struct {
	Index       int64           `json:"index"`
	PrincipalID uuid.UUID       `json:"principal_id"`
	EventType   string          `json:"event_type"`
	Metadata    json.RawMessage `json:"metadata"`
	Timestamp   time.Time       `json:"timestamp"`
	PrevHash    string          `json:"prev_hash"`
	CurrentHash string          `json:"current_hash"`
}

type VerifyReport struct {
	Intact    bool   `json:"intact"`
	Checked   int64  `json:"checked"`
	FromIndex int64  `json:"from_index"`
	ToIndex   int64  `json:"to_index"`
	BrokenAt  *int64 `json:"broken_at,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
