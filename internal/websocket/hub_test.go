package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"learntrust-backend/internal/models"
)

func TestMonitorEnvelopeWrapsEntryOnce(t *testing.T) {
	entry := models.AuditEntry{
		Index:       4,
		PrincipalID: uuid.New(),
		EventType:   "watch_heartbeat",
		Metadata:    json.RawMessage(`{"sequence_number":9}`),
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		PrevHash:    models.GenesisHash,
		CurrentHash: "ab",
	}
	published, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}

	data, err := monitorEnvelope(published)
	if err != nil {
		t.Fatalf("envelope failed: %v", err)
	}

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if msg.Type != "audit_entry" {
		t.Errorf("expected type audit_entry, got %q", msg.Type)
	}

	// The payload must be the entry itself, not a nested envelope.
	var got models.AuditEntry
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("payload is not a bare entry: %v", err)
	}
	if got.Index != entry.Index || got.PrincipalID != entry.PrincipalID || got.CurrentHash != entry.CurrentHash {
		t.Errorf("payload entry mismatch: got %+v, want %+v", got, entry)
	}

	var nested struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg.Payload, &nested); err == nil && nested.Type != "" {
		t.Errorf("payload carries a second envelope: %s", msg.Payload)
	}
}
