package locks

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const defaultShards = 64

// KeyedMutex serializes work per (principal, module) pair by hashing
// the pair onto a fixed set of mutex shards. Two callers with the same
// key always land on the same shard; distinct keys rarely contend.
type KeyedMutex struct {
	shards []sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{shards: make([]sync.Mutex, defaultShards)}
}

func (m *KeyedMutex) Lock(principalID, moduleID uuid.UUID) {
	m.shards[m.shard(principalID, moduleID)].Lock()
}

func (m *KeyedMutex) Unlock(principalID, moduleID uuid.UUID) {
	m.shards[m.shard(principalID, moduleID)].Unlock()
}

func (m *KeyedMutex) shard(principalID, moduleID uuid.UUID) int {
	h := fnv.New32a()
	h.Write(principalID[:])
	h.Write(moduleID[:])
	return int(h.Sum32() % uint32(len(m.shards)))
}
