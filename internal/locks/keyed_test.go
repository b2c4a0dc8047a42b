package locks

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	principal := uuid.New()
	module := uuid.New()

	const goroutines = 50
	counter := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			m.Lock(principal, module)
			counter++
			m.Unlock(principal, module)
		}()
	}
	wg.Wait()

	if counter != goroutines {
		t.Errorf("Expected %d increments, got %d", goroutines, counter)
	}
}

func TestKeyedMutexStableShard(t *testing.T) {
	m := NewKeyedMutex()
	principal := uuid.New()
	module := uuid.New()

	first := m.shard(principal, module)
	for i := 0; i < 10; i++ {
		if got := m.shard(principal, module); got != first {
			t.Fatalf("Shard not stable: %d vs %d", first, got)
		}
	}
}
