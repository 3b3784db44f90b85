package session

import (
	"context"
	"sync"
)

const (
	KeySettings = "settings"
	KeyRecords  = "records"
)

// Store is the durable key/value boundary the engine loads from at creation
// and saves to on every mutation.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
}

// Journal receives every phase that ends.
type Journal interface {
	RecordPhase(ctx context.Context, run PhaseRun) error
}

// Recorder receives engine activity for metrics.
type Recorder interface {
	RecordTick()
	RecordPhaseCompleted(phase Phase)
	RecordPersistFailure(key string)
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

type nopRecorder struct{}

func (nopRecorder) RecordTick() {}
func (nopRecorder) RecordPhaseCompleted(Phase) {}
func (nopRecorder) RecordPersistFailure(string) {}
