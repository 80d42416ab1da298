package results

import (
	"context"
	"errors"
	"sync"

	"github.com/DoyleJ11/blockduel-backend/internal/match"
)

var ErrNoStore = errors.New("results store not configured")

type Store interface {
	Save(ctx context.Context, res match.Result) error
	// Recent returns the newest results first.
	Recent(ctx context.Context, limit int) ([]match.Result, error)
}

// MemoryStore keeps the last capacity results in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	results  []match.Result
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) Save(_ context.Context, res match.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, res)
	if m.capacity > 0 && len(m.results) > m.capacity {
		m.results = m.results[len(m.results)-m.capacity:]
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]match.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]match.Result, 0, min(limit, len(m.results)))
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}
