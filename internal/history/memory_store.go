package history

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/petrijr/conveyor/pkg/api"
)

// MemoryStore is a simple, goroutine-safe RunStore backed by a map.
// It is the default store for engines constructed without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[int64]*api.RunRecord
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[int64]*api.RunRecord),
	}
}

// Ensure MemoryStore implements RunStore.
var _ RunStore = (*MemoryStore)(nil)

func (s *MemoryStore) SaveRun(rec *api.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[rec.Run]; ok {
		return fmt.Errorf("run already recorded: %d", rec.Run)
	}

	cp := *rec
	s.runs[rec.Run] = &cp
	return nil
}

func (s *MemoryStore) GetRun(run int64) (*api.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[run]
	if !ok {
		return nil, ErrRunNotFound
	}

	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ListRuns(opts api.RunListOptions) ([]*api.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*api.RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}

	slices.SortFunc(out, func(a, b *api.RunRecord) int {
		return cmp.Compare(a.Run, b.Run)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[len(out)-opts.Limit:]
	}
	return out, nil
}
