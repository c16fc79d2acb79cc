package reporting

import (
	"context"
	"sync"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/calls"
	"github.com/Hons90/CRM/internal/pools"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
type MemoryRepo struct {
	mu sync.Mutex

	Statuses []string
	Leaders  []calls.UserCallCount
	Pools    map[int64]pools.Progress
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Pools: map[int64]pools.Progress{}} }

func (r *MemoryRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int)
	for _, s := range r.Statuses {
		out[s]++
	}
	return out, nil
}

// CallsPerUser returns Leaders as given, truncated to limit.
func (r *MemoryRepo) CallsPerUser(ctx context.Context, limit int) ([]calls.UserCallCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.Leaders) {
		limit = len(r.Leaders)
	}
	return append([]calls.UserCallCount(nil), r.Leaders[:max(limit, 0)]...), nil
}

func (r *MemoryRepo) Progress(ctx context.Context, poolID int64) (pools.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Pools[poolID]
	if !ok {
		return pools.Progress{}, apperr.NotFound("dialer pool", poolID)
	}
	return p, nil
}
