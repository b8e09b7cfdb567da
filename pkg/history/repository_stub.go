package history

import (
	"context"
	"sort"
	"sync"
)

type RepositoryStub struct {
	mu   sync.Mutex
	runs []Run
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return fn(r)
}

func (r *RepositoryStub) StoreRun(ctx context.Context, run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.Failures = append([]Failure(nil), run.Failures...)
	r.runs = append(r.runs, run)
	return nil
}

func (r *RepositoryStub) GetLastRuns(ctx context.Context, limit int) ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := append([]Run(nil), r.runs...)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit >= 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
