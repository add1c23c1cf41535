package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ml-governance-service/internal/core/domain"
)

// FakeRetrainingRepo is an in-memory RetrainingRepository. Jobs and
// decisions are stateful so the governance workflow tests can observe
// checkpoints as the cycle advances.
type FakeRetrainingRepo struct {
	mu        sync.Mutex
	decisions []*domain.RetrainingDecision
	jobs      []*domain.RetrainingJob
}

func NewFakeRetrainingRepo() *FakeRetrainingRepo {
	return &FakeRetrainingRepo{}
}

func (f *FakeRetrainingRepo) SaveDecision(_ context.Context, decision *domain.RetrainingDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *decision
	f.decisions = append([]*domain.RetrainingDecision{&cp}, f.decisions...)
	return nil
}

func (f *FakeRetrainingRepo) UpdateDecisionOutcome(_ context.Context, id uuid.UUID, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.decisions {
		if d.ID == id {
			d.Outcome = outcome
			return nil
		}
	}
	return domain.ErrDecisionNotFound
}

func (f *FakeRetrainingRepo) ListDecisions(_ context.Context, modelName string, limit int) ([]*domain.RetrainingDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.RetrainingDecision
	for _, d := range f.decisions {
		if d.ModelName != modelName {
			continue
		}
		cp := *d
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *FakeRetrainingRepo) SaveJob(_ context.Context, job *domain.RetrainingJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs = append([]*domain.RetrainingJob{&cp}, f.jobs...)
	return nil
}

func (f *FakeRetrainingRepo) UpdateJob(_ context.Context, job *domain.RetrainingJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, j := range f.jobs {
		if j.ID == job.ID {
			cp := *job
			f.jobs[i] = &cp
			return nil
		}
	}
	return domain.ErrJobNotFound
}

func (f *FakeRetrainingRepo) GetActiveJob(_ context.Context, modelName string) (*domain.RetrainingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ModelName == modelName && j.Stage.Active() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (f *FakeRetrainingRepo) ListJobs(_ context.Context, modelName string, limit int) ([]*domain.RetrainingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.RetrainingJob
	for _, j := range f.jobs {
		if j.ModelName != modelName {
			continue
		}
		cp := *j
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// FakeRecordCounter is an in-memory RecordCounter.
type FakeRecordCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewFakeRecordCounter() *FakeRecordCounter {
	return &FakeRecordCounter{counts: make(map[string]int64)}
}

func (f *FakeRecordCounter) Add(_ context.Context, key string, n int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key] += n
	return f.counts[key], nil
}

func (f *FakeRecordCounter) Get(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key], nil
}

func (f *FakeRecordCounter) Reset(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, key)
	return nil
}
