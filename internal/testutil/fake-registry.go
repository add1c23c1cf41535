package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

// FakeRegistryRepo is an in-memory RegistryRepository with the same
// transactional guarantees as the postgres adapter. Useful where mock
// expectations would obscure the state machine under test, notably the
// concurrent promotion tests.
type FakeRegistryRepo struct {
	mu       sync.Mutex
	versions map[uuid.UUID]*domain.ModelVersion
	history  map[string][]*domain.DeploymentEvent
	next     map[string]int
}

func NewFakeRegistryRepo() *FakeRegistryRepo {
	return &FakeRegistryRepo{
		versions: make(map[uuid.UUID]*domain.ModelVersion),
		history:  make(map[string][]*domain.DeploymentEvent),
		next:     make(map[string]int),
	}
}

func (f *FakeRegistryRepo) Create(_ context.Context, version *domain.ModelVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.versions[version.ID]; ok {
		return domain.ErrVersionConflict
	}
	cp := *version
	f.versions[version.ID] = &cp
	return nil
}

func (f *FakeRegistryRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[id]
	if !ok {
		return nil, domain.ErrVersionNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *FakeRegistryRepo) GetProduction(_ context.Context, modelName string) (*domain.ModelVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v := f.productionLocked(modelName); v != nil {
		cp := *v
		return &cp, nil
	}
	return nil, domain.ErrNoProductionModel
}

func (f *FakeRegistryRepo) productionLocked(modelName string) *domain.ModelVersion {
	for _, v := range f.versions {
		if v.ModelName == modelName && v.Status == domain.StatusProduction {
			return v
		}
	}
	return nil
}

func (f *FakeRegistryRepo) ListByModel(_ context.Context, modelName string, filter ports.VersionListFilter) ([]*domain.ModelVersion, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*domain.ModelVersion
	for _, v := range f.versions {
		if v.ModelName != modelName {
			continue
		}
		if filter.Status != "" && string(v.Status) != filter.Status {
			continue
		}
		cp := *v
		all = append(all, &cp)
	}
	// newest first
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].Version > all[i].Version {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	total := len(all)
	if filter.Offset < len(all) {
		all = all[filter.Offset:]
	} else {
		all = nil
	}
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (f *FakeRegistryRepo) NextVersion(_ context.Context, modelName string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next[modelName]++
	return f.next[modelName], nil
}

func (f *FakeRegistryRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.VersionStatus, deployedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[id]
	if !ok {
		return domain.ErrVersionNotFound
	}
	if v.Status != from {
		return domain.ErrRegistryConflict
	}
	v.Status = to
	if deployedAt != nil {
		t := *deployedAt
		v.DeployedAt = &t
	}
	return nil
}

func (f *FakeRegistryRepo) SwapProduction(_ context.Context, modelName string, newID uuid.UUID, at time.Time, reason string) (*domain.ModelVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	incoming, ok := f.versions[newID]
	if !ok {
		return nil, domain.ErrVersionNotFound
	}

	var previous *domain.ModelVersion
	if cur := f.productionLocked(modelName); cur != nil && cur.ID != newID {
		cur.Status = domain.StatusArchived
		cp := *cur
		previous = &cp
	}

	incoming.Status = domain.StatusProduction
	t := at
	incoming.DeployedAt = &t

	f.history[modelName] = append([]*domain.DeploymentEvent{{
		ID:         uuid.New(),
		ModelName:  modelName,
		VersionID:  newID,
		Version:    incoming.Version,
		DeployedAt: at,
		Reason:     reason,
	}}, f.history[modelName]...)
	return previous, nil
}

func (f *FakeRegistryRepo) DeploymentHistory(_ context.Context, modelName string, limit int) ([]*domain.DeploymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := f.history[modelName]
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	out := make([]*domain.DeploymentEvent, len(events))
	for i, e := range events {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}
