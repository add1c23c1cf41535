package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

// retainedVersions is the minimum number of versions kept per model name.
// Pruning beyond it is an operator action, never automatic.
const retainedVersions = 10

// RegistryService drives the ModelVersion lifecycle. Mutations are
// serialized per model name so two concurrent promotions can never leave
// two versions marked production. Locks cover only in-memory transitions
// plus the single repository transaction; no lock spans unrelated I/O.
type RegistryService struct {
	repo ports.RegistryRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRegistryService(repo ports.RegistryRepository) *RegistryService {
	return &RegistryService{repo: repo, locks: make(map[string]*sync.Mutex)}
}

func (s *RegistryService) nameLock(modelName string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[modelName]
	if !ok {
		l = &sync.Mutex{}
		s.locks[modelName] = l
	}
	return l
}

// Register stores a new trained model version with status registered and
// the next monotonic version number for its model name.
func (s *RegistryService) Register(ctx context.Context, modelName, artifactRef string, metrics domain.Metrics, datasetVersion string, hyperparams map[string]string) (*domain.ModelVersion, error) {
	if modelName == "" {
		return nil, domain.ErrInvalidModelName
	}
	if hyperparams == nil {
		hyperparams = map[string]string{}
	}

	lock := s.nameLock(modelName)
	lock.Lock()
	defer lock.Unlock()

	number, err := s.repo.NextVersion(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("next version: %w", err)
	}

	version := &domain.ModelVersion{
		ID:             uuid.New(),
		ModelName:      modelName,
		Version:        number,
		Metrics:        metrics,
		Hyperparams:    hyperparams,
		DatasetVersion: datasetVersion,
		ArtifactRef:    artifactRef,
		Status:         domain.StatusRegistered,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, version); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"model":   modelName,
		"version": number,
		"id":      version.ID,
	}).Info("model version registered")
	return version, nil
}

// Promote moves a version forward through registered -> staging ->
// production. Promotion to production atomically archives the current
// production version of the same model name and records a deployment
// event.
func (s *RegistryService) Promote(ctx context.Context, versionID uuid.UUID, target domain.VersionStatus) (*domain.ModelVersion, error) {
	if !target.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	version, err := s.repo.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	lock := s.nameLock(version.ModelName)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: another promotion may have just moved it.
	version, err = s.repo.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if !version.Status.CanTransition(target) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, version.Status, target)
	}

	now := time.Now().UTC()
	if target == domain.StatusProduction {
		previous, err := s.repo.SwapProduction(ctx, version.ModelName, versionID, now, "promotion")
		if err != nil {
			return nil, err
		}
		if previous != nil {
			log.WithFields(log.Fields{
				"model":    version.ModelName,
				"archived": previous.Version,
				"promoted": version.Version,
			}).Info("production version swapped")
		}
		version.Status = domain.StatusProduction
		version.DeployedAt = &now
		return version, nil
	}

	if err := s.repo.UpdateStatus(ctx, versionID, version.Status, target, nil); err != nil {
		return nil, err
	}
	version.Status = target
	return version, nil
}

// Rollback archives the current production version and restores the
// immediately prior production version, the only transition that moves a
// version out of archived, bypassing staging.
func (s *RegistryService) Rollback(ctx context.Context, modelName string) (*domain.ModelVersion, error) {
	lock := s.nameLock(modelName)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.repo.GetProduction(ctx, modelName)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.DeploymentHistory(ctx, modelName, retainedVersions)
	if err != nil {
		return nil, fmt.Errorf("deployment history: %w", err)
	}

	// history is newest-first; entry 0 is the current production
	// deployment, entry 1 the one to restore.
	var previousID uuid.UUID
	for _, event := range history {
		if event.VersionID != current.ID {
			previousID = event.VersionID
			break
		}
	}
	if previousID == uuid.Nil {
		return nil, domain.ErrNoPreviousVersion
	}

	now := time.Now().UTC()
	if _, err := s.repo.SwapProduction(ctx, modelName, previousID, now, "rollback"); err != nil {
		return nil, err
	}

	restored, err := s.repo.GetByID(ctx, previousID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"model":    modelName,
		"archived": current.Version,
		"restored": restored.Version,
	}).Warn("production rolled back")
	return restored, nil
}

// Archive moves a non-production version directly to archived, used when a
// candidate fails the promotion rule but must stay for audit.
func (s *RegistryService) Archive(ctx context.Context, versionID uuid.UUID) error {
	version, err := s.repo.GetByID(ctx, versionID)
	if err != nil {
		return err
	}
	if version.Status == domain.StatusArchived {
		return nil
	}
	if version.Status == domain.StatusProduction {
		return fmt.Errorf("%w: archive production via promotion or rollback", domain.ErrIllegalTransition)
	}
	return s.repo.UpdateStatus(ctx, versionID, version.Status, domain.StatusArchived, nil)
}

// Compare produces a side-by-side metric diff of the given versions.
func (s *RegistryService) Compare(ctx context.Context, versionIDs []uuid.UUID) (*domain.VersionDiff, error) {
	versions := make([]*domain.ModelVersion, 0, len(versionIDs))
	for _, id := range versionIDs {
		v, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return domain.CompareVersions(versions), nil
}

// Get returns one version by id.
func (s *RegistryService) Get(ctx context.Context, versionID uuid.UUID) (*domain.ModelVersion, error) {
	return s.repo.GetByID(ctx, versionID)
}

// Production returns the current production version for a model name.
func (s *RegistryService) Production(ctx context.Context, modelName string) (*domain.ModelVersion, error) {
	return s.repo.GetProduction(ctx, modelName)
}

// List returns versions for a model name, newest first.
func (s *RegistryService) List(ctx context.Context, modelName string, filter ports.VersionListFilter) ([]*domain.ModelVersion, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.repo.ListByModel(ctx, modelName, filter)
}
