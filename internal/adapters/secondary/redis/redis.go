package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	ports "ml-governance-service/internal/core/ports/output"
)

const (
	counterKeyPrefix    = "governance:records:"
	quarantineKeyPrefix = "governance:quarantine:"
)

// recordCounter accumulates per-model ingestion counts in redis so the
// volume trigger survives restarts and is shared across replicas.
type recordCounter struct {
	client *redis.Client
}

func NewRecordCounter(client *redis.Client) ports.RecordCounter {
	return &recordCounter{client: client}
}

func (c *recordCounter) Add(ctx context.Context, modelName string, n int64) (int64, error) {
	total, err := c.client.IncrBy(ctx, counterKeyPrefix+modelName, n).Result()
	if err != nil {
		return 0, fmt.Errorf("increment record counter: %w", err)
	}
	return total, nil
}

func (c *recordCounter) Get(ctx context.Context, modelName string) (int64, error) {
	val, err := c.client.Get(ctx, counterKeyPrefix+modelName).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read record counter: %w", err)
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse record counter: %w", err)
	}
	return count, nil
}

func (c *recordCounter) Reset(ctx context.Context, modelName string) error {
	if err := c.client.Del(ctx, counterKeyPrefix+modelName).Err(); err != nil {
		return fmt.Errorf("reset record counter: %w", err)
	}
	return nil
}

// quarantineStore keeps quarantine flags in redis without expiry; a flag
// stays until an operator clears it.
type quarantineStore struct {
	client *redis.Client
}

func NewQuarantineStore(client *redis.Client) ports.QuarantineStore {
	return &quarantineStore{client: client}
}

func (s *quarantineStore) Quarantine(ctx context.Context, datasetID uuid.UUID, reason string) error {
	if err := s.client.Set(ctx, quarantineKeyPrefix+datasetID.String(), reason, 0).Err(); err != nil {
		return fmt.Errorf("set quarantine flag: %w", err)
	}
	return nil
}

func (s *quarantineStore) IsQuarantined(ctx context.Context, datasetID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, quarantineKeyPrefix+datasetID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check quarantine flag: %w", err)
	}
	return n > 0, nil
}

func (s *quarantineStore) Clear(ctx context.Context, datasetID uuid.UUID) error {
	if err := s.client.Del(ctx, quarantineKeyPrefix+datasetID.String()).Err(); err != nil {
		return fmt.Errorf("clear quarantine flag: %w", err)
	}
	return nil
}
