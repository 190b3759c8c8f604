package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-timer/internal/domain"
)

const keyPrefix = "easytimer:status:"

// Store implements host.ScheduleMonitor with one Redis hash per function.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) GetStatus(ctx context.Context, name string) (*domain.ScheduleStatus, error) {
	fields, err := s.client.HGetAll(ctx, buildKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	status, err := decodeStatus(fields)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *Store) UpdateStatus(ctx context.Context, name string, status domain.ScheduleStatus) error {
	key := buildKey(name)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encodeStatus(status))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func buildKey(name string) string {
	return keyPrefix + name
}

func encodeStatus(status domain.ScheduleStatus) map[string]any {
	fields := map[string]any{
		"next":         status.Next.UTC().Format(time.RFC3339Nano),
		"last_updated": status.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
	if !status.Last.IsZero() {
		fields["last"] = status.Last.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

func decodeStatus(fields map[string]string) (domain.ScheduleStatus, error) {
	var status domain.ScheduleStatus
	var err error

	if v, ok := fields["last"]; ok && v != "" {
		if status.Last, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return domain.ScheduleStatus{}, fmt.Errorf("decode last: %w", err)
		}
	}
	if status.Next, err = time.Parse(time.RFC3339Nano, fields["next"]); err != nil {
		return domain.ScheduleStatus{}, fmt.Errorf("decode next: %w", err)
	}
	if status.LastUpdated, err = time.Parse(time.RFC3339Nano, fields["last_updated"]); err != nil {
		return domain.ScheduleStatus{}, fmt.Errorf("decode last_updated: %w", err)
	}
	return status, nil
}
