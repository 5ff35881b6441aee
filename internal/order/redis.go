package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores order aggregates as JSON values under
// "orders:<id>". It backs local/dev deployments where orders should survive
// an orchestrator restart without running a full database.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(addr string) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// NewRedisRepositoryWithClient injects a preconfigured client (tests).
func NewRedisRepositoryWithClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

var _ Repository = (*RedisRepository)(nil)

func key(id string) string {
	return "orders:" + id
}

func (r *RedisRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	raw, err := r.client.Get(ctx, key(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get order %q: %w", id, err)
	}

	var o Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, fmt.Errorf("redis: unmarshal order %q: %w", id, err)
	}
	return &o, nil
}

func (r *RedisRepository) Save(ctx context.Context, o *Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("redis: marshal order %q: %w", o.ID, err)
	}
	if err := r.client.Set(ctx, key(o.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis: save order %q: %w", o.ID, err)
	}
	return nil
}

func (r *RedisRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	if err := r.Save(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Close releases the underlying connection pool.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
