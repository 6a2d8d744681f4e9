// Package redis provides a checkpoint provider backed by Redis. Checkpoints
// are stored as individual keys and indexed per agent in a sorted set scored
// by version, which keeps "latest" retrieval a single range query.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/agentgraph/store"
)

// RedisProvider implements store.Provider using Redis.
type RedisProvider struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.Provider = (*RedisProvider)(nil)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "agentgraph:"
	TTL      time.Duration // Expiration for checkpoints, default 0 (no expiration)
}

// NewRedisProvider creates a new Redis checkpoint provider.
func NewRedisProvider(opts RedisOptions) *RedisProvider {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "agentgraph:"
	}

	return &RedisProvider{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

// NewRedisProviderWithClient creates a provider from an existing client.
func NewRedisProviderWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisProvider {
	if prefix == "" {
		prefix = "agentgraph:"
	}
	return &RedisProvider{client: client, prefix: prefix, ttl: ttl}
}

func (p *RedisProvider) checkpointKey(id string) string {
	return fmt.Sprintf("%scheckpoint:%s", p.prefix, id)
}

func (p *RedisProvider) agentKey(agentID string) string {
	return fmt.Sprintf("%sagent:%s:checkpoints", p.prefix, agentID)
}

// SaveCheckpoint appends the checkpoint and indexes it under the agent id.
func (p *RedisProvider) SaveCheckpoint(ctx context.Context, agentID string, checkpoint *store.Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	key := p.checkpointKey(checkpoint.CheckpointID)
	pipe := p.client.TxPipeline()

	pipe.Set(ctx, key, data, p.ttl)
	pipe.ZAdd(ctx, p.agentKey(agentID), redis.Z{
		Score:  float64(checkpoint.Version),
		Member: checkpoint.CheckpointID,
	})
	if p.ttl > 0 {
		pipe.Expire(ctx, p.agentKey(agentID), p.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return &store.StorageError{Op: "save", AgentID: agentID, Err: err}
	}
	return nil
}

// GetCheckpoints returns every checkpoint stored for the agent, in version
// order.
func (p *RedisProvider) GetCheckpoints(ctx context.Context, agentID string) ([]*store.Checkpoint, error) {
	ids, err := p.client.ZRange(ctx, p.agentKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
	}
	if len(ids) == 0 {
		return []*store.Checkpoint{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, p.checkpointKey(id))
	}

	// MGet returns nil for expired members; those are skipped.
	results, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
	}

	checkpoints := make([]*store.Checkpoint, 0, len(results))
	for _, result := range results {
		strData, ok := result.(string)
		if !ok {
			continue
		}

		var cp store.Checkpoint
		if err := json.Unmarshal([]byte(strData), &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, &cp)
	}
	return checkpoints, nil
}

// GetLatestCheckpoint returns the newest checkpoint by (version, createdAt),
// or (nil, nil) when the agent has none.
func (p *RedisProvider) GetLatestCheckpoint(ctx context.Context, agentID string) (*store.Checkpoint, error) {
	checkpoints, err := p.GetCheckpoints(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return store.Latest(checkpoints), nil
}

// Close closes the underlying Redis client.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
