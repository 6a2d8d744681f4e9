// Package memory provides a process-lifetime checkpoint provider backed by
// a map. Nothing survives a restart; it is the default for tests and for
// agents that only need rollback within a single process.
package memory

import (
	"context"
	"sync"

	"github.com/smallnest/agentgraph/store"
)

// MemoryProvider implements store.Provider with an in-memory append-only
// log per agent id.
type MemoryProvider struct {
	mu          sync.RWMutex
	checkpoints map[string][]*store.Checkpoint
}

var _ store.Provider = (*MemoryProvider)(nil)

// NewMemoryProvider creates a new in-memory checkpoint provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		checkpoints: make(map[string][]*store.Checkpoint),
	}
}

// SaveCheckpoint appends the checkpoint to the agent's log.
func (p *MemoryProvider) SaveCheckpoint(ctx context.Context, agentID string, checkpoint *store.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cp := *checkpoint

	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkpoints[agentID] = append(p.checkpoints[agentID], &cp)
	return nil
}

// GetCheckpoints returns all checkpoints for the agent in insertion order.
func (p *MemoryProvider) GetCheckpoints(ctx context.Context, agentID string) ([]*store.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	stored := p.checkpoints[agentID]
	out := make([]*store.Checkpoint, len(stored))
	copy(out, stored)
	return out, nil
}

// GetLatestCheckpoint returns the newest checkpoint by (version, createdAt),
// or (nil, nil) when the agent has none.
func (p *MemoryProvider) GetLatestCheckpoint(ctx context.Context, agentID string) (*store.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return store.Latest(p.checkpoints[agentID]), nil
}
