package store

import (
	"context"
	"fmt"
)

// Provider is the pluggable persistence abstraction for checkpoints.
//
// A provider groups checkpoints under an agent id and treats every save as
// an append: saving never overwrites a prior entry. Providers must be safe
// for concurrent use from multiple runs without external locking, both
// across agent ids and for save/list races on the same agent id.
//
// "No checkpoint" is an expected state, not a failure: GetCheckpoints
// returns an empty slice for an unknown agent and GetLatestCheckpoint
// returns (nil, nil) when nothing has been saved.
type Provider interface {
	// SaveCheckpoint appends checkpoint to the agent's log.
	SaveCheckpoint(ctx context.Context, agentID string, checkpoint *Checkpoint) error

	// GetCheckpoints returns every checkpoint stored for the agent.
	GetCheckpoints(ctx context.Context, agentID string) ([]*Checkpoint, error)

	// GetLatestCheckpoint returns the checkpoint with the highest
	// (version, createdAt) pair, or (nil, nil) if none exist.
	GetLatestCheckpoint(ctx context.Context, agentID string) (*Checkpoint, error)
}

// StorageError wraps failures of the underlying storage medium (disk,
// database, network) so callers can tell them apart from business outcomes
// such as "no checkpoint yet".
type StorageError struct {
	Op      string
	AgentID string
	Err     error
}

func (e *StorageError) Error() string {
	if e.AgentID != "" {
		return fmt.Sprintf("checkpoint storage %s failed for agent %s: %v", e.Op, e.AgentID, e.Err)
	}
	return fmt.Sprintf("checkpoint storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
