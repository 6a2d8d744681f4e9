package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/agentgraph/message"
)

// tombstoneNodeID is the reserved node id that marks a checkpoint as a
// tombstone. It must never collide with a real node name, so it uses a
// character forbidden in node names.
const tombstoneNodeID = "__tombstone__"

// Checkpoint is an immutable snapshot of an agent's execution position:
// the node it was about to run, the input that node was about to receive,
// the conversation history accumulated so far and optional side-state.
//
// Checkpoints are never mutated after creation. Superseding state is always
// expressed by appending a new checkpoint with a higher version.
type Checkpoint struct {
	CheckpointID   string                     `json:"checkpointId"`
	CreatedAt      time.Time                  `json:"createdAt"`
	NodeID         string                     `json:"nodeId"`
	LastInput      *TypedValue                `json:"lastInput,omitempty"`
	MessageHistory []message.Message          `json:"messageHistory"`
	Properties     map[string]json.RawMessage `json:"properties,omitempty"`
	Version        int64                      `json:"version"`
}

// NewCheckpointID generates a unique checkpoint id.
func NewCheckpointID() string {
	return fmt.Sprintf("checkpoint_%s", uuid.New().String())
}

// NewTombstone creates a tombstone checkpoint: a record meaning "this agent
// completed, there is nothing to resume". It is distinct from the absence of
// any checkpoint, and it supersedes prior checkpoints by version like any
// other append.
func NewTombstone(version int64) *Checkpoint {
	return &Checkpoint{
		CheckpointID: NewCheckpointID(),
		CreatedAt:    time.Now(),
		NodeID:       tombstoneNodeID,
		Version:      version,
	}
}

// IsTombstone reports whether the checkpoint marks completed execution.
// It is decidable from the record's own fields so that deserialized
// checkpoints classify correctly.
func (c *Checkpoint) IsTombstone() bool {
	return c.NodeID == tombstoneNodeID
}

// NewerThan reports whether c supersedes other, ordering by version first
// and falling back to creation time when versions tie.
func (c *Checkpoint) NewerThan(other *Checkpoint) bool {
	if c.Version != other.Version {
		return c.Version > other.Version
	}
	return c.CreatedAt.After(other.CreatedAt)
}

// Latest returns the checkpoint with the highest (version, createdAt) pair,
// or nil for an empty slice.
func Latest(checkpoints []*Checkpoint) *Checkpoint {
	var latest *Checkpoint
	for _, cp := range checkpoints {
		if latest == nil || cp.NewerThan(latest) {
			latest = cp
		}
	}
	return latest
}

// NextVersion returns a version strictly greater than every checkpoint in
// the slice. Versions start at 1.
func NextVersion(checkpoints []*Checkpoint) int64 {
	var max int64
	for _, cp := range checkpoints {
		if cp.Version > max {
			max = cp.Version
		}
	}
	return max + 1
}
