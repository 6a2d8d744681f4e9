package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/tool"
)

// RollbackStrategy controls what happens at run start when the agent
// already has checkpoints.
type RollbackStrategy int

const (
	// RollbackDefault resumes execution at the latest checkpoint's node
	// with its recorded input and history. A tombstone (or no checkpoint)
	// starts fresh from the entry point.
	RollbackDefault RollbackStrategy = iota

	// RollbackMessageHistoryOnly never resumes position: every run starts
	// from the entry point, but the conversation history is seeded from
	// the latest resumable checkpoint if one exists.
	RollbackMessageHistoryOnly
)

// PersistenceConfig configures the checkpoint persistence feature.
type PersistenceConfig struct {
	// Storage is the checkpoint provider. Required.
	Storage store.Provider

	// AutoPersist saves a checkpoint after every node completes, without
	// explicit CreateCheckpoint calls in node logic.
	AutoPersist bool

	// Strategy selects the resume behavior at run start.
	Strategy RollbackStrategy

	// Compensations optionally maps forward tools to compensating tools,
	// invoked in reverse chronological order when a rollback crosses past
	// their invocation.
	Compensations *tool.CompensationRegistry

	// Logger defaults to the package logger.
	Logger log.Logger
}

// Persistence coordinates checkpoint creation, storage and restoration for
// a compiled graph. It validates node-name uniqueness at run start, saves
// checkpoints (manually or automatically per node), seeds runs from prior
// checkpoints per the rollback strategy, and tombstones completed runs so
// they are not resumed again.
type Persistence struct {
	storage       store.Provider
	autoPersist   bool
	strategy      RollbackStrategy
	compensations *tool.CompensationRegistry
	logger        log.Logger

	mu        sync.Mutex
	toolMarks map[string]int // checkpoint id -> tool log length at creation
}

// NewPersistence creates the persistence feature.
func NewPersistence(cfg PersistenceConfig) (*Persistence, error) {
	if cfg.Storage == nil {
		return nil, ErrStorageRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Persistence{
		storage:       cfg.Storage,
		autoPersist:   cfg.AutoPersist,
		strategy:      cfg.Strategy,
		compensations: cfg.Compensations,
		logger:        logger,
		toolMarks:     make(map[string]int),
	}, nil
}

// Storage returns the underlying checkpoint provider.
func (p *Persistence) Storage() store.Provider {
	return p.storage
}

// CheckpointOption customizes CreateCheckpoint.
type CheckpointOption func(*store.Checkpoint)

// WithCheckpointID supplies the checkpoint id instead of generating one.
func WithCheckpointID(id string) CheckpointOption {
	return func(cp *store.Checkpoint) {
		cp.CheckpointID = id
	}
}

// WithProperties attaches arbitrary serializable side-state.
func WithProperties(properties map[string]json.RawMessage) CheckpointOption {
	return func(cp *store.Checkpoint) {
		cp.Properties = properties
	}
}

// CreateCheckpoint builds a checkpoint from the context's current message
// history plus the given node and its pending input. The checkpoint is
// returned without being persisted; call SaveCheckpoint to store it.
// Its version is chosen above every checkpoint already stored for the agent.
func (p *Persistence) CreateCheckpoint(ctx context.Context, ec *ExecutionContext, nodeID string, input any, opts ...CheckpointOption) (*store.Checkpoint, error) {
	existing, err := p.storage.GetCheckpoints(ctx, ec.AgentID())
	if err != nil {
		return nil, err
	}

	typedInput, err := store.NewTypedValue(input)
	if err != nil {
		return nil, err
	}

	cp := &store.Checkpoint{
		CheckpointID:   store.NewCheckpointID(),
		CreatedAt:      time.Now(),
		NodeID:         nodeID,
		LastInput:      typedInput,
		MessageHistory: ec.History(),
		Version:        store.NextVersion(existing),
	}
	for _, opt := range opts {
		opt(cp)
	}

	p.mu.Lock()
	p.toolMarks[cp.CheckpointID] = len(ec.toolCalls)
	p.mu.Unlock()

	return cp, nil
}

// SaveCheckpoint persists a previously created checkpoint.
func (p *Persistence) SaveCheckpoint(ctx context.Context, ec *ExecutionContext, cp *store.Checkpoint) error {
	p.logger.Debug("agent %s saving checkpoint %s at node %s (version %d)",
		ec.AgentID(), cp.CheckpointID, cp.NodeID, cp.Version)
	return p.storage.SaveCheckpoint(ctx, ec.AgentID(), cp)
}

// Checkpoint creates and immediately persists a checkpoint for the given
// node and input.
func (p *Persistence) Checkpoint(ctx context.Context, ec *ExecutionContext, nodeID string, input any, opts ...CheckpointOption) (*store.Checkpoint, error) {
	cp, err := p.CreateCheckpoint(ctx, ec, nodeID, input, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.SaveCheckpoint(ctx, ec, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// RollbackToCheckpoint restores execution to the named checkpoint of the
// context's agent. A checkpoint id that does not exist returns (nil, nil)
// and leaves the context untouched: "not found" is an expected outcome,
// not an error.
//
// Before the position moves, every forward tool call recorded after the
// checkpoint was created is compensated in reverse chronological order
// using the configured compensation registry. Tools with no registered
// compensation are left as-is. A failing compensation aborts the rollback
// and propagates, since continuing would leave external state inconsistent.
func (p *Persistence) RollbackToCheckpoint(ctx context.Context, checkpointID string, ec *ExecutionContext) (*store.Checkpoint, error) {
	checkpoints, err := p.storage.GetCheckpoints(ctx, ec.AgentID())
	if err != nil {
		return nil, err
	}

	var target *store.Checkpoint
	for _, cp := range checkpoints {
		if cp.CheckpointID == checkpointID {
			target = cp
			break
		}
	}
	if target == nil || target.IsTombstone() {
		return nil, nil
	}

	if err := p.compensate(ctx, ec, checkpointID); err != nil {
		return nil, err
	}

	input, err := target.LastInput.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint input: %w", err)
	}
	if err := ec.SetExecutionPoint(target.NodeID, target.MessageHistory, input); err != nil {
		return nil, err
	}

	p.logger.Info("agent %s rolled back to checkpoint %s at node %s",
		ec.AgentID(), checkpointID, target.NodeID)
	return target, nil
}

// compensate undoes tool side effects made after the checkpoint was
// created, newest first. Checkpoints created in other runs have no recorded
// mark; their mark defaults to zero, which compensates the whole log.
func (p *Persistence) compensate(ctx context.Context, ec *ExecutionContext, checkpointID string) error {
	if p.compensations == nil {
		return nil
	}

	p.mu.Lock()
	mark := p.toolMarks[checkpointID]
	p.mu.Unlock()
	if mark > len(ec.toolCalls) {
		mark = len(ec.toolCalls)
	}

	for i := len(ec.toolCalls) - 1; i >= mark; i-- {
		call := ec.toolCalls[i]
		compensating, ok := p.compensations.CompensationFor(call.Name)
		if !ok {
			continue
		}
		p.logger.Debug("agent %s compensating tool %s with %s",
			ec.AgentID(), call.Name, compensating.Name())
		if _, err := compensating.Execute(ctx, call.Args); err != nil {
			return fmt.Errorf("compensation %s for tool %s failed: %w",
				compensating.Name(), call.Name, err)
		}
	}

	ec.toolCalls = ec.toolCalls[:mark]
	return nil
}

// onRunStart validates the graph and applies the rollback strategy.
// Validation happens here, not at install time, so that graphs without the
// feature may carry duplicate names freely.
func (p *Persistence) onRunStart(ctx context.Context, ec *ExecutionContext) error {
	if err := ec.runnable.graph.validateUniqueNames(); err != nil {
		return err
	}

	switch p.strategy {
	case RollbackDefault:
		latest, err := p.storage.GetLatestCheckpoint(ctx, ec.AgentID())
		if err != nil {
			return err
		}
		if latest == nil || latest.IsTombstone() {
			return nil
		}

		input, err := latest.LastInput.Decode()
		if err != nil {
			return fmt.Errorf("failed to decode checkpoint input: %w", err)
		}
		if err := ec.SetExecutionPoint(latest.NodeID, latest.MessageHistory, input); err != nil {
			return err
		}
		p.logger.Info("agent %s resuming at node %s from checkpoint %s",
			ec.AgentID(), latest.NodeID, latest.CheckpointID)

	case RollbackMessageHistoryOnly:
		checkpoints, err := p.storage.GetCheckpoints(ctx, ec.AgentID())
		if err != nil {
			return err
		}
		// Tombstones carry no history; seed from the newest live checkpoint.
		var latest *store.Checkpoint
		for _, cp := range checkpoints {
			if cp.IsTombstone() {
				continue
			}
			if latest == nil || cp.NewerThan(latest) {
				latest = cp
			}
		}
		if latest != nil {
			ec.SetHistory(latest.MessageHistory)
			p.logger.Info("agent %s seeded %d messages from checkpoint %s",
				ec.AgentID(), len(latest.MessageHistory), latest.CheckpointID)
		}
	}
	return nil
}

// onNodeComplete implements automatic persistence: after a node completes
// and the position has advanced, snapshot the node about to run next with
// its pending input.
func (p *Persistence) onNodeComplete(ctx context.Context, ec *ExecutionContext) error {
	if !p.autoPersist {
		return nil
	}
	_, err := p.Checkpoint(ctx, ec, ec.CurrentNode(), ec.pending)
	return err
}

// onRunFinish tombstones the agent so a later run under RollbackDefault
// does not resume a completed graph mid-way.
func (p *Persistence) onRunFinish(ctx context.Context, ec *ExecutionContext) error {
	if p.autoPersist {
		// onNodeComplete snapshots on advance, so the last node before END
		// never gets one. Capture its completion here, full history included;
		// the tombstone written below outversions it, keeping RollbackDefault
		// from re-entering the finished node.
		if _, err := p.Checkpoint(ctx, ec, ec.CurrentNode(), ec.pending); err != nil {
			return err
		}
	}

	existing, err := p.storage.GetCheckpoints(ctx, ec.AgentID())
	if err != nil {
		return err
	}
	tombstone := store.NewTombstone(store.NextVersion(existing))
	p.logger.Debug("agent %s completed, writing tombstone (version %d)",
		ec.AgentID(), tombstone.Version)
	return p.storage.SaveCheckpoint(ctx, ec.AgentID(), tombstone)
}
