package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smallnest/agentgraph/message"
	"github.com/smallnest/agentgraph/store"
)

func newTestProvider(t *testing.T) *SqliteProvider {
	t.Helper()

	p, err := NewSqliteProvider(SqliteOptions{
		Path: filepath.Join(t.TempDir(), "checkpoints.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func newCheckpoint(version int64) *store.Checkpoint {
	return &store.Checkpoint{
		CheckpointID: store.NewCheckpointID(),
		CreatedAt:    time.Now().UTC(),
		NodeID:       "Node1",
		MessageHistory: []message.Message{
			message.User("User message"),
		},
		Version: version,
	}
}

func TestSqliteProvider_SaveAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestProvider(t)

	first := newCheckpoint(1)
	second := newCheckpoint(2)
	if err := p.SaveCheckpoint(ctx, "agent-1", second); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
	if err := p.SaveCheckpoint(ctx, "agent-1", first); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	checkpoints, err := p.GetCheckpoints(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get checkpoints: %v", err)
	}
	if len(checkpoints) != 2 {
		t.Fatalf("Expected 2 checkpoints, got %d", len(checkpoints))
	}
	if checkpoints[0].Version != 1 || checkpoints[1].Version != 2 {
		t.Errorf("Expected version order [1 2], got [%d %d]",
			checkpoints[0].Version, checkpoints[1].Version)
	}
	if checkpoints[0].MessageHistory[0].Content != "User message" {
		t.Errorf("History did not round trip: %+v", checkpoints[0].MessageHistory)
	}
}

func TestSqliteProvider_LatestWinsByVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestProvider(t)

	if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(1)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
	if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(0)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	latest, err := p.GetLatestCheckpoint(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest == nil || latest.Version != 1 {
		t.Errorf("Expected version 1, got %+v", latest)
	}
}

func TestSqliteProvider_UnknownAgent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestProvider(t)

	checkpoints, err := p.GetCheckpoints(ctx, "nobody")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if checkpoints == nil || len(checkpoints) != 0 {
		t.Errorf("Expected empty slice, got %v", checkpoints)
	}

	latest, err := p.GetLatestCheckpoint(ctx, "nobody")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil latest for unknown agent, got %+v", latest)
	}
}

func TestSqliteProvider_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	p, err := NewSqliteProvider(SqliteOptions{Path: path})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	saved := newCheckpoint(1)
	if err := p.SaveCheckpoint(ctx, "agent-1", saved); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Failed to close provider: %v", err)
	}

	reopened, err := NewSqliteProvider(SqliteOptions{Path: path})
	if err != nil {
		t.Fatalf("Failed to reopen provider: %v", err)
	}
	defer reopened.Close()

	latest, err := reopened.GetLatestCheckpoint(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest == nil || latest.CheckpointID != saved.CheckpointID {
		t.Errorf("Expected checkpoint %s after reopen, got %+v", saved.CheckpointID, latest)
	}
}

func TestSqliteProvider_AgentsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestProvider(t)

	if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(1)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
	if err := p.SaveCheckpoint(ctx, "agent-2", newCheckpoint(1)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	checkpoints, err := p.GetCheckpoints(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get checkpoints: %v", err)
	}
	if len(checkpoints) != 1 {
		t.Errorf("Expected 1 checkpoint for agent-1, got %d", len(checkpoints))
	}
}
