package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smallnest/agentgraph/store"
)

func newCheckpoint(version int64) *store.Checkpoint {
	return &store.Checkpoint{
		CheckpointID: store.NewCheckpointID(),
		CreatedAt:    time.Now(),
		NodeID:       "Node1",
		Version:      version,
	}
}

func TestMemoryProvider_LatestWinsByVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ascending save order", func(t *testing.T) {
		t.Parallel()

		p := NewMemoryProvider()
		if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(0)); err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}
		if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(1)); err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}

		latest, err := p.GetLatestCheckpoint(ctx, "agent-1")
		if err != nil {
			t.Fatalf("Failed to get latest: %v", err)
		}
		if latest == nil || latest.Version != 1 {
			t.Errorf("Expected version 1, got %+v", latest)
		}
	})

	t.Run("descending save order", func(t *testing.T) {
		t.Parallel()

		p := NewMemoryProvider()
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
	})
}

func TestMemoryProvider_AppendOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewMemoryProvider()

	if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(1)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
	if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(2)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	checkpoints, err := p.GetCheckpoints(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get checkpoints: %v", err)
	}
	if len(checkpoints) != 2 {
		t.Errorf("Expected 2 checkpoints, got %d", len(checkpoints))
	}
}

func TestMemoryProvider_UnknownAgent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewMemoryProvider()

	checkpoints, err := p.GetCheckpoints(ctx, "nobody")
	if err != nil {
		t.Fatalf("Failed to get checkpoints: %v", err)
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

func TestMemoryProvider_SavedCheckpointIsCopied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewMemoryProvider()

	cp := newCheckpoint(1)
	if err := p.SaveCheckpoint(ctx, "agent-1", cp); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	// Mutating the caller's value must not affect the stored record.
	cp.NodeID = "mutated"

	stored, err := p.GetLatestCheckpoint(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if stored.NodeID != "Node1" {
		t.Errorf("Stored checkpoint was mutated: %s", stored.NodeID)
	}
}

func TestMemoryProvider_ConcurrentSaves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewMemoryProvider()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agentID := fmt.Sprintf("agent-%d", i%2)
			if err := p.SaveCheckpoint(ctx, agentID, newCheckpoint(int64(i))); err != nil {
				t.Errorf("Failed to save checkpoint: %v", err)
			}
			if _, err := p.GetCheckpoints(ctx, agentID); err != nil {
				t.Errorf("Failed to get checkpoints: %v", err)
			}
		}(i)
	}
	wg.Wait()

	first, err := p.GetCheckpoints(ctx, "agent-0")
	if err != nil {
		t.Fatalf("Failed to get checkpoints: %v", err)
	}
	second, err := p.GetCheckpoints(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get checkpoints: %v", err)
	}
	if len(first)+len(second) != 10 {
		t.Errorf("Expected 10 checkpoints in total, got %d", len(first)+len(second))
	}
}

func TestMemoryProvider_CancelledContext(t *testing.T) {
	t.Parallel()

	p := NewMemoryProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(1)); err == nil {
		t.Error("Save with cancelled context should fail")
	}
	if _, err := p.GetCheckpoints(ctx, "agent-1"); err == nil {
		t.Error("Get with cancelled context should fail")
	}
}
