package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallnest/agentgraph/message"
	"github.com/smallnest/agentgraph/store"
)

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

func TestFileProvider_New(t *testing.T) {
	t.Parallel()

	t.Run("creates directory if missing", func(t *testing.T) {
		t.Parallel()

		root := filepath.Join(t.TempDir(), "checkpoints")
		p, err := NewFileProvider(root)
		if err != nil {
			t.Fatalf("Failed to create provider: %v", err)
		}
		if p.Root() != root {
			t.Errorf("Expected root %s, got %s", root, p.Root())
		}
		if _, err := os.Stat(root); os.IsNotExist(err) {
			t.Error("Directory should have been created")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		t.Parallel()

		if _, err := NewFileProvider(t.TempDir()); err != nil {
			t.Fatalf("Failed to create provider: %v", err)
		}
	})
}

func TestFileProvider_SaveAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

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

func TestFileProvider_LatestWinsByVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

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

func TestFileProvider_SurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()

	p, err := NewFileProvider(root)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	saved := newCheckpoint(1)
	if err := p.SaveCheckpoint(ctx, "agent-1", saved); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	// A fresh provider over the same root stands in for a process restart.
	reopened, err := NewFileProvider(root)
	if err != nil {
		t.Fatalf("Failed to reopen provider: %v", err)
	}
	latest, err := reopened.GetLatestCheckpoint(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest == nil || latest.CheckpointID != saved.CheckpointID {
		t.Errorf("Expected checkpoint %s after restart, got %+v", saved.CheckpointID, latest)
	}
}

func TestFileProvider_NoTempFilesLeftBehind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(int64(i+1))); err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(p.Root(), "agent-1"))
	if err != nil {
		t.Fatalf("Failed to read agent directory: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("Temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 5 {
		t.Errorf("Expected 5 checkpoint files, got %d", len(entries))
	}
}

func TestFileProvider_IgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(1)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	// A half-written temp file must stay invisible to readers.
	partial := filepath.Join(p.Root(), "agent-1", ".checkpoint-partial.tmp")
	if err := os.WriteFile(partial, []byte(`{"checkpointId":"trunc`), 0o644); err != nil {
		t.Fatalf("Failed to plant temp file: %v", err)
	}

	checkpoints, err := p.GetCheckpoints(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Failed to get checkpoints: %v", err)
	}
	if len(checkpoints) != 1 {
		t.Errorf("Expected 1 checkpoint, got %d", len(checkpoints))
	}
}

func TestFileProvider_UnknownAgent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

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

func TestFileProvider_EscapesAgentID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	agentID := "tenant/user@example.com"
	if err := p.SaveCheckpoint(ctx, agentID, newCheckpoint(1)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	latest, err := p.GetLatestCheckpoint(ctx, agentID)
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest == nil {
		t.Fatal("Checkpoint for escaped agent id should be readable")
	}

	// The raw id must not have produced nested directories.
	entries, err := os.ReadDir(p.Root())
	if err != nil {
		t.Fatalf("Failed to read root: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected a single agent directory, got %d entries", len(entries))
	}
}

func TestFileProvider_ConcurrentSaves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agentID := fmt.Sprintf("agent-%d", i%2)
			if err := p.SaveCheckpoint(ctx, agentID, newCheckpoint(int64(i+1))); err != nil {
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
		t.Errorf("Expected 10 checkpoints across agents, got %d", len(first)+len(second))
	}
}

func TestFileProvider_CorruptFileSurfacesError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, err := NewFileProvider(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if err := p.SaveCheckpoint(ctx, "agent-1", newCheckpoint(1)); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
	corrupt := filepath.Join(p.Root(), "agent-1", "broken.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to plant corrupt file: %v", err)
	}

	if _, err := p.GetCheckpoints(ctx, "agent-1"); err == nil {
		t.Error("Corrupt checkpoint file should surface an error")
	}
}
