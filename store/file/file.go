// Package file provides a checkpoint provider persisted on disk. Each agent
// id owns a subdirectory under a configured root and each checkpoint is a
// self-contained JSON file, so the layout survives a restart and re-reads
// correctly.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smallnest/agentgraph/store"
)

// FileProvider implements store.Provider on the local filesystem.
//
// Writes are atomic: a checkpoint is serialized to a temporary file in the
// agent's directory and renamed into place, so a crash or cancellation
// mid-write never leaves a partial record visible to GetCheckpoints.
type FileProvider struct {
	root string
}

var _ store.Provider = (*FileProvider)(nil)

// NewFileProvider creates a file-backed provider rooted at path, creating
// the directory if needed.
func NewFileProvider(path string) (*FileProvider, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, &store.StorageError{Op: "init", Err: err}
	}
	return &FileProvider{root: path}, nil
}

// agentDir maps an agent id to its directory, escaping characters that are
// not filesystem-safe.
func (p *FileProvider) agentDir(agentID string) string {
	return filepath.Join(p.root, url.PathEscape(agentID))
}

// SaveCheckpoint writes the checkpoint as a new file in the agent's
// directory. Existing files are never touched.
func (p *FileProvider) SaveCheckpoint(ctx context.Context, agentID string, checkpoint *store.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := p.agentDir(agentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &store.StorageError{Op: "save", AgentID: agentID, Err: err}
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint %s: %w", checkpoint.CheckpointID, err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return &store.StorageError{Op: "save", AgentID: agentID, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &store.StorageError{Op: "save", AgentID: agentID, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &store.StorageError{Op: "save", AgentID: agentID, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &store.StorageError{Op: "save", AgentID: agentID, Err: err}
	}

	final := filepath.Join(dir, url.PathEscape(checkpoint.CheckpointID)+".json")
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return &store.StorageError{Op: "save", AgentID: agentID, Err: err}
	}
	return nil
}

// GetCheckpoints reads every checkpoint file for the agent, ordered by
// (version, createdAt). An agent with no directory yields an empty slice.
func (p *FileProvider) GetCheckpoints(ctx context.Context, agentID string) ([]*store.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := p.agentDir(agentID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*store.Checkpoint{}, nil
		}
		return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
	}

	checkpoints := make([]*store.Checkpoint, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			// In-flight temp files and foreign content are invisible.
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
		}

		var cp store.Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			return nil, fmt.Errorf("corrupt checkpoint file %s: %w", entry.Name(), err)
		}
		checkpoints = append(checkpoints, &cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[j].NewerThan(checkpoints[i])
	})
	return checkpoints, nil
}

// GetLatestCheckpoint returns the newest checkpoint by (version, createdAt),
// or (nil, nil) when the agent has none.
func (p *FileProvider) GetLatestCheckpoint(ctx context.Context, agentID string) (*store.Checkpoint, error) {
	checkpoints, err := p.GetCheckpoints(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return store.Latest(checkpoints), nil
}

// Root returns the provider's root directory.
func (p *FileProvider) Root() string {
	return p.root
}
