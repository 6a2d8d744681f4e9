// Package sqlite provides a checkpoint provider backed by SQLite, suitable
// for single-host deployments that need restart-safe checkpoints without an
// external database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/agentgraph/store"
)

// SqliteProvider implements store.Provider using SQLite.
type SqliteProvider struct {
	db        *sql.DB
	tableName string
}

var _ store.Provider = (*SqliteProvider)(nil)

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "agent_checkpoints"
}

// NewSqliteProvider creates a new SQLite checkpoint provider.
func NewSqliteProvider(opts SqliteOptions) (*SqliteProvider, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "agent_checkpoints"
	}

	provider := &SqliteProvider{
		db:        db,
		tableName: tableName,
	}

	if err := provider.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return provider, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (p *SqliteProvider) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			checkpoint_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			record TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_agent_id ON %s (agent_id);
	`, p.tableName, p.tableName, p.tableName)

	_, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (p *SqliteProvider) Close() error {
	return p.db.Close()
}

// SaveCheckpoint appends the checkpoint as a new row.
func (p *SqliteProvider) SaveCheckpoint(ctx context.Context, agentID string, checkpoint *store.Checkpoint) error {
	record, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (checkpoint_id, agent_id, record, version, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.tableName)

	_, err = p.db.ExecContext(ctx, query,
		checkpoint.CheckpointID,
		agentID,
		string(record),
		checkpoint.Version,
		checkpoint.CreatedAt,
	)
	if err != nil {
		return &store.StorageError{Op: "save", AgentID: agentID, Err: err}
	}
	return nil
}

// GetCheckpoints returns every checkpoint stored for the agent, ordered by
// (version, createdAt).
func (p *SqliteProvider) GetCheckpoints(ctx context.Context, agentID string) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT record FROM %s
		WHERE agent_id = ?
		ORDER BY version ASC, created_at ASC
	`, p.tableName)

	rows, err := p.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
	}
	defer rows.Close()

	checkpoints := []*store.Checkpoint{}
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
		}

		var cp store.Checkpoint
		if err := json.Unmarshal([]byte(record), &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
	}

	return checkpoints, nil
}

// GetLatestCheckpoint returns the newest checkpoint by (version, createdAt),
// or (nil, nil) when the agent has none.
func (p *SqliteProvider) GetLatestCheckpoint(ctx context.Context, agentID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT record FROM %s
		WHERE agent_id = ?
		ORDER BY version DESC, created_at DESC
		LIMIT 1
	`, p.tableName)

	var record string
	err := p.db.QueryRowContext(ctx, query, agentID).Scan(&record)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &store.StorageError{Op: "latest", AgentID: agentID, Err: err}
	}

	var cp store.Checkpoint
	if err := json.Unmarshal([]byte(record), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
