// Package postgres provides a checkpoint provider backed by PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallnest/agentgraph/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresProvider implements store.Provider using PostgreSQL. Each
// checkpoint row is an append; rows are never updated or deleted.
type PostgresProvider struct {
	pool      DBPool
	tableName string
}

var _ store.Provider = (*PostgresProvider)(nil)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "agent_checkpoints"
}

// NewPostgresProvider creates a new Postgres checkpoint provider.
func NewPostgresProvider(ctx context.Context, opts PostgresOptions) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "agent_checkpoints"
	}

	return &PostgresProvider{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// NewPostgresProviderWithPool creates a provider with an existing pool.
// Useful for testing with mocks.
func NewPostgresProviderWithPool(pool DBPool, tableName string) *PostgresProvider {
	if tableName == "" {
		tableName = "agent_checkpoints"
	}
	return &PostgresProvider{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (p *PostgresProvider) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			checkpoint_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			record JSONB NOT NULL,
			version BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_agent_id ON %s (agent_id);
	`, p.tableName, p.tableName, p.tableName)

	_, err := p.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresProvider) Close() {
	p.pool.Close()
}

// SaveCheckpoint appends the checkpoint as a new row.
func (p *PostgresProvider) SaveCheckpoint(ctx context.Context, agentID string, checkpoint *store.Checkpoint) error {
	record, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (checkpoint_id, agent_id, record, version, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.tableName)

	_, err = p.pool.Exec(ctx, query,
		checkpoint.CheckpointID,
		agentID,
		record,
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
func (p *PostgresProvider) GetCheckpoints(ctx context.Context, agentID string) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT record FROM %s
		WHERE agent_id = $1
		ORDER BY version ASC, created_at ASC
	`, p.tableName)

	rows, err := p.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
	}
	defer rows.Close()

	checkpoints := []*store.Checkpoint{}
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, &store.StorageError{Op: "list", AgentID: agentID, Err: err}
		}

		var cp store.Checkpoint
		if err := json.Unmarshal(record, &cp); err != nil {
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
func (p *PostgresProvider) GetLatestCheckpoint(ctx context.Context, agentID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT record FROM %s
		WHERE agent_id = $1
		ORDER BY version DESC, created_at DESC
		LIMIT 1
	`, p.tableName)

	var record []byte
	err := p.pool.QueryRow(ctx, query, agentID).Scan(&record)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, &store.StorageError{Op: "latest", AgentID: agentID, Err: err}
	}

	var cp store.Checkpoint
	if err := json.Unmarshal(record, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
