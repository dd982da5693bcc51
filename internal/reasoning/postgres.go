package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore is the primary chain backend: one row per session holding
// the full ordered thought array as JSONB. Saves replace the whole
// document (upsert), never patch it.
//
// PostgresStore is safe for concurrent use by multiple goroutines.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// LoadChain reads a session's chain. A missing row yields an empty chain,
// not an error. Thoughts are re-sorted by step regardless of stored order.
func (p *PostgresStore) LoadChain(ctx context.Context, sessionID string) (*Chain, error) {
	var (
		raw       []byte
		embedding *pgvector.Vector
	)

	err := p.pool.QueryRow(ctx,
		`SELECT thoughts, last_embedding FROM reasoning_chains WHERE session_id = $1`,
		sessionID,
	).Scan(&raw, &embedding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NewChain(), nil
		}
		return nil, fmt.Errorf("loading chain %q: %w", sessionID, err)
	}

	chain := NewChain()
	if err := json.Unmarshal(raw, &chain.Thoughts); err != nil {
		return nil, fmt.Errorf("decoding chain %q: %w", sessionID, err)
	}
	chain.sortBySteps()

	if embedding != nil {
		chain.LastEmbedding = embedding.Slice()
	}

	return chain, nil
}

// SaveChain replaces the session's document with the full chain.
func (p *PostgresStore) SaveChain(ctx context.Context, sessionID string, chain *Chain) error {
	raw, err := json.Marshal(chain.Thoughts)
	if err != nil {
		return fmt.Errorf("encoding chain %q: %w", sessionID, err)
	}

	var embedding *pgvector.Vector
	if len(chain.LastEmbedding) > 0 {
		vec := pgvector.NewVector(chain.LastEmbedding)
		embedding = &vec
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO reasoning_chains (session_id, thoughts, thought_count, last_embedding, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (session_id) DO UPDATE SET
		     thoughts = EXCLUDED.thoughts,
		     thought_count = EXCLUDED.thought_count,
		     last_embedding = EXCLUDED.last_embedding,
		     updated_at = now()`,
		sessionID, raw, chain.Len(), embedding,
	)
	if err != nil {
		return fmt.Errorf("saving chain %q: %w", sessionID, err)
	}

	p.logger.Debug("saved chain to primary",
		"session_id", sessionID, "thoughts", chain.Len())
	return nil
}

// ClearChain deletes the session's document. Idempotent.
func (p *PostgresStore) ClearChain(ctx context.Context, sessionID string) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM reasoning_chains WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clearing chain %q: %w", sessionID, err)
	}
	return nil
}

// Sessions lists session ids ordered by most recent activity.
func (p *PostgresStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT session_id FROM reasoning_chains ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return ids, nil
}
