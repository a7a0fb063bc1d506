// Package postgres provides a PostgreSQL-backed Store using pgx
// connection pooling, with embedded schema migrations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/store"
)

// Store persists conversations in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New creates a PostgreSQL store, verifies connectivity, and runs
// migrations when cfg.MigrateOnStart is set.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	slog.Info("postgres store ready",
		"max_conns", cfg.MaxConns,
		"migrate_on_start", cfg.MigrateOnStart)

	return s, nil
}

// Append implements store.Store. The sequence number is assigned inside
// the insert so it continues from whatever the conversation currently
// holds, including after a rollback. Callers serialize appends per
// conversation.
func (s *Store) Append(ctx context.Context, conversationID string, msg chat.Message) (chat.Message, error) {
	var toolCalls []byte
	if len(msg.ToolCalls) > 0 {
		var err error
		toolCalls, err = json.Marshal(msg.ToolCalls)
		if err != nil {
			return chat.Message{}, fmt.Errorf("marshaling tool calls: %w", err)
		}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, seq, id, role, content, tool_calls, tool_call_id, is_error, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6, $7, $8
		FROM messages WHERE conversation_id = $1
		RETURNING seq`,
		conversationID, msg.ID, string(msg.Role), msg.Content,
		toolCalls, nullable(msg.ToolCallID), msg.IsError, msg.CreatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		return chat.Message{}, fmt.Errorf("appending message: %w", err)
	}
	return msg, nil
}

// Messages implements store.Store.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, id, role, content, tool_calls, tool_call_id, is_error, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY seq`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var (
			msg        chat.Message
			role       string
			toolCalls  []byte
			toolCallID *string
		)
		if err := rows.Scan(&msg.Seq, &msg.ID, &role, &msg.Content,
			&toolCalls, &toolCallID, &msg.IsError, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = chat.Role(role)
		if len(toolCalls) > 0 {
			if err := json.Unmarshal(toolCalls, &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshaling tool calls: %w", err)
			}
		}
		if toolCallID != nil {
			msg.ToolCallID = *toolCallID
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// Truncate implements store.Store.
func (s *Store) Truncate(ctx context.Context, conversationID string, seq int) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM messages WHERE conversation_id = $1 AND seq > $2",
		conversationID, seq)
	if err != nil {
		return fmt.Errorf("truncating conversation: %w", err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
