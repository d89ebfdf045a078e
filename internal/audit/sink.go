package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "journal").Logger()}
}

func (s *LogSink) Write(ctx context.Context, event Event) error {
	e := s.log.Info().
		Time("occurred_at", event.OccurredAt).
		Str("request_id", event.RequestID).
		Str("feature", event.Feature).
		Str("action", event.Action)
	if event.GrantID != "" {
		e = e.Str("grant_id", event.GrantID)
	}
	if event.From != "" || event.To != "" {
		e = e.Str("from", event.From).Str("to", event.To)
	}
	if len(event.Detail) > 0 {
		e = e.Interface("detail", event.Detail)
	}
	e.Msg("transition")
	return nil
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Write(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of what was written.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

const createJournalSQL = `
CREATE TABLE IF NOT EXISTS transition_log (
	id          BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	request_id  TEXT NOT NULL,
	grant_id    TEXT,
	feature     TEXT NOT NULL,
	action      TEXT NOT NULL,
	from_value  TEXT,
	to_value    TEXT,
	detail      JSONB
)`

// PostgresSink stores events in the transition_log table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates the table if needed.
func NewPostgresSink(ctx context.Context, pool *pgxpool.Pool) (*PostgresSink, error) {
	if _, err := pool.Exec(ctx, createJournalSQL); err != nil {
		return nil, fmt.Errorf("create transition_log: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Write(ctx context.Context, event Event) error {
	var detail []byte
	if event.Detail != nil {
		b, err := json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("encode detail: %w", err)
		}
		detail = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transition_log (occurred_at, request_id, grant_id, feature, action, from_value, to_value, detail)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)`,
		event.OccurredAt, event.RequestID, event.GrantID, event.Feature, event.Action, event.From, event.To, detail)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}
