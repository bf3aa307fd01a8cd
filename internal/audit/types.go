package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/gait-relay/internal/config"
	"github.com/rickgao/gait-relay/internal/registry"
)

// EventType names a lifecycle transition.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventRegistered   EventType = "registered"
	EventDisconnected EventType = "disconnected"
)

// Event is one lifecycle transition of a connection.
type Event struct {
	ConnID     string
	Type       EventType
	Role       registry.Role
	RemoteAddr string
	OccurredAt time.Time
}

// DB is the subset of *pgxpool.Pool the writer needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batch settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     config.DefaultAuditBatchSize,
		FlushInterval: config.DefaultAuditFlush,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Recorded int64 `json:"recorded"`
	Inserts  int64 `json:"inserts"`
	Flushes  int64 `json:"flushes"`
	Errors   int64 `json:"errors"`
	Invalid  int64 `json:"invalid"` // Events with a non-UUID connection id
}

// eventRow is the database row format.
type eventRow struct {
	ConnID     uuid.UUID
	Event      string
	Role       string
	RemoteAddr string
	OccurredAt int64 // Microseconds since epoch
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS relay_session_events (
	id          BIGSERIAL PRIMARY KEY,
	conn_id     UUID NOT NULL,
	event       TEXT NOT NULL,
	role        TEXT NOT NULL,
	remote_addr TEXT NOT NULL DEFAULT '',
	occurred_at BIGINT NOT NULL
)`

const insertEventSQL = `
INSERT INTO relay_session_events (conn_id, event, role, remote_addr, occurred_at)
VALUES ($1, $2, $3, $4, $5)`
