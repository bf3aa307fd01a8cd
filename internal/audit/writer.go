package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/gait-relay/internal/registry"
)

// Writer batches lifecycle events into relay_session_events.
type Writer struct {
	cfg    WriterConfig
	db     DB
	logger *slog.Logger
	now    func() time.Time

	// Batching
	batch   []eventRow
	batchMu sync.Mutex
	flushCh chan struct{}

	// Serializes flushes so rows land in record order
	flushMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewWriter creates a new Writer.
func NewWriter(cfg WriterConfig, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &Writer{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		now:     time.Now,
		batch:   make([]eventRow, 0, cfg.BatchSize),
		flushCh: make(chan struct{}, 1),
	}
}

// EnsureSchema creates the events table if it does not exist.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create relay_session_events: %w", err)
	}
	return nil
}

// Start begins the periodic flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("audit writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the flush loop and writes whatever is still batched.
// Events recorded after Stop stay in memory and are never written.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping audit writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("audit writer stop timed out")
		return ctx.Err()
	}

	if err := w.flush(ctx); err != nil {
		return err
	}
	w.logger.Info("audit writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// Connected records a new connection.
func (w *Writer) Connected(id, remoteAddr string) {
	w.Record(Event{ConnID: id, Type: EventConnected, Role: registry.RoleUnknown, RemoteAddr: remoteAddr})
}

// Registered records a role change.
func (w *Writer) Registered(id string, role registry.Role) {
	w.Record(Event{ConnID: id, Type: EventRegistered, Role: role})
}

// Disconnected records a closed connection.
func (w *Writer) Disconnected(id string, role registry.Role) {
	w.Record(Event{ConnID: id, Type: EventDisconnected, Role: role})
}

// Record adds an event to the batch. It never blocks on the database.
// Audit is best effort: a batch whose insert fails is dropped, not retried.
func (w *Writer) Record(e Event) {
	row, err := w.transform(e)
	if err != nil {
		w.logger.Warn("dropping audit event", "conn_id", e.ConnID, "error", err)
		w.batchMu.Lock()
		w.metrics.Invalid++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	w.metrics.Recorded++
	full := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if full {
		select {
		case w.flushCh <- struct{}{}:
		default:
		}
	}
}

// transform converts an Event to an eventRow.
func (w *Writer) transform(e Event) (eventRow, error) {
	id, err := uuid.Parse(e.ConnID)
	if err != nil {
		return eventRow{}, fmt.Errorf("parse conn id: %w", err)
	}
	at := e.OccurredAt
	if at.IsZero() {
		at = w.now()
	}
	role := e.Role
	if role == "" {
		role = registry.RoleUnknown
	}
	return eventRow{
		ConnID:     id,
		Event:      string(e.Type),
		Role:       string(role),
		RemoteAddr: e.RemoteAddr,
		OccurredAt: at.UnixMicro(),
	}, nil
}

// flushLoop flushes on the interval or when a batch fills.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		case <-w.flushCh:
		}
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	// The batch is already detached; on failure it is lost.
	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("audit batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return err
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed audit events",
		"count", len(batch),
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEventSQL, r.ConnID, r.Event, r.Role, r.RemoteAddr, r.OccurredAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
