package datalayer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	chdriver "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/rts-ladder/ranked-core/internal/models"
)

// AnalyticsSink is the collaborator the Data Layer mirrors action-log and
// command-audit rows into, in addition to the SQL store. It exists
// because those tables are explicitly analytics-grade: availability wins
// over correctness for them, and a ClickHouse mirror gives cheap,
// append-friendly storage for exactly that shape of data via a
// batch-insert worker pattern.
type AnalyticsSink interface {
	InsertActionLog(ctx context.Context, entries []models.ActionLogEntry) error
	InsertCommandAudit(ctx context.Context, entries []models.CommandCallAudit) error
	Close()
}

// analyticsMirror batches rows in memory and flushes them on whichever
// comes first: a row-count threshold or a timer tick. When no sink is
// configured (ClickHouse URL empty) it is a documented
// no-op: rows still land in the primary SQL store via the write queue.
type analyticsMirror struct {
	sink   AnalyticsSink
	logger *zap.SugaredLogger

	mu           sync.Mutex
	actionBuf    []models.ActionLogEntry
	auditBuf     []models.CommandCallAudit

	flushInterval time.Duration
	batchSize     int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newAnalyticsMirror(sink AnalyticsSink, logger *zap.SugaredLogger) *analyticsMirror {
	m := &analyticsMirror{
		sink:          sink,
		logger:        logger,
		flushInterval: 2 * time.Second,
		batchSize:     200,
		stopCh:        make(chan struct{}),
	}
	if sink != nil {
		m.wg.Add(1)
		go m.flushLoop()
	}
	return m
}

func (m *analyticsMirror) recordAction(e models.ActionLogEntry) {
	if m.sink == nil {
		return
	}
	m.mu.Lock()
	m.actionBuf = append(m.actionBuf, e)
	full := len(m.actionBuf) >= m.batchSize
	m.mu.Unlock()
	if full {
		m.flush()
	}
}

func (m *analyticsMirror) recordCommandAudit(a models.CommandCallAudit) {
	if m.sink == nil {
		return
	}
	m.mu.Lock()
	m.auditBuf = append(m.auditBuf, a)
	full := len(m.auditBuf) >= m.batchSize
	m.mu.Unlock()
	if full {
		m.flush()
	}
}

func (m *analyticsMirror) flushLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.flush()
		case <-m.stopCh:
			m.flush()
			return
		}
	}
}

func (m *analyticsMirror) flush() {
	m.mu.Lock()
	actions := m.actionBuf
	audits := m.auditBuf
	m.actionBuf = nil
	m.auditBuf = nil
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(actions) > 0 {
		if err := m.sink.InsertActionLog(ctx, actions); err != nil {
			m.logger.Warnw("analytics mirror failed to insert action log batch", "count", len(actions), "error", err)
		}
	}
	if len(audits) > 0 {
		if err := m.sink.InsertCommandAudit(ctx, audits); err != nil {
			m.logger.Warnw("analytics mirror failed to insert command audit batch", "count", len(audits), "error", err)
		}
	}
}

func (m *analyticsMirror) close() {
	if m.sink == nil {
		return
	}
	close(m.stopCh)
	m.wg.Wait()
	m.sink.Close()
}

// ClickHouseSink is the concrete AnalyticsSink backed by ClickHouse, using
// the PrepareBatch/Append/Send batch-insert pattern.
type ClickHouseSink struct {
	conn driver.Conn
}

// NewClickHouseSink dials ClickHouse at dsn. Returns an error if
// unreachable; callers may fall back to a nil sink (no-op mirror) if the
// mirror is considered optional for their deployment.
func NewClickHouseSink(ctx context.Context, dsn string) (*ClickHouseSink, error) {
	opts, err := chdriver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := chdriver.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}
	return &ClickHouseSink{conn: conn}, nil
}

func (c *ClickHouseSink) InsertActionLog(ctx context.Context, entries []models.ActionLogEntry) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO action_log_mirror (player_id, field, old_value, new_value, timestamp, source)")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := batch.Append(e.PlayerID, e.Field, e.OldValue, e.NewValue, e.Timestamp, string(e.Source)); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (c *ClickHouseSink) InsertCommandAudit(ctx context.Context, entries []models.CommandCallAudit) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO command_call_audit_mirror (player_id, command, args, timestamp)")
	if err != nil {
		return err
	}
	for _, a := range entries {
		if err := batch.Append(a.PlayerID, a.Command, a.Args, a.Timestamp); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (c *ClickHouseSink) Close() { c.conn.Close() }
