package audit

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ClickHouseWriter persists audit entries to ClickHouse asynchronously.
// Record() is non-blocking — entries are buffered and batch-inserted in a
// background goroutine, so a slow or failing audit store can never delay
// or fail a safety verdict.
type ClickHouseWriter struct {
	conn    driver.Conn
	buffer  chan *Entry
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
}

// NewClickHouseWriter opens the connection and starts the flush loop.
func NewClickHouseWriter(dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	conn, err := openClickHouse(dsn)
	if err != nil {
		return nil, err
	}

	w := &ClickHouseWriter{
		conn:    conn,
		buffer:  make(chan *Entry, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}

	go w.flushLoop()
	return w, nil
}

func openClickHouse(dsn string) (driver.Conn, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	// ParseDSN enables TLS when ?secure=true is in the DSN; enforce it here
	// so managed deployments on TLS ports cannot silently downgrade.
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}
	return conn, nil
}

// Record queues an audit entry for async insertion.
// Non-blocking: drops the entry if the buffer is full.
func (w *ClickHouseWriter) Record(e *Entry) {
	select {
	case w.buffer <- e:
	default:
		w.logger.Warn("audit buffer full, dropping entry",
			zap.String("audit_id", e.ID),
		)
	}
}

// Close signals the flush loop to drain remaining entries, waits for it to
// finish (up to drainTimeout), then returns. Safe to call once.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*Entry, 0, flushBatch)

	for {
		select {
		case e := <-w.buffer:
			batch = append(batch, e)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case e := <-w.buffer:
					batch = append(batch, e)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) flush(entries []*Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO safety_decisions (
			audit_id, decision_type, timestamp,
			content_preview, content_hash, content_size,
			user_id, session_id, role, is_anonymous,
			safe, risk_score, actions,
			crisis_severity, crisis_urgency, moderation_action,
			patterns, anomalies, degraded, latency_ms
		)
	`)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range entries {
		var safeUint8, anonUint8 uint8
		if e.Output.Safe {
			safeUint8 = 1
		}
		if e.Input.IsAnonymous {
			anonUint8 = 1
		}

		if err := batch.Append(
			e.ID,
			e.DecisionType,
			e.Timestamp,
			e.Input.ContentPreview,
			e.Input.ContentHash,
			e.Input.ContentSize,
			e.Input.UserID,
			e.Input.SessionID,
			e.Input.Role,
			anonUint8,
			safeUint8,
			e.Output.RiskScore,
			e.Output.Actions,
			uint8(e.Output.CrisisSeverity),
			e.Output.CrisisUrgency,
			e.Output.ModerationAction,
			e.Output.Patterns,
			e.Output.Anomalies,
			e.Output.Degraded,
			e.Output.LatencyMs,
		); err != nil {
			w.logger.Error("clickhouse append entry failed",
				zap.String("audit_id", e.ID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(entries)),
			zap.Error(err),
		)
	}
}

// LogRecorder is a fallback Recorder for local development: decisions are
// logged as structured JSON via zap instead of persisted.
type LogRecorder struct {
	logger *zap.Logger
}

func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(e *Entry) {
	r.logger.Info("safety_decision",
		zap.String("audit_id", e.ID),
		zap.String("decision_type", e.DecisionType),
		zap.String("session_id", e.Input.SessionID),
		zap.String("user_id", e.Input.UserID),
		zap.String("role", e.Input.Role),
		zap.Bool("safe", e.Output.Safe),
		zap.Float32("risk_score", e.Output.RiskScore),
		zap.Strings("actions", e.Output.Actions),
		zap.Int("crisis_severity", e.Output.CrisisSeverity),
		zap.Float32("latency_ms", e.Output.LatencyMs),
	)
}

func (r *LogRecorder) Close() {}
