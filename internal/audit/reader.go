package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// OutcomeSummary aggregates reviewer labels over a window. Produced by the
// outcome store (Postgres) and joined into Analysis by StoreAnalyzer.
type OutcomeSummary struct {
	Labeled        int
	Correct        int // true_positive + true_negative
	FalsePositives int
	FalseNegatives int
	Overrides      int
}

// OutcomeSource supplies reviewer outcome aggregates for a time window.
type OutcomeSource interface {
	Summary(ctx context.Context, start, end time.Time) (OutcomeSummary, error)
}

// Reader provides read access to the ClickHouse safety_decisions table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for analytics queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	conn, err := openClickHouse(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// decisionStats reads aggregate decision counts and the daily trend.
func (r *Reader) decisionStats(ctx context.Context, start, end time.Time) (*Analysis, error) {
	args := []any{
		clickhouse.Named("start", start),
		clickhouse.Named("end", end),
	}

	a := &Analysis{Breakdown: make(map[string]int)}

	var total, blocked, crisis uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count() as total, "+
			"countIf(has(actions, 'BLOCK_MESSAGE')) as blocked, "+
			"countIf(crisis_severity >= 7) as crisis "+
			"FROM safety_decisions "+
			"WHERE timestamp >= @start AND timestamp <= @end",
		args...,
	).Scan(&total, &blocked, &crisis)
	if err != nil {
		return nil, fmt.Errorf("decisionStats summary: %w", err)
	}
	a.TotalDecisions = int(total)
	a.Blocked = int(blocked)
	a.CrisisDetections = int(crisis)

	// Breakdown by highest-priority action (stored first in the array).
	bdRows, err := r.conn.Query(ctx,
		"SELECT actions[1] as top_action, count() as count "+
			"FROM safety_decisions "+
			"WHERE timestamp >= @start AND timestamp <= @end "+
			"GROUP BY top_action",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("decisionStats breakdown: %w", err)
	}
	defer func() { _ = bdRows.Close() }()
	for bdRows.Next() {
		var action string
		var count uint64
		if err := bdRows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("decisionStats breakdown scan: %w", err)
		}
		a.Breakdown[action] = int(count)
	}

	trendRows, err := r.conn.Query(ctx,
		"SELECT toDate(timestamp) as day, count() as total, "+
			"countIf(has(actions, 'BLOCK_MESSAGE')) as blocked, "+
			"countIf(crisis_severity >= 7) as crisis "+
			"FROM safety_decisions "+
			"WHERE timestamp >= @start AND timestamp <= @end "+
			"GROUP BY day ORDER BY day",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("decisionStats trend: %w", err)
	}
	defer func() { _ = trendRows.Close() }()
	for trendRows.Next() {
		var day time.Time
		var dTotal, dBlocked, dCrisis uint64
		if err := trendRows.Scan(&day, &dTotal, &dBlocked, &dCrisis); err != nil {
			return nil, fmt.Errorf("decisionStats trend scan: %w", err)
		}
		a.DailyTrend = append(a.DailyTrend, TrendBucket{
			Day:     day.UTC().Format("2006-01-02"),
			Total:   int(dTotal),
			Blocked: int(dBlocked),
			Crisis:  int(dCrisis),
		})
	}

	return a, trendRows.Err()
}

// StoreAnalyzer joins ClickHouse decision records with reviewer outcomes
// from the outcome store into one Analysis. Outcomes may be nil, in which
// case labeled-rate fields stay zero.
type StoreAnalyzer struct {
	Reader   *Reader
	Outcomes OutcomeSource
}

// Analyze implements Analyzer over the durable stores.
func (s *StoreAnalyzer) Analyze(ctx context.Context, q Query) (*Analysis, error) {
	end := q.End
	if end.IsZero() {
		end = time.Now()
	}

	a, err := s.Reader.decisionStats(ctx, q.Start, end)
	if err != nil {
		return nil, fmt.Errorf("Analyze: %w", err)
	}

	if q.IncludeOutcomes && s.Outcomes != nil {
		sum, err := s.Outcomes.Summary(ctx, q.Start, end)
		if err != nil {
			return nil, fmt.Errorf("Analyze outcomes: %w", err)
		}
		a.LabeledCount = sum.Labeled
		if sum.Labeled > 0 {
			n := float64(sum.Labeled)
			a.Accuracy = float64(sum.Correct) / n
			a.FalsePositiveRate = float64(sum.FalsePositives) / n
			a.FalseNegativeRate = float64(sum.FalseNegatives) / n
			a.OverrideRate = float64(sum.Overrides) / n
		}
	}

	return a, nil
}
