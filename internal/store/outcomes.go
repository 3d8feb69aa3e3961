// Package store provides the PostgreSQL outcome-annotation store. Outcomes
// are reviewer judgments of past safety decisions, kept in an insert-only
// table joined to the audit record by audit_id:
//
//	CREATE TABLE decision_outcomes (
//	    id          UUID PRIMARY KEY,
//	    audit_id    UUID NOT NULL,
//	    reviewer    TEXT NOT NULL,
//	    label       TEXT NOT NULL,
//	    overrode    BOOLEAN NOT NULL DEFAULT FALSE,
//	    note        TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX decision_outcomes_audit_id_idx ON decision_outcomes (audit_id);
//	CREATE INDEX decision_outcomes_created_at_idx ON decision_outcomes (created_at);
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Damatnic/astral-safety/internal/audit"
	"github.com/google/uuid"
)

// OutcomeStore persists reviewer outcomes. Insert-only: historical
// decisions are never edited, only annotated.
type OutcomeStore struct {
	db *sql.DB
}

// NewOutcomeStore creates a store backed by the given connection pool.
func NewOutcomeStore(db *sql.DB) *OutcomeStore {
	return &OutcomeStore{db: db}
}

// Insert appends one outcome record.
func (s *OutcomeStore) Insert(ctx context.Context, o audit.Outcome) error {
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_outcomes (id, audit_id, reviewer, label, overrode, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), o.AuditID, o.Reviewer, o.Label, o.Overrode, o.Note, createdAt,
	)
	if err != nil {
		return fmt.Errorf("Insert outcome: %w", err)
	}
	return nil
}

// ListByAudit returns all outcomes attached to one audit entry, oldest first.
func (s *OutcomeStore) ListByAudit(ctx context.Context, auditID string) ([]audit.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT audit_id, reviewer, label, overrode, note, created_at
		 FROM decision_outcomes WHERE audit_id = $1 ORDER BY created_at`,
		auditID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAudit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var outcomes []audit.Outcome
	for rows.Next() {
		var o audit.Outcome
		if err := rows.Scan(&o.AuditID, &o.Reviewer, &o.Label, &o.Overrode, &o.Note, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListByAudit scan: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Summary aggregates labels over [start, end] for audit analysis.
func (s *OutcomeStore) Summary(ctx context.Context, start, end time.Time) (audit.OutcomeSummary, error) {
	var sum audit.OutcomeSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE label IN ($1, $2)),
		        count(*) FILTER (WHERE label = $3),
		        count(*) FILTER (WHERE label = $4),
		        count(*) FILTER (WHERE overrode)
		 FROM decision_outcomes
		 WHERE created_at >= $5 AND created_at <= $6`,
		audit.LabelTruePositive, audit.LabelTrueNegative,
		audit.LabelFalsePositive, audit.LabelFalseNegative,
		start, end,
	).Scan(&sum.Labeled, &sum.Correct, &sum.FalsePositives, &sum.FalseNegatives, &sum.Overrides)
	if err != nil {
		return audit.OutcomeSummary{}, fmt.Errorf("Summary: %w", err)
	}
	return sum, nil
}
