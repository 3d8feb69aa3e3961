// Package audit keeps the append-only record of every safety decision and
// the analytics over it. Entries are immutable once written; reviewer
// outcome labels are additive records joined by audit ID, never in-place
// edits of history.
package audit

import (
	"context"
	"time"
)

// Decision types recorded in the ledger.
const (
	DecisionSafetyCheck   = "safety_check"
	DecisionQualityReview = "quality_review"
)

// Outcome labels attached by human reviewers.
const (
	LabelTruePositive  = "true_positive"
	LabelFalsePositive = "false_positive"
	LabelTrueNegative  = "true_negative"
	LabelFalseNegative = "false_negative"
)

// InputSnapshot captures what the pipeline was asked to judge. Content is
// stored as preview + hash, never in full.
type InputSnapshot struct {
	ContentPreview string
	ContentHash    string // SHA-256 of the full content
	ContentSize    uint32
	UserID         string
	SessionID      string
	Role           string
	IsAnonymous    bool
}

// OutputSnapshot captures the verdict the pipeline returned.
type OutputSnapshot struct {
	Safe             bool
	RiskScore        float32
	Actions          []string // highest priority first
	CrisisSeverity   int
	CrisisUrgency    string
	ModerationAction string
	Patterns         []string
	Anomalies        []string
	Degraded         []string
	LatencyMs        float32
}

// Entry is one immutable audit record.
type Entry struct {
	ID           string
	DecisionType string
	Timestamp    time.Time
	Input        InputSnapshot
	Output       OutputSnapshot
}

// Outcome is a reviewer's later judgment of one decision. Additive: an
// entry may accumulate several outcomes, and none ever replaces another.
type Outcome struct {
	AuditID   string
	Reviewer  string
	Label     string // one of the Label* constants
	Overrode  bool   // reviewer reversed the pipeline's action
	Note      string
	CreatedAt time.Time
}

// Recorder accepts decisions for persistence. Record must never block the
// hot path; a slow or failing store sheds entries rather than delaying a
// verdict.
type Recorder interface {
	Record(e *Entry)
	Close()
}

// Query bounds an analysis run.
type Query struct {
	Start           time.Time
	End             time.Time // zero means now
	IncludeOutcomes bool
}

// TrendBucket is one day of decision volume.
type TrendBucket struct {
	Day     string // YYYY-MM-DD, UTC
	Total   int
	Blocked int
	Crisis  int
}

// Analysis is the offline evaluation over a window of decisions. The
// labeled-rate fields are meaningful only when LabeledCount > 0.
type Analysis struct {
	TotalDecisions    int
	Breakdown         map[string]int // by highest-priority action
	CrisisDetections  int
	Blocked           int
	LabeledCount      int
	Accuracy          float64
	FalsePositiveRate float64
	FalseNegativeRate float64
	OverrideRate      float64
	DailyTrend        []TrendBucket
}

// Analyzer computes Analysis over the stored record.
type Analyzer interface {
	Analyze(ctx context.Context, q Query) (*Analysis, error)
}
