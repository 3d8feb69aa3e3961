package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryLedger is an in-process append-only ledger. It backs local
// development and tests, and serves as the fallback when no ClickHouse DSN
// is configured. Implements both Recorder and Analyzer, plus outcome
// annotation, so the full audit surface works without external stores.
type MemoryLedger struct {
	mu       sync.RWMutex
	entries  []*Entry
	outcomes map[string][]Outcome // audit ID -> additive outcome records
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{outcomes: make(map[string][]Outcome)}
}

// Record appends the entry. An in-process append is far below the hot
// path's budget, so no buffering is needed here.
func (l *MemoryLedger) Record(e *Entry) {
	if e == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

func (l *MemoryLedger) Close() {}

// AttachOutcome appends a reviewer outcome for an existing entry.
func (l *MemoryLedger) AttachOutcome(o Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	found := false
	for _, e := range l.entries {
		if e.ID == o.AuditID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("AttachOutcome: unknown audit id %q", o.AuditID)
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	l.outcomes[o.AuditID] = append(l.outcomes[o.AuditID], o)
	return nil
}

// Insert satisfies the outcome-sink surface shared with the SQL-backed
// store.
func (l *MemoryLedger) Insert(ctx context.Context, o Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.AttachOutcome(o)
}

// Entries returns a snapshot of all recorded entries, oldest first.
func (l *MemoryLedger) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Analyze computes decision and outcome statistics over [q.Start, q.End].
func (l *MemoryLedger) Analyze(ctx context.Context, q Query) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := q.End
	if end.IsZero() {
		end = time.Now()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	a := &Analysis{Breakdown: make(map[string]int)}
	days := make(map[string]*TrendBucket)

	for _, e := range l.entries {
		if e.Timestamp.Before(q.Start) || e.Timestamp.After(end) {
			continue
		}
		a.TotalDecisions++

		top := ""
		if len(e.Output.Actions) > 0 {
			top = e.Output.Actions[0]
		}
		a.Breakdown[top]++

		blocked := hasAction(e.Output.Actions, "BLOCK_MESSAGE")
		crisis := e.Output.CrisisSeverity >= 7
		if blocked {
			a.Blocked++
		}
		if crisis {
			a.CrisisDetections++
		}

		day := e.Timestamp.UTC().Format("2006-01-02")
		b, ok := days[day]
		if !ok {
			b = &TrendBucket{Day: day}
			days[day] = b
		}
		b.Total++
		if blocked {
			b.Blocked++
		}
		if crisis {
			b.Crisis++
		}

		if q.IncludeOutcomes {
			tallyOutcomes(a, l.outcomes[e.ID])
		}
	}

	finishLabeled(a)
	a.DailyTrend = sortTrend(days)
	return a, nil
}

// tallyOutcomes folds one entry's outcome records into the running counts,
// reusing Accuracy/rates fields as raw counters until finishLabeled.
func tallyOutcomes(a *Analysis, outcomes []Outcome) {
	for _, o := range outcomes {
		a.LabeledCount++
		switch o.Label {
		case LabelTruePositive, LabelTrueNegative:
			a.Accuracy++
		case LabelFalsePositive:
			a.FalsePositiveRate++
		case LabelFalseNegative:
			a.FalseNegativeRate++
		}
		if o.Overrode {
			a.OverrideRate++
		}
	}
}

// finishLabeled converts raw outcome counters to rates.
func finishLabeled(a *Analysis) {
	if a.LabeledCount == 0 {
		a.Accuracy = 0
		a.FalsePositiveRate = 0
		a.FalseNegativeRate = 0
		a.OverrideRate = 0
		return
	}
	n := float64(a.LabeledCount)
	a.Accuracy /= n
	a.FalsePositiveRate /= n
	a.FalseNegativeRate /= n
	a.OverrideRate /= n
}

func hasAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func sortTrend(days map[string]*TrendBucket) []TrendBucket {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	// Day strings are ISO dates, so lexical order is chronological.
	sort.Strings(keys)
	out := make([]TrendBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, *days[k])
	}
	return out
}
