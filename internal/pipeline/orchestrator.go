package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Damatnic/astral-safety/internal/audit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the orchestrator's latency budgets and limits.
type Config struct {
	TotalBudget     time.Duration // end-to-end classification budget (default 100ms)
	CrisisBudget    time.Duration // crisis classifier sub-budget (default 50ms)
	MaxContentRunes int           // oversized content is clamped to this before classification (default 10_000)
	PreviewRunes    int           // audit content preview length (default 200)
	AccuracyTTL     time.Duration // stats accuracy cache lifetime (default 30s)
}

func (c *Config) applyDefaults() {
	if c.TotalBudget <= 0 {
		c.TotalBudget = 100 * time.Millisecond
	}
	if c.CrisisBudget <= 0 {
		c.CrisisBudget = 50 * time.Millisecond
	}
	if c.MaxContentRunes <= 0 {
		c.MaxContentRunes = 10_000
	}
	if c.PreviewRunes <= 0 {
		c.PreviewRunes = 200
	}
	if c.AccuracyTTL <= 0 {
		c.AccuracyTTL = 30 * time.Second
	}
}

// Deps are the orchestrator's collaborators. Crisis, Moderator and
// Recorder are required; the rest may be nil and their contribution is
// simply absent.
type Deps struct {
	Crisis    CrisisClassifier
	Moderator Moderator
	Behavior  BehaviorObserver
	Anomaly   AnomalyChecker
	Quality   QualityAssessor
	Recorder  audit.Recorder
	Analyzer  audit.Analyzer // optional; feeds Stats().Accuracy
	Logger    *zap.Logger
}

// Orchestrator fans each safety check out to the classifiers applicable to
// the message's role, joins them under the latency budget, aggregates one
// verdict, and persists the decision asynchronously. It is the only
// component the rest of the system talks to. Constructed once at process
// startup and passed by reference; there is no global instance.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	totalChecks      atomic.Uint64
	blockedContent   atomic.Uint64
	crisisDetections atomic.Uint64
	classifierFaults atomic.Uint64
	latencyEWMABits  atomic.Uint64 // float64 bits, exponentially weighted

	accMu         sync.Mutex
	accuracy      float64
	accFetchedAt  time.Time
	accRefreshing atomic.Bool
}

// New builds an orchestrator. The logger defaults to zap.NewNop so tests
// can omit it.
func New(cfg Config, deps Deps) *Orchestrator {
	cfg.applyDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		accuracy: 1.0,
	}
}

// taskResult is one classifier goroutine's contribution, sent through the
// join channel.
type taskResult struct {
	name       string
	fault      bool
	crisis     *CrisisSignal
	moderation *ModerationVerdict
	anomaly    *AnomalyFinding
	quality    *QualityReport
	ethics     *EthicsCheck
}

// Check runs one complete safety decision. It never returns an error and
// never panics through to the caller: silence on a crisis message is the
// worst possible failure mode, so every path ends in a verdict.
func (o *Orchestrator) Check(ctx context.Context, req CheckRequest) (verdict *Verdict) {
	start := time.Now()
	requestID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("safety check panicked, returning conservative verdict",
				zap.String("request_id", requestID),
				zap.Any("panic", r),
			)
			verdict = o.conservativeVerdict(requestID, start)
		}
		o.finish(req, verdict, start)
	}()

	content := clampRunes(req.Content, o.cfg.MaxContentRunes)
	if strings.TrimSpace(content) == "" {
		return &Verdict{
			RequestID:       requestID,
			Safe:            true,
			RiskScore:       0,
			Actions:         []Action{ActionAllow},
			ExecutionTimeMs: msSince(start),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TotalBudget)
	defer cancel()

	results, degraded := o.fanOut(ctx, content, req)

	in := aggregationInput{Role: req.Role}
	for _, r := range results {
		if r.crisis != nil {
			in.Crisis = r.crisis
		}
		if r.moderation != nil {
			in.Moderation = r.moderation
		}
		if r.anomaly != nil {
			in.Anomaly = r.anomaly
		}
		if r.quality != nil {
			in.Quality = r.quality
		}
		if r.ethics != nil {
			in.Ethics = r.ethics
		}
	}
	o.applyFallbacks(&in, req.Role, degraded)

	// Behavior tracking consumes the crisis score for the same message, so
	// it runs after the join. It is an in-memory operation far below the
	// remaining budget.
	if req.Role != RoleVolunteer && o.deps.Behavior != nil && req.UserID != "" && in.Crisis != nil {
		finding := o.deps.Behavior.Observe(req.UserID, content, in.Crisis.Severity, in.Crisis.Risk())
		in.Behavior = &finding
	}

	risk, safe, actions := aggregate(in)

	return &Verdict{
		RequestID:       requestID,
		Safe:            safe,
		RiskScore:       risk,
		Actions:         actions,
		Crisis:          in.Crisis,
		Moderation:      in.Moderation,
		Behavior:        in.Behavior,
		Anomaly:         in.Anomaly,
		Quality:         in.Quality,
		Ethics:          in.Ethics,
		Degraded:        degraded,
		ExecutionTimeMs: msSince(start),
	}
}

// fanOut spawns the classifiers applicable to the role and collects their
// results until all report or the budget expires. Each goroutine sends
// into a buffered channel sized for every task, so late finishers never
// block and are simply unread after the deadline.
func (o *Orchestrator) fanOut(ctx context.Context, content string, req CheckRequest) ([]taskResult, []string) {
	type task struct {
		name string
		run  func(context.Context) taskResult
	}

	role := req.Role
	var tasks []task
	if role == RoleVolunteer {
		if o.deps.Quality != nil {
			tasks = append(tasks, task{"quality", func(tctx context.Context) taskResult {
				q := o.deps.Quality.Assess(tctx, content)
				e := o.deps.Quality.CheckEthics(tctx, content)
				return taskResult{name: "quality", quality: &q, ethics: &e}
			}})
		}
		tasks = append(tasks, task{"moderation", func(tctx context.Context) taskResult {
			v := o.deps.Moderator.Moderate(tctx, content, role)
			return taskResult{name: "moderation", moderation: &v}
		}})
	} else {
		tasks = append(tasks, task{"crisis", func(tctx context.Context) taskResult {
			cctx, ccancel := context.WithTimeout(tctx, o.cfg.CrisisBudget)
			defer ccancel()
			sig := o.deps.Crisis.Classify(cctx, content)
			// A scan cut short by the sub-budget may have under-counted;
			// flag it so the fallback can raise the floor.
			return taskResult{name: "crisis", crisis: &sig, fault: cctx.Err() != nil}
		}})
		tasks = append(tasks, task{"moderation", func(tctx context.Context) taskResult {
			v := o.deps.Moderator.Moderate(tctx, content, role)
			return taskResult{name: "moderation", moderation: &v}
		}})
		if o.deps.Anomaly != nil {
			tasks = append(tasks, task{"anomaly", func(tctx context.Context) taskResult {
				f := o.deps.Anomaly.Check(req.SessionID, content)
				return taskResult{name: "anomaly", anomaly: &f}
			}})
		}
	}

	ch := make(chan taskResult, len(tasks))
	for _, t := range tasks {
		go func(t task) {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("classifier panicked",
						zap.String("classifier", t.name),
						zap.Any("panic", r),
					)
					ch <- taskResult{name: t.name, fault: true}
				}
			}()
			ch <- t.run(ctx)
		}(t)
	}

	collected := make([]taskResult, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	remaining := len(tasks)
	for remaining > 0 {
		select {
		case r := <-ch:
			seen[r.name] = true
			if r.fault {
				o.classifierFaults.Add(1)
			}
			collected = append(collected, r)
			remaining--
		case <-ctx.Done():
			o.logger.Warn("classification budget exceeded, proceeding with partial results",
				zap.Duration("budget", o.cfg.TotalBudget),
			)
			remaining = 0
		}
	}

	var degraded []string
	for _, t := range tasks {
		if !seen[t.name] {
			degraded = append(degraded, t.name)
			o.classifierFaults.Add(1)
		}
	}
	for _, r := range collected {
		if r.fault {
			degraded = appendMissing(degraded, r.name)
		}
	}
	return collected, degraded
}

// applyFallbacks substitutes cautious defaults for classifiers that timed
// out or failed. A missing signal is treated as "unknown, elevated" —
// never as safe.
func (o *Orchestrator) applyFallbacks(in *aggregationInput, role MessageRole, degraded []string) {
	for _, name := range degraded {
		switch name {
		case "crisis":
			// Keep a partial scan's finding when it already cleared the
			// cautious floor; otherwise raise to it.
			if in.Crisis == nil || in.Crisis.Severity < 6 {
				in.Crisis = &CrisisSignal{
					Severity: 6,
					Urgency:  UrgencyHigh,
				}
			}
		case "moderation":
			if in.Moderation == nil {
				in.Moderation = &ModerationVerdict{
					Safe:      false,
					Action:    ModFlag,
					RiskScore: 0.6,
					Reason:    "moderation unavailable",
				}
			}
		case "quality":
			if in.Quality == nil {
				in.Quality = &QualityReport{
					Approved:    false,
					Suggestions: []string{"Automated review was unavailable; this reply is held for manual review."},
				}
			}
		}
	}

	if role != RoleVolunteer && in.Crisis == nil {
		in.Crisis = &CrisisSignal{Urgency: UrgencyLow}
	}
	if in.Moderation == nil {
		in.Moderation = &ModerationVerdict{Safe: true, Action: ModAllow}
	}
}

// conservativeVerdict is the last-resort output when the pipeline itself
// faulted: not safe, elevated risk, routed to a human.
func (o *Orchestrator) conservativeVerdict(requestID string, start time.Time) *Verdict {
	return &Verdict{
		RequestID:       requestID,
		Safe:            false,
		RiskScore:       0.6,
		Actions:         []Action{ActionPriorityIntervention},
		Degraded:        []string{"pipeline"},
		ExecutionTimeMs: msSince(start),
	}
}

// finish updates counters and fires the audit record. Runs for every
// check, including panicked ones.
func (o *Orchestrator) finish(req CheckRequest, v *Verdict, start time.Time) {
	if v == nil {
		return
	}
	o.totalChecks.Add(1)
	if v.HasAction(ActionBlockMessage) {
		o.blockedContent.Add(1)
	}
	if v.Crisis != nil && v.Crisis.Severity >= 7 {
		o.crisisDetections.Add(1)
	}
	o.observeLatency(v.ExecutionTimeMs)

	if o.deps.Recorder != nil {
		o.deps.Recorder.Record(o.buildEntry(req, v))
	}
}

func (o *Orchestrator) buildEntry(req CheckRequest, v *Verdict) *audit.Entry {
	hash := sha256.Sum256([]byte(req.Content))

	out := audit.OutputSnapshot{
		Safe:      v.Safe,
		RiskScore: v.RiskScore,
		Degraded:  v.Degraded,
		LatencyMs: float32(v.ExecutionTimeMs),
	}
	for _, a := range v.Actions {
		out.Actions = append(out.Actions, a.String())
	}
	if v.Crisis != nil {
		out.CrisisSeverity = v.Crisis.Severity
		out.CrisisUrgency = v.Crisis.Urgency.String()
	}
	if v.Moderation != nil {
		out.ModerationAction = v.Moderation.Action.String()
	}
	if v.Behavior != nil {
		out.Patterns = v.Behavior.Patterns
	}
	if v.Anomaly != nil {
		out.Anomalies = v.Anomaly.Anomalies
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &audit.Entry{
		ID:           v.RequestID,
		DecisionType: audit.DecisionSafetyCheck,
		Timestamp:    ts,
		Input: audit.InputSnapshot{
			ContentPreview: clampRunes(req.Content, o.cfg.PreviewRunes),
			ContentHash:    hex.EncodeToString(hash[:]),
			ContentSize:    uint32(len(req.Content)),
			UserID:         req.UserID,
			SessionID:      req.SessionID,
			Role:           req.Role.String(),
			IsAnonymous:    req.IsAnonymous,
		},
		Output: out,
	}
}

// Stats returns the live operational summary.
func (o *Orchestrator) Stats() Stats {
	total := o.totalChecks.Load()
	faults := o.classifierFaults.Load()
	latency := math.Float64frombits(o.latencyEWMABits.Load())

	health := HealthHealthy
	budgetMs := float64(o.cfg.TotalBudget) / float64(time.Millisecond)
	if total > 0 {
		ratio := float64(faults) / float64(total)
		switch {
		case ratio > 0.25 || latency > 3*budgetMs:
			health = HealthCritical
		case ratio > 0.05 || latency > budgetMs:
			health = HealthDegraded
		}
	}

	return Stats{
		TotalChecks:      total,
		BlockedContent:   o.blockedContent.Load(),
		CrisisDetections: o.crisisDetections.Load(),
		Accuracy:         o.currentAccuracy(),
		SystemHealth:     health,
		ResponseTimeMs:   latency,
	}
}

// currentAccuracy serves the cached outcome-labeled accuracy,
// stale-while-revalidate: an expired value is returned immediately and
// refreshed by a single background goroutine.
func (o *Orchestrator) currentAccuracy() float64 {
	o.accMu.Lock()
	acc := o.accuracy
	stale := time.Since(o.accFetchedAt) > o.cfg.AccuracyTTL
	o.accMu.Unlock()

	if stale && o.deps.Analyzer != nil && o.accRefreshing.CompareAndSwap(false, true) {
		go o.refreshAccuracy()
	}
	return acc
}

func (o *Orchestrator) refreshAccuracy() {
	defer o.accRefreshing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	analysis, err := o.deps.Analyzer.Analyze(ctx, audit.Query{
		Start:           time.Now().Add(-7 * 24 * time.Hour),
		IncludeOutcomes: true,
	})
	if err != nil {
		o.logger.Warn("accuracy refresh failed", zap.Error(err))
		return
	}

	acc := 1.0
	if analysis.LabeledCount > 0 {
		acc = analysis.Accuracy
	}

	o.accMu.Lock()
	o.accuracy = acc
	o.accFetchedAt = time.Now()
	o.accMu.Unlock()
}

// observeLatency folds one sample into the EWMA (weight 0.1).
func (o *Orchestrator) observeLatency(ms float64) {
	for {
		oldBits := o.latencyEWMABits.Load()
		old := math.Float64frombits(oldBits)
		next := old*0.9 + ms*0.1
		if old == 0 {
			next = ms
		}
		if o.latencyEWMABits.CompareAndSwap(oldBits, math.Float64bits(next)) {
			return
		}
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func clampRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func appendMissing(list []string, s string) []string {
	for _, got := range list {
		if got == s {
			return list
		}
	}
	return append(list, s)
}

