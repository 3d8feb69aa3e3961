package pipeline

import "time"

// CheckRequest carries one inbound message plus its context through the
// pipeline. Constructed per message, never mutated.
type CheckRequest struct {
	Content     string
	UserID      string // empty for anonymous senders
	SessionID   string
	Role        MessageRole
	IsAnonymous bool
	Timestamp   time.Time
}

// CrisisSignal is the keyword crisis classifier's output. Derived fresh per
// request; never mutated after creation.
type CrisisSignal struct {
	Severity        int // 0–10
	Urgency         Urgency
	MatchedKeywords []string
	Confidence      float32 // 0–1
	ImmediateAction bool
}

// Risk converts the 0–10 severity scale to the pipeline's 0–1 risk scale.
func (s CrisisSignal) Risk() float32 {
	if s.Severity <= 0 {
		return 0
	}
	if s.Severity >= 10 {
		return 1
	}
	return float32(s.Severity) / 10
}

// ModerationVerdict is the content moderator's output for one message.
type ModerationVerdict struct {
	Safe      bool
	Action    ModAction
	RiskScore float32
	Reason    string
}

// BehaviorFinding is the behavior tracker's per-message contribution,
// derived from the sender's rolling history.
type BehaviorFinding struct {
	Patterns     []string // e.g. ESCALATING_SEVERITY
	RiskScore    float32
	MessageCount int // messages currently in the sender's window
}

// AnomalyFinding is the anomaly detector's session-level contribution.
// Anomalies raise risk but never force a block on their own.
type AnomalyFinding struct {
	Anomalies []string // e.g. RAPID_MESSAGING, POTENTIAL_BOT
	RiskScore float32
	Severity  Urgency
}

// QualityReport scores a volunteer reply before delivery.
type QualityReport struct {
	QualityScore float32 // 0–1
	Empathy      float32
	Helpfulness  float32
	Approved     bool
	Suggestions  []string
}

// EthicsCheck flags guideline violations in a volunteer reply.
type EthicsCheck struct {
	FollowsGuidelines bool
	Violations        []string
	Severity          Urgency
}

// Verdict is the single aggregated decision returned per message. Actions
// is sorted highest-priority first. Safe=false means the message needs
// intervention before (or instead of) normal delivery; for crisis speech
// that still means deliver-and-escalate, never silent dropping.
type Verdict struct {
	RequestID       string
	Safe            bool
	RiskScore       float32 // 0–1, clamped
	Actions         []Action
	Crisis          *CrisisSignal
	Moderation      *ModerationVerdict
	Behavior        *BehaviorFinding
	Anomaly         *AnomalyFinding
	Quality         *QualityReport
	Ethics          *EthicsCheck
	Degraded        []string // classifiers that timed out or failed
	ExecutionTimeMs float64
}

// TopAction returns the highest-priority action in the verdict.
func (v *Verdict) TopAction() Action {
	if len(v.Actions) == 0 {
		return ActionAllow
	}
	return v.Actions[0]
}

// HasAction reports whether the verdict carries the given action tag.
func (v *Verdict) HasAction(a Action) bool {
	for _, got := range v.Actions {
		if got == a {
			return true
		}
	}
	return false
}

// Stats is the live operational summary exposed by the orchestrator.
type Stats struct {
	TotalChecks      uint64
	BlockedContent   uint64
	CrisisDetections uint64
	Accuracy         float64
	SystemHealth     SystemHealth
	ResponseTimeMs   float64
}
