package pipeline

import "context"

// CrisisClassifier scans one message for self-harm and suicide risk.
// Implementations must respect ctx deadlines and return in well under
// the crisis sub-budget.
type CrisisClassifier interface {
	Classify(ctx context.Context, text string) CrisisSignal
}

// Moderator classifies toxicity and abuse. Crisis-role messages
// expressing self-harm ideation must never be blocked (see the
// classifiers package for the exemption rule).
type Moderator interface {
	Moderate(ctx context.Context, text string, role MessageRole) ModerationVerdict
}

// BehaviorObserver records one message against the sender's rolling
// history and returns trend signals. severity and risk come from the
// crisis classifier's run for the same message.
type BehaviorObserver interface {
	Observe(userID, text string, severity int, risk float32) BehaviorFinding
}

// AnomalyChecker runs session-level cadence and repetition checks.
type AnomalyChecker interface {
	Check(sessionID, text string) AnomalyFinding
}

// QualityAssessor evaluates volunteer replies before delivery.
type QualityAssessor interface {
	Assess(ctx context.Context, text string) QualityReport
	CheckEthics(ctx context.Context, text string) EthicsCheck
}
