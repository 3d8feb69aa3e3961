package api

// --- POST /v1/safety/check ---

// CheckReq is the JSON body for a safety check. Field names match the
// library surface so callers can move between in-process and HTTP use.
type CheckReq struct {
	Content     string `json:"content"`
	UserID      string `json:"userId,omitempty"`
	SessionID   string `json:"sessionId"`
	MessageRole string `json:"messageRole"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// CrisisSignalResp mirrors pipeline.CrisisSignal.
type CrisisSignalResp struct {
	Severity        int      `json:"severity"`
	Urgency         string   `json:"urgency"`
	MatchedKeywords []string `json:"matchedKeywords"`
	Confidence      float32  `json:"confidence"`
	ImmediateAction bool     `json:"immediateAction"`
}

// ModerationResp mirrors pipeline.ModerationVerdict.
type ModerationResp struct {
	Safe      bool    `json:"safe"`
	Action    string  `json:"action"`
	RiskScore float32 `json:"riskScore"`
	Reason    string  `json:"reason,omitempty"`
}

// BehaviorResp mirrors pipeline.BehaviorFinding.
type BehaviorResp struct {
	Patterns     []string `json:"patterns"`
	RiskScore    float32  `json:"riskScore"`
	MessageCount int      `json:"messageCount"`
}

// AnomalyResp mirrors pipeline.AnomalyFinding.
type AnomalyResp struct {
	Anomalies []string `json:"anomalies"`
	RiskScore float32  `json:"riskScore"`
	Severity  string   `json:"severity"`
}

// QualityResp mirrors pipeline.QualityReport.
type QualityResp struct {
	QualityScore float32  `json:"qualityScore"`
	Empathy      float32  `json:"empathy"`
	Helpfulness  float32  `json:"helpfulness"`
	Approved     bool     `json:"approved"`
	Suggestions  []string `json:"suggestions"`
}

// EthicsResp mirrors pipeline.EthicsCheck.
type EthicsResp struct {
	FollowsGuidelines bool     `json:"followsGuidelines"`
	Violations        []string `json:"violations"`
	Severity          string   `json:"severity"`
}

// CheckResp is the verdict returned for one message.
type CheckResp struct {
	RequestID       string            `json:"requestId"`
	Safe            bool              `json:"safe"`
	RiskScore       float32           `json:"riskScore"`
	Actions         []string          `json:"actions"`
	CrisisSignal    *CrisisSignalResp `json:"crisisSignal,omitempty"`
	Moderation      *ModerationResp   `json:"moderation,omitempty"`
	Behavior        *BehaviorResp     `json:"behavior,omitempty"`
	Anomaly         *AnomalyResp      `json:"anomaly,omitempty"`
	Quality         *QualityResp      `json:"quality,omitempty"`
	Ethics          *EthicsResp       `json:"ethics,omitempty"`
	Degraded        []string          `json:"degraded,omitempty"`
	ExecutionTimeMs float64           `json:"executionTimeMs"`
}

// --- GET /v1/safety/stats ---

// StatsResp is the live operational summary.
type StatsResp struct {
	TotalChecks      uint64  `json:"totalChecks"`
	BlockedContent   uint64  `json:"blockedContent"`
	CrisisDetections uint64  `json:"crisisDetections"`
	Accuracy         float64 `json:"accuracy"`
	SystemHealth     string  `json:"systemHealth"`
	ResponseTimeMs   float64 `json:"responseTimeMs"`
}

// --- GET /v1/safety/analysis ---

// TrendBucketResp is one day of decision volume.
type TrendBucketResp struct {
	Day     string `json:"day"`
	Total   int    `json:"total"`
	Blocked int    `json:"blocked"`
	Crisis  int    `json:"crisis"`
}

// AnalysisResp serializes an audit.Analysis.
type AnalysisResp struct {
	TotalDecisions    int               `json:"totalDecisions"`
	Breakdown         map[string]int    `json:"breakdown"`
	CrisisDetections  int               `json:"crisisDetections"`
	Blocked           int               `json:"blocked"`
	LabeledCount      int               `json:"labeledCount"`
	Accuracy          float64           `json:"accuracy"`
	FalsePositiveRate float64           `json:"falsePositiveRate"`
	FalseNegativeRate float64           `json:"falseNegativeRate"`
	OverrideRate      float64           `json:"overrideRate"`
	DailyTrend        []TrendBucketResp `json:"dailyTrend"`
}

// --- POST /v1/safety/audit/{audit_id}/outcome ---

// OutcomeReq is a reviewer's outcome annotation for one audit entry.
type OutcomeReq struct {
	Reviewer string `json:"reviewer"`
	Label    string `json:"label"`
	Overrode bool   `json:"overrode"`
	Note     string `json:"note,omitempty"`
}

// ErrorResp is the uniform error body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
