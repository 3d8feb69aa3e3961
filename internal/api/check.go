package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Damatnic/astral-safety/internal/pipeline"
)

const maxCheckBody = 1 << 20 // 1 MiB

// handleCheck runs one message through the safety pipeline.
func (d *Dependencies) handleCheck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCheckBody)

	var req CheckReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "sessionId is required"})
		return
	}

	verdict := d.Orchestrator.Check(r.Context(), pipeline.CheckRequest{
		Content:     req.Content,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		Role:        pipeline.ParseRole(req.MessageRole),
		IsAnonymous: req.IsAnonymous,
		Timestamp:   time.Now(),
	})

	writeJSON(w, http.StatusOK, toCheckResp(verdict))
}

func toCheckResp(v *pipeline.Verdict) CheckResp {
	resp := CheckResp{
		RequestID:       v.RequestID,
		Safe:            v.Safe,
		RiskScore:       v.RiskScore,
		Actions:         make([]string, 0, len(v.Actions)),
		Degraded:        v.Degraded,
		ExecutionTimeMs: v.ExecutionTimeMs,
	}
	for _, a := range v.Actions {
		resp.Actions = append(resp.Actions, a.String())
	}

	if v.Crisis != nil {
		resp.CrisisSignal = &CrisisSignalResp{
			Severity:        v.Crisis.Severity,
			Urgency:         v.Crisis.Urgency.String(),
			MatchedKeywords: v.Crisis.MatchedKeywords,
			Confidence:      v.Crisis.Confidence,
			ImmediateAction: v.Crisis.ImmediateAction,
		}
	}
	if v.Moderation != nil {
		resp.Moderation = &ModerationResp{
			Safe:      v.Moderation.Safe,
			Action:    v.Moderation.Action.String(),
			RiskScore: v.Moderation.RiskScore,
			Reason:    v.Moderation.Reason,
		}
	}
	if v.Behavior != nil {
		resp.Behavior = &BehaviorResp{
			Patterns:     v.Behavior.Patterns,
			RiskScore:    v.Behavior.RiskScore,
			MessageCount: v.Behavior.MessageCount,
		}
	}
	if v.Anomaly != nil {
		resp.Anomaly = &AnomalyResp{
			Anomalies: v.Anomaly.Anomalies,
			RiskScore: v.Anomaly.RiskScore,
			Severity:  v.Anomaly.Severity.String(),
		}
	}
	if v.Quality != nil {
		resp.Quality = &QualityResp{
			QualityScore: v.Quality.QualityScore,
			Empathy:      v.Quality.Empathy,
			Helpfulness:  v.Quality.Helpfulness,
			Approved:     v.Quality.Approved,
			Suggestions:  v.Quality.Suggestions,
		}
	}
	if v.Ethics != nil {
		resp.Ethics = &EthicsResp{
			FollowsGuidelines: v.Ethics.FollowsGuidelines,
			Violations:        v.Ethics.Violations,
			Severity:          v.Ethics.Severity.String(),
		}
	}
	return resp
}
