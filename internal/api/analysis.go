package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Damatnic/astral-safety/internal/audit"
)

// handleAnalysis runs audit analytics over a time window. Defaults to the
// last 7 days when no bounds are given.
func (d *Dependencies) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if d.Analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Audit analytics not configured"})
		return
	}

	q := audit.Query{
		Start:           time.Now().Add(-7 * 24 * time.Hour),
		IncludeOutcomes: r.URL.Query().Get("include_outcomes") == "true",
	}

	if raw := r.URL.Query().Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "start must be RFC 3339"})
			return
		}
		q.Start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "end must be RFC 3339"})
			return
		}
		q.End = t
	}
	if !q.End.IsZero() && q.End.Before(q.Start) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "end precedes start"})
		return
	}

	analysis, err := d.Analyzer.Analyze(r.Context(), q)
	if err != nil {
		d.Logger.Error("audit analysis failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Analysis failed"})
		return
	}

	resp := AnalysisResp{
		TotalDecisions:    analysis.TotalDecisions,
		Breakdown:         analysis.Breakdown,
		CrisisDetections:  analysis.CrisisDetections,
		Blocked:           analysis.Blocked,
		LabeledCount:      analysis.LabeledCount,
		Accuracy:          analysis.Accuracy,
		FalsePositiveRate: analysis.FalsePositiveRate,
		FalseNegativeRate: analysis.FalseNegativeRate,
		OverrideRate:      analysis.OverrideRate,
		DailyTrend:        make([]TrendBucketResp, 0, len(analysis.DailyTrend)),
	}
	for _, b := range analysis.DailyTrend {
		resp.DailyTrend = append(resp.DailyTrend, TrendBucketResp{
			Day:     b.Day,
			Total:   b.Total,
			Blocked: b.Blocked,
			Crisis:  b.Crisis,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
