package api

import "net/http"

// handleStats reports the live operational summary.
func (d *Dependencies) handleStats(w http.ResponseWriter, r *http.Request) {
	s := d.Orchestrator.Stats()
	writeJSON(w, http.StatusOK, StatsResp{
		TotalChecks:      s.TotalChecks,
		BlockedContent:   s.BlockedContent,
		CrisisDetections: s.CrisisDetections,
		Accuracy:         s.Accuracy,
		SystemHealth:     s.SystemHealth.String(),
		ResponseTimeMs:   s.ResponseTimeMs,
	})
}
