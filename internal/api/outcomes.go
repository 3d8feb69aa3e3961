package api

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Damatnic/astral-safety/internal/audit"
)

var validLabels = map[string]bool{
	audit.LabelTruePositive:  true,
	audit.LabelFalsePositive: true,
	audit.LabelTrueNegative:  true,
	audit.LabelFalseNegative: true,
}

// handleOutcome attaches a reviewer's label to an audited decision.
func (d *Dependencies) handleOutcome(w http.ResponseWriter, r *http.Request) {
	if d.Outcomes == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Outcome store not configured"})
		return
	}

	auditID := r.PathValue("audit_id")
	if auditID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "audit_id is required"})
		return
	}

	var req OutcomeReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Reviewer) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "reviewer is required"})
		return
	}
	if !validLabels[req.Label] {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "label must be one of true_positive, false_positive, true_negative, false_negative"})
		return
	}

	out := audit.Outcome{
		AuditID:   auditID,
		Reviewer:  req.Reviewer,
		Label:     req.Label,
		Overrode:  req.Overrode,
		Note:      req.Note,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.Outcomes.Insert(r.Context(), out); err != nil {
		d.Logger.Error("outcome insert failed",
			zap.String("audit_id", auditID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to record outcome"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"auditId": auditID, "status": "recorded"})
}
