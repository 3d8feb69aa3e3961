package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Damatnic/astral-safety/internal/audit"
	"github.com/Damatnic/astral-safety/internal/pipeline"
)

// OutcomeSink persists reviewer outcomes for audited decisions.
type OutcomeSink interface {
	Insert(ctx context.Context, out audit.Outcome) error
}

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Orchestrator *pipeline.Orchestrator
	Analyzer     audit.Analyzer
	Outcomes     OutcomeSink
	Logger       *zap.Logger
	APIKeyHash   string
	CacheTTL     time.Duration
}

// NewRouter builds the HTTP handler with auth, CORS and request logging.
func NewRouter(d *Dependencies) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Minute
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/safety/check", d.authMiddleware(d.handleCheck))
	mux.HandleFunc("GET /v1/safety/stats", d.authMiddleware(d.handleStats))
	mux.HandleFunc("GET /v1/safety/analysis", d.authMiddleware(d.handleAnalysis))
	mux.HandleFunc("POST /v1/safety/audit/{audit_id}/outcome", d.authMiddleware(d.handleOutcome))
	mux.HandleFunc("GET /healthz", d.handleHealth)

	return corsMiddleware(requestLogging(mux, d.Logger))
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
