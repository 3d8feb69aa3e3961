package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Damatnic/astral-safety/internal/audit"
	"github.com/Damatnic/astral-safety/internal/pipeline"
	"github.com/Damatnic/astral-safety/internal/pipeline/classifiers"
)

func newTestDeps(t *testing.T) (*Dependencies, *audit.MemoryLedger) {
	t.Helper()
	ledger := audit.NewMemoryLedger()
	orch := pipeline.New(pipeline.Config{}, pipeline.Deps{
		Crisis:    classifiers.NewCrisisClassifier(nil),
		Moderator: classifiers.NewContentModerator(nil, 0.8),
		Recorder:  ledger,
		Analyzer:  ledger,
	})
	return &Dependencies{
		Orchestrator: orch,
		Analyzer:     ledger,
		Outcomes:     ledger,
	}, ledger
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleCheck(t *testing.T) {
	deps, ledger := newTestDeps(t)
	router := NewRouter(deps)

	rec := postJSON(t, router, "/v1/safety/check", CheckReq{
		Content:     "I just want to die",
		UserID:      "user-1",
		SessionID:   "session-1",
		MessageRole: "crisis",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp CheckResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Safe {
		t.Error("safe = true for crisis disclosure")
	}
	if resp.CrisisSignal == nil || resp.CrisisSignal.Severity < 9 {
		t.Errorf("crisis signal = %+v, want severity >= 9", resp.CrisisSignal)
	}
	if len(resp.Actions) == 0 || resp.Actions[0] != "EMERGENCY_SERVICES_IMMEDIATELY" {
		t.Errorf("actions = %v", resp.Actions)
	}
	if resp.RequestID == "" {
		t.Error("missing request id")
	}
	if ledger.Len() != 1 {
		t.Errorf("audit entries = %d, want 1", ledger.Len())
	}
}

func TestHandleCheck_BadRequests(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	t.Run("missing session", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/safety/check", CheckReq{Content: "hello"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/safety/check", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/safety/check", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestHandleStats(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	postJSON(t, router, "/v1/safety/check", CheckReq{
		Content: "lovely weather", SessionID: "s1", MessageRole: "general",
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/safety/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatsResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalChecks != 1 {
		t.Errorf("total checks = %d, want 1", resp.TotalChecks)
	}
	if resp.SystemHealth != "HEALTHY" {
		t.Errorf("health = %s", resp.SystemHealth)
	}
}

func TestHandleAnalysis(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	postJSON(t, router, "/v1/safety/check", CheckReq{
		Content: "You're a worthless piece of garbage", SessionID: "s1", MessageRole: "general",
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/safety/analysis", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp AnalysisResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalDecisions != 1 || resp.Blocked != 1 {
		t.Errorf("decisions = %d blocked = %d, want 1/1", resp.TotalDecisions, resp.Blocked)
	}
	if len(resp.DailyTrend) != 1 {
		t.Errorf("trend buckets = %d, want 1", len(resp.DailyTrend))
	}

	t.Run("bad time bound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/safety/analysis?start=yesterday", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleOutcome(t *testing.T) {
	deps, ledger := newTestDeps(t)
	router := NewRouter(deps)

	postJSON(t, router, "/v1/safety/check", CheckReq{
		Content: "I wish I was dead", UserID: "u1", SessionID: "s1", MessageRole: "crisis",
	})
	auditID := ledger.Entries()[0].ID

	rec := postJSON(t, router, "/v1/safety/audit/"+auditID+"/outcome", OutcomeReq{
		Reviewer: "clinician-1",
		Label:    audit.LabelTruePositive,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	t.Run("invalid label", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/safety/audit/"+auditID+"/outcome", OutcomeReq{
			Reviewer: "clinician-1",
			Label:    "maybe",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing reviewer", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/safety/audit/"+auditID+"/outcome", OutcomeReq{
			Label: audit.LabelTruePositive,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown audit id", func(t *testing.T) {
		rec := postJSON(t, router, "/v1/safety/audit/no-such-id/outcome", OutcomeReq{
			Reviewer: "clinician-1",
			Label:    audit.LabelTruePositive,
		})
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	deps, _ := newTestDeps(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	deps.APIKeyHash = string(hash)
	deps.CacheTTL = time.Minute
	router := NewRouter(deps)

	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/safety/stats", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		if rec := get(""); rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		if rec := get("wrong"); rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		if rec := get("secret-key"); rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		// Second call hits the validated-token cache.
		if rec := get("secret-key"); rec.Code != http.StatusOK {
			t.Errorf("cached status = %d, want 200", rec.Code)
		}
	})

	t.Run("health needs no auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestCORSPreflights(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodOptions, "/v1/safety/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
