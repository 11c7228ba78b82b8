package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/bus"
	"github.com/cffa-as/WealthTimeMachine/internal/cache"
	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/cffa-as/WealthTimeMachine/internal/planner"
	"github.com/cffa-as/WealthTimeMachine/internal/rationale"
	"github.com/cffa-as/WealthTimeMachine/internal/repository"
	"github.com/cffa-as/WealthTimeMachine/internal/risk"
	"github.com/cffa-as/WealthTimeMachine/internal/tiers"
	"github.com/cffa-as/WealthTimeMachine/internal/worker"
)

var testServerConfig = domain.ServerConfig{
	Host:           "localhost",
	Port:           8080,
	ReadTimeout:    30,
	WriteTimeout:   30,
	RequestTimeout: 10,
}

func newTestComposer(t *testing.T) *rationale.Composer {
	t.Helper()
	composer, err := rationale.NewComposer()
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}
	if err := composer.Load(rationale.DefaultClauses()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return composer
}

func newTestEngine(t *testing.T, composer *rationale.Composer) *planner.Engine {
	t.Helper()
	estimator := risk.NewEstimator(risk.NewTargetEstimator(domain.DefaultGoals()), nil, risk.NewFormulaScorer())
	return planner.NewEngine(tiers.Default(), estimator, composer, 500)
}

// createTestServer creates a server backed by an in-process cache.
func createTestServer(t *testing.T) *Server {
	t.Helper()
	composer := newTestComposer(t)
	return NewServer(testServerConfig, domain.RateLimitConfig{}, Options{
		Planner:    newTestEngine(t, composer),
		Composer:   composer,
		Cache:      cache.NewLRUCache(100),
		ScorerKind: "formula",
		Version:    "test-v1",
	})
}

func houseRequest() RecommendRequest {
	return RecommendRequest{Goal: "buy a house", CurrentAsset: 50000, MonthlyIncome: 15000, Age: 30}
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestRecommendEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HouseScenario", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/planning/recommend", houseRequest())
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		resp := decode[RecommendResponse](t, rr)
		if !resp.Success || resp.PlanID == "" || resp.Message == "" {
			t.Errorf("unexpected envelope: success=%v planId=%q message=%q", resp.Success, resp.PlanID, resp.Message)
		}
		if resp.RecommendedRisk != domain.TierLow {
			t.Errorf("expected recommendedRisk low, got %s", resp.RecommendedRisk)
		}
		if resp.GoalType != domain.GoalHouse {
			t.Errorf("expected goalType house, got %s", resp.GoalType)
		}
		if len(resp.Recommendations) != 3 {
			t.Fatalf("expected 3 recommendations, got %d", len(resp.Recommendations))
		}

		for _, tier := range domain.AllTiers {
			plan, ok := resp.Recommendations[tier]
			if !ok {
				t.Fatalf("missing tier %s", tier)
			}
			if plan.RecommendedRisk != tier {
				t.Errorf("%s: recommendedRisk = %s", tier, plan.RecommendedRisk)
			}
			if plan.TargetAmount != 1_000_000 {
				t.Errorf("%s: targetAmount = %v", tier, plan.TargetAmount)
			}
			if plan.Reason == "" {
				t.Errorf("%s: empty reason", tier)
			}
			if plan.CVaR95 != domain.Round(plan.VaR95*1.3, 2) {
				t.Errorf("%s: cvar95 %v is not 1.3 x var95 %v", tier, plan.CVaR95, plan.VaR95)
			}
			if plan.SavingsRate < 0.2 || plan.SavingsRate > 0.6 {
				t.Errorf("%s: savingsRate %v outside [0.2, 0.6]", tier, plan.SavingsRate)
			}
			a := plan.AssetAllocation
			if sum := a.Stocks + a.Bonds + a.Cash; math.Abs(sum-1) > 0.002 {
				t.Errorf("%s: allocation sums to %v", tier, sum)
			}
			mc := plan.MonteCarloSimulation
			if mc.ConfidenceInterval[0] != mc.ConfidenceInterval5 || mc.ConfidenceInterval[1] != mc.ConfidenceInterval95 {
				t.Errorf("%s: confidence interval pair mismatch", tier)
			}
			if mc.ConfidenceInterval5 > mc.Median || mc.Median > mc.ConfidenceInterval95 {
				t.Errorf("%s: percentiles out of order: %+v", tier, mc)
			}
			if plan.RiskFactors["asset_coverage"] != 0.05 {
				t.Errorf("%s: asset_coverage = %v", tier, plan.RiskFactors["asset_coverage"])
			}
		}

		low := resp.Recommendations[domain.TierLow]
		if low.ExpectedReturn != 5 || low.Volatility != 3 || low.MaxDrawdown != 5 {
			t.Errorf("low tier percentages: return=%v vol=%v dd=%v", low.ExpectedReturn, low.Volatility, low.MaxDrawdown)
		}
		if low.PlanStyle != "Conservative" {
			t.Errorf("low tier plan style = %s", low.PlanStyle)
		}
	})

	t.Run("IdenticalProfileIsCached", func(t *testing.T) {
		first := decode[RecommendResponse](t, do(t, server, http.MethodPost, "/api/planning/recommend", houseRequest()))
		second := decode[RecommendResponse](t, do(t, server, http.MethodPost, "/api/planning/recommend", houseRequest()))
		if first.PlanID != second.PlanID {
			t.Errorf("expected cached plan id %s, got %s", first.PlanID, second.PlanID)
		}
	})

	t.Run("DefaultAge", func(t *testing.T) {
		req := houseRequest()
		req.Age = 0
		rr := do(t, server, http.MethodPost, "/api/planning/recommend", req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		resp := decode[RecommendResponse](t, rr)
		if got := resp.Recommendations[domain.TierLow].RiskFactors["age_factor"]; got != 0.9 {
			t.Errorf("expected age factor 0.9 for default age 30, got %v", got)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/planning/recommend", "not-json")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidProfile", func(t *testing.T) {
		cases := map[string]RecommendRequest{
			"NegativeAsset":  {Goal: "car", CurrentAsset: -1, MonthlyIncome: 5000},
			"NegativeIncome": {Goal: "car", CurrentAsset: 1, MonthlyIncome: -5000},
			"AgeTooHigh":     {Goal: "car", CurrentAsset: 1, MonthlyIncome: 5000, Age: 200},
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				rr := do(t, server, http.MethodPost, "/api/planning/recommend", req)
				if rr.Code != http.StatusBadRequest {
					t.Errorf("expected status 400, got %d", rr.Code)
				}
			})
		}
	})

	t.Run("OverflowingAmounts", func(t *testing.T) {
		cases := map[string]RecommendRequest{
			"HugeBoth":   {Goal: "car", CurrentAsset: 1.7e308, MonthlyIncome: 1.7e308},
			"HugeIncome": {Goal: "car", CurrentAsset: 0, MonthlyIncome: 1.7e308},
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				rr := do(t, server, http.MethodPost, "/api/planning/recommend", req)
				if rr.Code != http.StatusBadRequest {
					t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
				}
			})
		}
	})

	t.Run("MaxAmountIsFinite", func(t *testing.T) {
		req := RecommendRequest{Goal: "car", CurrentAsset: 0, MonthlyIncome: domain.MaxAmount}
		rr := do(t, server, http.MethodPost, "/api/planning/recommend", req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		resp := decode[RecommendResponse](t, rr)
		for tier, plan := range resp.Recommendations {
			for name, v := range map[string]float64{
				"monthlySave":         plan.MonthlySave,
				"expectedFinalAmount": plan.ExpectedFinalAmount,
				"median":              plan.MonteCarloSimulation.Median,
			} {
				if math.IsInf(v, 0) || math.IsNaN(v) {
					t.Errorf("%s: %s is not finite", tier, name)
				}
			}
		}
	})

	t.Run("AsyncDisabled", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/planning/recommend?async=true", houseRequest())
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/planning/recommend", houseRequest())
		if rr.Header().Get(RequestIDHeader) == "" {
			t.Error("expected X-Request-ID header")
		}
		if rr.Header().Get(TraceIDHeader) == "" {
			t.Error("expected X-Trace-ID header")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rr.Header().Get("Content-Type"))
		}
	})
}

func TestGetPlanEndpoint(t *testing.T) {
	server := createTestServer(t)

	created := decode[RecommendResponse](t, do(t, server, http.MethodPost, "/api/planning/recommend", houseRequest()))

	t.Run("Found", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/api/planning/plans/"+created.PlanID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if got := decode[RecommendResponse](t, rr); got.PlanID != created.PlanID {
			t.Errorf("expected plan %s, got %s", created.PlanID, got.PlanID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/api/planning/plans/missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestAsyncRecommend(t *testing.T) {
	composer := newTestComposer(t)
	engine := newTestEngine(t, composer)
	planCache := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := worker.NewWorker(eventBus, planCache, engine, worker.Config{PlanTTL: time.Minute})
	if err := w.Start(); err != nil {
		t.Fatalf("worker start failed: %v", err)
	}
	defer w.Stop()

	server := NewServer(testServerConfig, domain.RateLimitConfig{}, Options{
		Planner: engine,
		Cache:   planCache,
		Bus:     eventBus,
		Async:   true,
	})

	rr := do(t, server, http.MethodPost, "/api/planning/recommend?async=true", houseRequest())
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	pending := decode[PlanStatusResponse](t, rr)
	if pending.PlanID == "" || pending.Status != domain.PlanPending {
		t.Fatalf("unexpected pending response: %+v", pending)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/planning/plans/"+pending.PlanID {
		t.Errorf("unexpected Location %q", loc)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rr = do(t, server, http.MethodGet, "/api/planning/plans/"+pending.PlanID, nil)
		if rr.Code == http.StatusOK {
			break
		}
		if rr.Code != http.StatusAccepted {
			t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
		}
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for async plan")
		}
		time.Sleep(20 * time.Millisecond)
	}

	resp := decode[RecommendResponse](t, rr)
	if resp.PlanID != pending.PlanID {
		t.Errorf("expected plan id %s, got %s", pending.PlanID, resp.PlanID)
	}
	if len(resp.Recommendations) != 3 {
		t.Errorf("expected 3 recommendations, got %d", len(resp.Recommendations))
	}
}

func TestAssessEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := do(t, server, http.MethodPost, "/api/planning/assess", houseRequest())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decode[AssessResponse](t, rr)
	if resp.RiskLevel != domain.TierLow {
		t.Errorf("expected riskLevel low, got %s", resp.RiskLevel)
	}
	if resp.RiskScore < 0 || resp.RiskScore > 1 {
		t.Errorf("riskScore %v outside [0,1]", resp.RiskScore)
	}
	if resp.TargetAmount != 1_000_000 || resp.GoalType != domain.GoalHouse {
		t.Errorf("unexpected target: %v %s", resp.TargetAmount, resp.GoalType)
	}
	if resp.MLEnhanced {
		t.Error("formula scorer should not be mlEnhanced")
	}
	if len(resp.RiskFactors) != 4 {
		t.Errorf("expected 4 risk factors, got %d", len(resp.RiskFactors))
	}
}

func TestListRiskTiers(t *testing.T) {
	server := createTestServer(t)

	rr := do(t, server, http.MethodGet, "/api/risk-tiers", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	resp := decode[struct {
		Tiers []TierView `json:"tiers"`
		Count int        `json:"count"`
	}](t, rr)
	if resp.Count != 3 || len(resp.Tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", resp.Count)
	}
	if resp.Tiers[0].Tier != domain.TierLow || resp.Tiers[2].Tier != domain.TierHigh {
		t.Errorf("unexpected tier order: %s..%s", resp.Tiers[0].Tier, resp.Tiers[2].Tier)
	}
	if resp.Tiers[2].ExpectedReturn != 9 {
		t.Errorf("expected high tier return 9%%, got %v", resp.Tiers[2].ExpectedReturn)
	}
}

func TestRateLimit(t *testing.T) {
	composer := newTestComposer(t)
	server := NewServer(testServerConfig, domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}, Options{
		Planner: newTestEngine(t, composer),
	})

	send := func(clientID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/risk-tiers", nil)
		req.Header.Set(ClientIDHeader, clientID)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("client-a"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}

	rr := send("client-a")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Buckets are per client.
	if rr := send("client-b"); rr.Code != http.StatusOK {
		t.Errorf("expected other client to pass, got %d", rr.Code)
	}

	// Health checks are never limited.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(ClientIDHeader, "client-a")
		hr := httptest.NewRecorder()
		server.Router().ServeHTTP(hr, req)
		if hr.Code != http.StatusOK {
			t.Fatalf("health request limited: %d", hr.Code)
		}
	}
}

func TestClauseEndpoints(t *testing.T) {
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if _, _, err := repository.Seed(ctx, repo, tiers.Defaults(), rationale.DefaultClauses()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	composer := newTestComposer(t)
	server := NewServer(testServerConfig, domain.RateLimitConfig{}, Options{
		Planner:  newTestEngine(t, composer),
		Composer: composer,
		Repo:     repo,
	})
	before := len(composer.Clauses())

	t.Run("SaveClause", func(t *testing.T) {
		clause := domain.RationaleClause{
			ID:        "age-prime",
			Group:     domain.GroupAge,
			Priority:  5,
			Condition: "age_factor >= 0.9",
			Template:  "you are at a prime age for building wealth",
			Enabled:   true,
		}
		rr := do(t, server, http.MethodPost, "/api/rationale/clauses", clause)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		if got := len(composer.Clauses()); got != before+1 {
			t.Errorf("expected %d loaded clauses, got %d", before+1, got)
		}

		list := decode[struct {
			Count int `json:"count"`
		}](t, do(t, server, http.MethodGet, "/api/rationale/clauses", nil))
		if list.Count != before+1 {
			t.Errorf("expected list count %d, got %d", before+1, list.Count)
		}
	})

	t.Run("RejectsInvalidCondition", func(t *testing.T) {
		clause := domain.RationaleClause{
			ID: "broken", Group: domain.GroupAge, Condition: "age_factor >", Template: "x", Enabled: true,
		}
		rr := do(t, server, http.MethodPost, "/api/rationale/clauses", clause)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RejectsMissingFields", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/rationale/clauses", domain.RationaleClause{ID: "x"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("DeleteClause", func(t *testing.T) {
		rr := do(t, server, http.MethodDelete, "/api/rationale/clauses/age-prime", nil)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rr.Code)
		}
		if got := len(composer.Clauses()); got != before {
			t.Errorf("expected %d loaded clauses after delete, got %d", before, got)
		}

		got := decode[domain.RationaleClause](t, do(t, server, http.MethodGet, "/api/rationale/clauses/age-prime", nil))
		if got.Enabled {
			t.Error("expected deleted clause to be disabled")
		}

		if rr := do(t, server, http.MethodDelete, "/api/rationale/clauses/missing", nil); rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/rationale/clauses/reload", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("HealthChecksRepository", func(t *testing.T) {
		resp := decode[struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}](t, do(t, server, http.MethodGet, "/health", nil))
		if resp.Status != "healthy" || resp.Checks["repository"] != "ok" {
			t.Errorf("unexpected health: %+v", resp)
		}
	})
}

func TestHealthAndReady(t *testing.T) {
	server := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rr := do(t, server, http.MethodGet, "/health", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
		resp := decode[map[string]any](t, rr)
		if resp["version"] != "test-v1" || resp["scorer"] != "formula" {
			t.Errorf("unexpected health response: %v", resp)
		}
	})

	t.Run("Ready", func(t *testing.T) {
		if rr := do(t, server, http.MethodGet, "/ready", nil); rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
		server.Handler().SetReady(false)
		if rr := do(t, server, http.MethodGet, "/ready", nil); rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/planning/recommend", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Errorf("unexpected allow origin %q", rr.Header().Get("Access-Control-Allow-Origin"))
		}
	})
}
