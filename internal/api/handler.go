package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/cffa-as/WealthTimeMachine/internal/repository"
	"github.com/cffa-as/WealthTimeMachine/internal/tiers"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Planner computes assessments and recommendation sets.
type Planner interface {
	Recommend(ctx context.Context, profile domain.FinancialProfile) (*domain.RecommendationSet, error)
	Assess(profile domain.FinancialProfile) (domain.RiskAssessment, error)
	Tiers() *tiers.Table
}

// ClauseManager validates and swaps rationale clauses.
type ClauseManager interface {
	Validate(clause *domain.RationaleClause) error
	Load(clauses []*domain.RationaleClause) error
	Clauses() []*domain.RationaleClause
}

// Options holds the handler dependencies. Repo, Cache, Bus and Composer may
// be nil; the endpoints that need them then answer 503.
type Options struct {
	Planner  Planner
	Composer ClauseManager
	Repo     domain.Repository
	Cache    domain.Cache
	Bus      domain.EventBus

	// Async enables ?async=true on the recommend endpoint.
	Async bool

	PlanTTL        time.Duration
	RequestTimeout time.Duration
	ScorerKind     string
	Version        string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	opts  Options
	group singleflight.Group
	ready atomic.Bool
}

// NewHandler creates a new API handler. It reports ready immediately.
func NewHandler(opts Options) *Handler {
	if opts.PlanTTL <= 0 {
		opts.PlanTTL = time.Hour
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 20 * time.Second
	}
	h := &Handler{opts: opts}
	h.ready.Store(true)
	return h
}

// SetReady flips the readiness probe.
func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (domain.FinancialProfile, bool) {
	var req RecommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return domain.FinancialProfile{}, false
	}

	profile := req.profile()
	profile.Normalize()
	if err := profile.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return domain.FinancialProfile{}, false
	}
	return profile, true
}

// profileKey digests a normalized profile into a cache key.
func profileKey(p domain.FinancialProfile) string {
	sum := sha256.New()
	sum.Write([]byte(p.Goal))
	sum.Write([]byte{0})
	sum.Write(strconv.AppendFloat(nil, p.CurrentAsset, 'g', -1, 64))
	sum.Write([]byte{0})
	sum.Write(strconv.AppendFloat(nil, p.MonthlyIncome, 'g', -1, 64))
	sum.Write([]byte{0})
	sum.Write(strconv.AppendInt(nil, int64(p.Age), 10))
	return hex.EncodeToString(sum.Sum(nil))
}

// Recommend handles POST /api/planning/recommend.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	profile, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.recommendAsync(w, r, profile)
		return
	}

	set, err := h.recommend(r.Context(), profile)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendView(set))
}

// recommend returns a cached set for an identical profile, otherwise computes
// one. Concurrent identical requests share a single computation.
func (h *Handler) recommend(ctx context.Context, profile domain.FinancialProfile) (*domain.RecommendationSet, error) {
	key := profileKey(profile)

	if set := h.cachedSet(ctx, key); set != nil {
		return set, nil
	}

	v, err, shared := h.group.Do(key, func() (any, error) {
		// Detached so one caller going away does not fail the others.
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.RequestTimeout)
		defer cancel()

		set, err := h.opts.Planner.Recommend(computeCtx, profile)
		if err != nil {
			return nil, err
		}
		h.storeSet(computeCtx, key, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("recommendation shared", "plan_id", v.(*domain.RecommendationSet).ID)
	}
	return v.(*domain.RecommendationSet), nil
}

func (h *Handler) cachedSet(ctx context.Context, key string) *domain.RecommendationSet {
	if h.opts.Cache == nil {
		return nil
	}
	planID, err := h.opts.Cache.Get(ctx, domain.NamespaceProfile, key)
	if err != nil || planID == nil {
		return nil
	}
	entry, err := h.opts.Cache.GetPlan(ctx, string(planID))
	if err != nil || entry == nil || entry.Status != domain.PlanReady || entry.Result == nil {
		return nil
	}
	return entry.Result
}

func (h *Handler) storeSet(ctx context.Context, key string, set *domain.RecommendationSet) {
	if h.opts.Cache == nil {
		return
	}
	entry := &domain.PlanEntry{ID: set.ID, Status: domain.PlanReady, Result: set}
	if err := h.opts.Cache.SetPlan(ctx, set.ID, entry, h.opts.PlanTTL); err != nil {
		slog.Warn("failed to cache plan", "plan_id", set.ID, "error", err)
		return
	}
	if err := h.opts.Cache.Set(ctx, domain.NamespaceProfile, key, []byte(set.ID), h.opts.PlanTTL); err != nil {
		slog.Warn("failed to cache profile digest", "plan_id", set.ID, "error", err)
	}
}

func (h *Handler) recommendAsync(w http.ResponseWriter, r *http.Request, profile domain.FinancialProfile) {
	ctx := r.Context()
	if !h.opts.Async || h.opts.Bus == nil || h.opts.Cache == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "asynchronous planning is not enabled",
		})
		return
	}

	planID := uuid.New().String()
	pending := &domain.PlanEntry{ID: planID, Status: domain.PlanPending}
	if err := h.opts.Cache.SetPlan(ctx, planID, pending, h.opts.PlanTTL); err != nil {
		slog.Error("failed to store pending plan", "plan_id", planID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "plan store unavailable",
		})
		return
	}

	payload, err := json.Marshal(domain.PlanRequest{PlanID: planID, Profile: profile})
	if err != nil {
		slog.Error("failed to encode plan request", "plan_id", planID, "error", err)
		failed := &domain.PlanEntry{ID: planID, Status: domain.PlanFailed, Error: "plan request could not be encoded"}
		_ = h.opts.Cache.SetPlan(ctx, planID, failed, h.opts.PlanTTL)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue plan",
		})
		return
	}
	if err := h.opts.Bus.Publish(ctx, domain.TopicPlanRequested, payload); err != nil {
		slog.Error("failed to publish plan request", "plan_id", planID, "error", err)
		failed := &domain.PlanEntry{ID: planID, Status: domain.PlanFailed, Error: "plan queue unavailable"}
		_ = h.opts.Cache.SetPlan(ctx, planID, failed, h.opts.PlanTTL)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "plan queue unavailable",
		})
		return
	}

	w.Header().Set("Location", "/api/planning/plans/"+planID)
	writeJSON(w, http.StatusAccepted, PlanStatusResponse{PlanID: planID, Status: domain.PlanPending})
}

// GetPlan handles GET /api/planning/plans/{id}.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")
	if planID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "plan id is required",
		})
		return
	}

	if h.opts.Cache == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "plan store not available",
		})
		return
	}

	entry, err := h.opts.Cache.GetPlan(r.Context(), planID)
	if err != nil {
		slog.Error("failed to get plan", "plan_id", planID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to read plan",
		})
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "plan not found or expired",
		})
		return
	}

	switch entry.Status {
	case domain.PlanReady:
		writeJSON(w, http.StatusOK, recommendView(entry.Result))
	case domain.PlanPending:
		writeJSON(w, http.StatusAccepted, PlanStatusResponse{PlanID: planID, Status: entry.Status})
	default:
		writeJSON(w, http.StatusInternalServerError, PlanStatusResponse{PlanID: planID, Status: entry.Status, Error: entry.Error})
	}
}

// Assess handles POST /api/planning/assess.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	profile, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	assessment, err := h.opts.Planner.Assess(profile)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assessView(assessment))
}

// ListRiskTiers handles GET /api/risk-tiers.
func (h *Handler) ListRiskTiers(w http.ResponseWriter, r *http.Request) {
	all := h.opts.Planner.Tiers().All()
	views := make([]TierView, len(all))
	for i, c := range all {
		views[i] = tierView(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tiers": views,
		"count": len(views),
	})
}

func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidProfile):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("recommendation timed out", "request_id", GetRequestID(r.Context()))
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "recommendation timed out"})
	default:
		slog.Error("recommendation failed",
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "recommendation failed"})
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func(context.Context) error) {
		if err := ping(r.Context()); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}
	if h.opts.Repo != nil {
		check("repository", h.opts.Repo.Ping)
	}
	if h.opts.Cache != nil {
		check("cache", h.opts.Cache.Ping)
	}
	if h.opts.Bus != nil {
		check("bus", h.opts.Bus.Ping)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.opts.Version,
		"scorer":  h.opts.ScorerKind,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListClauses returns the clauses currently loaded in the composer.
func (h *Handler) ListClauses(w http.ResponseWriter, r *http.Request) {
	if h.opts.Composer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "composer not available"})
		return
	}
	clauses := h.opts.Composer.Clauses()
	writeJSON(w, http.StatusOK, map[string]any{
		"clauses": clauses,
		"count":   len(clauses),
	})
}

// GetClause returns a stored clause, enabled or not.
func (h *Handler) GetClause(w http.ResponseWriter, r *http.Request) {
	if h.opts.Repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}

	clauseID := chi.URLParam(r, "id")
	clause, err := h.opts.Repo.GetClause(r.Context(), clauseID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "clause not found"})
		return
	}
	if err != nil {
		slog.Error("failed to get clause", "id", clauseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read clause"})
		return
	}
	writeJSON(w, http.StatusOK, clause)
}

// SaveClause validates and stores a clause, then reloads the composer.
func (h *Handler) SaveClause(w http.ResponseWriter, r *http.Request) {
	if h.opts.Repo == nil || h.opts.Composer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}

	var clause domain.RationaleClause
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&clause); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}
	if clause.ID == "" || clause.Group == "" || clause.Condition == "" || clause.Template == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, group, condition and template are required",
		})
		return
	}
	if err := h.opts.Composer.Validate(&clause); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.opts.Repo.SaveClause(r.Context(), &clause); err != nil {
		slog.Error("failed to save clause", "id", clause.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save clause"})
		return
	}

	count, err := h.reloadClauses(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	slog.Info("rationale clause saved", "id", clause.ID, "group", clause.Group, "loaded", count)
	writeJSON(w, http.StatusCreated, clause)
}

// DeleteClause disables a stored clause and reloads the composer.
func (h *Handler) DeleteClause(w http.ResponseWriter, r *http.Request) {
	if h.opts.Repo == nil || h.opts.Composer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}

	clauseID := chi.URLParam(r, "id")
	err := h.opts.Repo.DeleteClause(r.Context(), clauseID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "clause not found"})
		return
	}
	if err != nil {
		slog.Error("failed to delete clause", "id", clauseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete clause"})
		return
	}

	if _, err := h.reloadClauses(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReloadClauses reloads the composer from the repository.
func (h *Handler) ReloadClauses(w http.ResponseWriter, r *http.Request) {
	if h.opts.Repo == nil || h.opts.Composer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "repository not available"})
		return
	}

	count, err := h.reloadClauses(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "clauses reloaded successfully",
		"count":   count,
	})
}

func (h *Handler) reloadClauses(ctx context.Context) (int, error) {
	clauses, err := h.opts.Repo.ListClauses(ctx)
	if err != nil {
		slog.Error("failed to list clauses", "error", err)
		return 0, errors.New("failed to list clauses")
	}
	if err := h.opts.Composer.Load(clauses); err != nil {
		slog.Error("failed to load clauses", "error", err)
		return 0, errors.New("failed to load clauses")
	}
	return len(clauses), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
