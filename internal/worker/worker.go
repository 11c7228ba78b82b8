// Package worker computes plans requested asynchronously over the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
)

// Planner produces a recommendation set for a profile.
type Planner interface {
	Recommend(ctx context.Context, profile domain.FinancialProfile) (*domain.RecommendationSet, error)
}

// Worker consumes plan requests, stores the outcome in the cache and
// announces it on TopicPlanReady.
type Worker struct {
	bus     domain.EventBus
	cache   domain.Cache
	planner Planner
	cfg     Config

	sem           chan struct{}
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// Concurrency bounds plans computed at once. Defaults to GOMAXPROCS.
	Concurrency int

	// PlanTimeout bounds a single plan computation.
	PlanTimeout time.Duration

	// PlanTTL is how long finished plans stay in the cache.
	PlanTTL time.Duration
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, cache domain.Cache, planner Planner, cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	if cfg.PlanTimeout <= 0 {
		cfg.PlanTimeout = 30 * time.Second
	}
	if cfg.PlanTTL <= 0 {
		cfg.PlanTTL = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		cache:   cache,
		planner: planner,
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.Concurrency),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to plan requests.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicPlanRequested, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicPlanRequested, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("plan worker started",
		"topic", domain.TopicPlanRequested,
		"concurrency", w.cfg.Concurrency,
	)
	return nil
}

// handleMessage hands the request to a pooled goroutine so a slow plan does
// not hold up the subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var req domain.PlanRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse plan request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if req.PlanID == "" {
		return errors.New("plan request without plan id")
	}

	select {
	case w.sem <- struct{}{}: // Acquire
	case <-w.ctx.Done():
		return w.ctx.Err()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }() // Release
		w.process(req)
	}()
	return nil
}

func (w *Worker) process(req domain.PlanRequest) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.PlanTimeout)
	defer cancel()

	entry := &domain.PlanEntry{ID: req.PlanID}
	set, err := w.planner.Recommend(ctx, req.Profile)
	if err != nil {
		entry.Status = domain.PlanFailed
		entry.Error = err.Error()
		slog.Error("plan computation failed",
			"plan_id", req.PlanID,
			"error", err,
		)
	} else {
		set.ID = req.PlanID
		entry.Status = domain.PlanReady
		entry.Result = set
	}

	// Storing must outlive a cancelled computation.
	storeCtx, storeCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer storeCancel()

	if err := w.cache.SetPlan(storeCtx, req.PlanID, entry, w.cfg.PlanTTL); err != nil {
		slog.Error("failed to store plan",
			"plan_id", req.PlanID,
			"status", entry.Status,
			"error", err,
		)
		if entry.Status != domain.PlanReady {
			w.failed.Add(1)
			return
		}
		// Leave a failed marker so pollers do not wait out the TTL.
		entry = &domain.PlanEntry{ID: req.PlanID, Status: domain.PlanFailed, Error: "plan result could not be stored"}
		if err := w.cache.SetPlan(storeCtx, req.PlanID, entry, w.cfg.PlanTTL); err != nil {
			slog.Error("failed to store failed plan marker", "plan_id", req.PlanID, "error", err)
			w.failed.Add(1)
			return
		}
	}

	if entry.Status == domain.PlanReady {
		w.processed.Add(1)
	} else {
		w.failed.Add(1)
	}

	event, err := json.Marshal(domain.PlanEvent{PlanID: req.PlanID, Status: entry.Status, Error: entry.Error})
	if err != nil {
		slog.Error("failed to encode plan event",
			"plan_id", req.PlanID,
			"error", err,
		)
		return
	}
	if err := w.bus.Publish(storeCtx, domain.TopicPlanReady, event); err != nil {
		slog.Warn("failed to publish plan event",
			"plan_id", req.PlanID,
			"error", err,
		)
	}

	slog.Info("plan processed",
		"plan_id", req.PlanID,
		"status", entry.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop unsubscribes and waits for in-flight plans to finish.
func (w *Worker) Stop() error {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()
	w.cancel()

	slog.Info("plan worker stopped",
		"processed", w.processed.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
	}
}
