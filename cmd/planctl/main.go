// Load and smoke-test tool for the WealthTimeMachine API.
//
// Usage:
//
//	go run ./cmd/planctl -goal "buy a house" -asset 50000 -income 15000 -age 30
//	go run ./cmd/planctl -csv profiles.csv -workers 20 -url http://localhost:8080
//
// This tool:
//  1. Reads profiles from a CSV file (goal,current_asset,monthly_income,age) or flags
//  2. Requests a recommendation for each, synchronously or via ?async=true
//  3. Reports the recommended tier mix, latency and error counts
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
)

// Profile is the request body for POST /api/planning/recommend
type Profile struct {
	Goal          string  `json:"goal"`
	CurrentAsset  float64 `json:"currentAsset"`
	MonthlyIncome float64 `json:"monthlyIncome"`
	Age           int     `json:"age,omitempty"`
}

// TierPlan is the subset of a tier's plan this tool prints
type TierPlan struct {
	PlanStyle            string  `json:"planStyle"`
	MonthlySave          float64 `json:"monthlySave"`
	TargetMonths         int     `json:"targetMonths"`
	TargetAmount         float64 `json:"targetAmount"`
	ExpectedFinalAmount  float64 `json:"expectedFinalAmount"`
	SharpeRatio          float64 `json:"sharpeRatio"`
	MonteCarloSimulation struct {
		SuccessProbability float64 `json:"successProbability"`
	} `json:"monteCarloSimulation"`
	Reason string `json:"reason"`
}

// RecommendResponse is the API response format
type RecommendResponse struct {
	PlanID          string              `json:"planId"`
	Status          string              `json:"status"`
	RecommendedRisk string              `json:"recommendedRisk"`
	Recommendations map[string]TierPlan `json:"recommendations"`
}

// Metrics tracks run results
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	Retries        int64

	ProcessingTimeMs int64

	mu     sync.Mutex
	byTier map[string]int64
}

func (m *Metrics) countTier(tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTier[tier]++
}

// errRetryable marks responses worth another attempt
var errRetryable = errors.New("retryable status")

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "WealthTimeMachine base URL")
	csvPath := flag.String("csv", "", "Path to profiles CSV (goal,current_asset,monthly_income,age)")
	goal := flag.String("goal", "buy a house", "Goal for a single profile")
	asset := flag.Float64("asset", 50000, "Current assets for a single profile")
	income := flag.Float64("income", 15000, "Monthly income for a single profile")
	age := flag.Int("age", 30, "Age for a single profile")
	workers := flag.Int("workers", 4, "Number of concurrent workers")
	async := flag.Bool("async", false, "Submit with ?async=true and poll for the result")
	clientID := flag.String("client", "planctl", "X-Client-ID sent with each request")
	verbose := flag.Bool("verbose", false, "Print each plan")
	flag.Parse()

	profiles := []Profile{{Goal: *goal, CurrentAsset: *asset, MonthlyIncome: *income, Age: *age}}
	if *csvPath != "" {
		var err error
		profiles, err = readProfiles(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("URL:      %s\n", *baseURL)
	fmt.Printf("Profiles: %s\n", humanize.Comma(int64(len(profiles))))
	fmt.Printf("Workers:  %d\n", *workers)
	fmt.Printf("Async:    %v\n\n", *async)

	c := &client{
		http:     &http.Client{Timeout: 30 * time.Second},
		baseURL:  strings.TrimRight(*baseURL, "/"),
		clientID: *clientID,
	}

	if err := c.checkHealth(); err != nil {
		fmt.Printf("ERROR: service not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Println("✓ Service is healthy")

	single := len(profiles) == 1
	startTime := time.Now()
	metrics := run(c, profiles, *workers, *async, *verbose || single)
	printResults(metrics, time.Since(startTime))

	if metrics.TotalErrors > 0 {
		os.Exit(1)
	}
}

func readProfiles(path string) ([]Profile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"goal", "current_asset", "monthly_income"} {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var profiles []Profile
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p := Profile{Goal: record[colIndex["goal"]]}
		if p.CurrentAsset, err = strconv.ParseFloat(record[colIndex["current_asset"]], 64); err != nil {
			return nil, fmt.Errorf("line %d: current_asset: %w", line, err)
		}
		if p.MonthlyIncome, err = strconv.ParseFloat(record[colIndex["monthly_income"]], 64); err != nil {
			return nil, fmt.Errorf("line %d: monthly_income: %w", line, err)
		}
		if i, ok := colIndex["age"]; ok && record[i] != "" {
			if p.Age, err = strconv.Atoi(record[i]); err != nil {
				return nil, fmt.Errorf("line %d: age: %w", line, err)
			}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func run(c *client, profiles []Profile, numWorkers int, async, verbose bool) *Metrics {
	metrics := &Metrics{byTier: make(map[string]int64)}

	work := make(chan Profile, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for p := range work {
				start := time.Now()
				result, err := c.recommend(p, async, &metrics.Retries)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					fmt.Printf("ERROR: %q -> %v\n", p.Goal, err)
					continue
				}
				metrics.countTier(result.RecommendedRisk)

				if verbose {
					printPlan(p, result)
				}
			}
		}()
	}

	for _, p := range profiles {
		work <- p
	}
	close(work)
	wg.Wait()

	return metrics
}

type client struct {
	http     *http.Client
	baseURL  string
	clientID string
}

func (c *client) checkHealth() error {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// recommend posts a profile, retrying rate-limited and 5xx responses with
// exponential backoff. In async mode it polls the plan until it is ready.
func (c *client) recommend(p Profile, async bool, retries *int64) (*RecommendResponse, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	path := "/api/planning/recommend"
	if async {
		path += "?async=true"
	}

	var result RecommendResponse
	op := func() error {
		status, err := c.do(http.MethodPost, path, body, &result)
		if err != nil {
			return err
		}
		if status != http.StatusOK && status != http.StatusAccepted {
			return backoff.Permanent(fmt.Errorf("status %d", status))
		}
		return nil
	}
	notify := func(err error, wait time.Duration) { atomic.AddInt64(retries, 1) }
	if err := backoff.RetryNotify(op, newBackOff(), notify); err != nil {
		return nil, err
	}
	if !async {
		return &result, nil
	}

	planPath := "/api/planning/plans/" + result.PlanID
	poll := func() error {
		status, err := c.do(http.MethodGet, planPath, nil, &result)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusOK:
			return nil
		case http.StatusAccepted:
			return errRetryable
		default:
			return backoff.Permanent(fmt.Errorf("plan %s: status %d", result.PlanID, status))
		}
	}
	if err := backoff.RetryNotify(poll, newBackOff(), notify); err != nil {
		return nil, err
	}
	return &result, nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = time.Minute
	return b
}

// do sends one request. Transport errors, 429 and 5xx are retryable.
func (c *client) do(method, path string, body []byte, out any) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", c.clientID)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("%w: %d", errRetryable, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, backoff.Permanent(err)
		}
	}
	return resp.StatusCode, nil
}

func printPlan(p Profile, r *RecommendResponse) {
	fmt.Printf("\n%s | assets %s | income %s/month | plan %s\n",
		p.Goal, money(p.CurrentAsset), money(p.MonthlyIncome), r.PlanID)
	fmt.Printf("   Recommended tier: %s\n", r.RecommendedRisk)

	for _, tier := range []string{"low", "medium", "high"} {
		plan, ok := r.Recommendations[tier]
		if !ok {
			continue
		}
		marker := " "
		if tier == r.RecommendedRisk {
			marker = "*"
		}
		fmt.Printf(" %s %-12s save %s/month for %d months -> %s of %s (sharpe %.2f, success %.1f%%)\n",
			marker,
			plan.PlanStyle,
			money(plan.MonthlySave),
			plan.TargetMonths,
			money(plan.ExpectedFinalAmount),
			money(plan.TargetAmount),
			plan.SharpeRatio,
			plan.MonteCarloSimulation.SuccessProbability*100,
		)
		fmt.Printf("     %s\n", plan.Reason)
	}
}

func money(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Printf("\nRESULTS\n")
	fmt.Printf("   Total Processed:  %s\n", humanize.Comma(m.TotalProcessed))
	fmt.Printf("   Errors:           %s\n", humanize.Comma(m.TotalErrors))
	fmt.Printf("   Retries:          %s\n", humanize.Comma(atomic.LoadInt64(&m.Retries)))

	tiers := make([]string, 0, len(m.byTier))
	for tier := range m.byTier {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	if len(tiers) > 0 {
		fmt.Printf("\nRECOMMENDED TIERS\n")
	}
	ok := m.TotalProcessed - m.TotalErrors
	for _, tier := range tiers {
		fmt.Printf("   %-8s %8s (%.1f%%)\n", tier, humanize.Comma(m.byTier[tier]), 100*float64(m.byTier[tier])/float64(ok))
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %s plans/sec\n", humanize.FtoaWithDigits(rps, 2))
	}
	fmt.Println()
}
