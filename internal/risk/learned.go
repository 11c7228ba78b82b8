package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const numFeatures = 4

// ErrScorerUnavailable is returned when the learned scorer cannot be trained.
var ErrScorerUnavailable = errors.New("learned scorer unavailable")

// LearnedScorer is a bagged ensemble of regression trees trained on
// synthetic profiles. Features are standardized before fitting.
type LearnedScorer struct {
	trees []*treeNode
	mean  [numFeatures]float64
	std   [numFeatures]float64
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

type sample struct {
	x [numFeatures]float64
	y float64
}

// TrainLearnedScorer generates a synthetic training set and fits the ensemble.
// Trees are fitted in parallel; each tree draws from its own seeded source so
// the result does not depend on scheduling.
func TrainLearnedScorer(ctx context.Context, cfg domain.LearnedScorerConfig) (*LearnedScorer, error) {
	if cfg.Trees <= 0 || cfg.MaxDepth <= 0 || cfg.Samples < 2 {
		return nil, fmt.Errorf("%w: trees=%d max_depth=%d samples=%d", ErrScorerUnavailable, cfg.Trees, cfg.MaxDepth, cfg.Samples)
	}
	minSplit := max(cfg.MinSamplesSplit, 2)

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	data := syntheticSamples(rng, cfg.Samples)

	s := &LearnedScorer{trees: make([]*treeNode, cfg.Trees)}
	s.fitScaler(data)
	for i := range data {
		data[i].x = s.standardize(data[i].x)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	for i := 0; i < cfg.Trees; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			if ctx.Err() != nil {
				return
			}
			treeRng := rand.New(rand.NewPCG(cfg.Seed, uint64(idx)+1))
			boot := make([]sample, len(data))
			for j := range boot {
				boot[j] = data[treeRng.IntN(len(data))]
			}
			s.trees[idx] = growTree(boot, 0, cfg.MaxDepth, minSplit)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScorerUnavailable, err)
	}
	return s, nil
}

// Kind implements domain.RiskScorer.
func (s *LearnedScorer) Kind() string { return "learned" }

// Score implements domain.RiskScorer. Coverage is capped at 1 before prediction.
func (s *LearnedScorer) Score(f domain.RiskFactors) (float64, error) {
	if !finite(f) {
		return 0, ErrInvalidFactors
	}
	if len(s.trees) == 0 {
		return 0, ErrScorerUnavailable
	}
	x := s.standardize([numFeatures]float64{math.Min(1, f.AssetCoverage), f.TimePressure, f.AgeFactor, f.IncomeStability})

	var sum float64
	for _, t := range s.trees {
		sum += t.predict(x)
	}
	return clamp(sum/float64(len(s.trees)), 0, 1), nil
}

func (s *LearnedScorer) fitScaler(data []sample) {
	col := make([]float64, len(data))
	for j := 0; j < numFeatures; j++ {
		for i := range data {
			col[i] = data[i].x[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.mean[j], s.std[j] = mean, std
	}
}

func (s *LearnedScorer) standardize(x [numFeatures]float64) [numFeatures]float64 {
	for j := range x {
		x[j] = (x[j] - s.mean[j]) / s.std[j]
	}
	return x
}

func (n *treeNode) predict(x [numFeatures]float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// syntheticSamples draws profiles and labels them with the formula rules plus
// nonlinear adjustments the formula does not capture.
func syntheticSamples(rng *rand.Rand, n int) []sample {
	out := make([]sample, n)
	for i := range out {
		cov := rng.Float64() * 2
		tp := rng.Float64()
		age := 0.3 + rng.Float64()*0.7
		inc := 0.3 + rng.Float64()*0.7

		out[i] = sample{
			x: [numFeatures]float64{cov, tp, age, inc},
			y: syntheticLabel(cov, tp, age, inc),
		}
	}
	return out
}

func syntheticLabel(cov, tp, age, inc float64) float64 {
	reached := cov >= 1
	if reached {
		cov = math.Min(1, cov)
	}
	y := formulaScore(cov, tp, age, inc, reached)

	if cov < 0.2 && tp > 0.8 {
		y = math.Min(1, y*1.15)
	}
	if age > 0.8 && inc > 0.7 {
		y = math.Min(1, y*1.1)
	}
	return clamp(y, 0, 1)
}

// growTree fits a CART regression tree by exhaustive variance-reduction splits.
func growTree(data []sample, depth, maxDepth, minSplit int) *treeNode {
	mean, pure := meanAndPurity(data)
	if depth >= maxDepth || len(data) < minSplit || pure {
		return &treeNode{leaf: true, value: mean}
	}

	feature, threshold, ok := bestSplit(data)
	if !ok {
		return &treeNode{leaf: true, value: mean}
	}

	// Partition in place: left holds x[feature] <= threshold.
	i := 0
	for j := range data {
		if data[j].x[feature] <= threshold {
			data[i], data[j] = data[j], data[i]
			i++
		}
	}
	if i == 0 || i == len(data) {
		return &treeNode{leaf: true, value: mean}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      growTree(data[:i], depth+1, maxDepth, minSplit),
		right:     growTree(data[i:], depth+1, maxDepth, minSplit),
	}
}

func meanAndPurity(data []sample) (float64, bool) {
	var sum float64
	pure := true
	for i, d := range data {
		sum += d.y
		if i > 0 && d.y != data[0].y {
			pure = false
		}
	}
	return sum / float64(len(data)), pure
}

// bestSplit finds the split minimizing the summed squared error of both sides.
func bestSplit(data []sample) (int, float64, bool) {
	n := len(data)
	idx := make([]int, n)

	var total, totalSq float64
	for _, d := range data {
		total += d.y
		totalSq += d.y * d.y
	}
	bestSSE := totalSq - total*total/float64(n)
	bestFeature, bestThreshold, found := 0, 0.0, false

	for f := 0; f < numFeatures; f++ {
		for i := range idx {
			idx[i] = i
		}
		slices.SortFunc(idx, func(a, b int) int {
			switch {
			case data[a].x[f] < data[b].x[f]:
				return -1
			case data[a].x[f] > data[b].x[f]:
				return 1
			}
			return 0
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			y := data[idx[k]].y
			leftSum += y
			leftSq += y * y

			cur, next := data[idx[k]].x[f], data[idx[k+1]].x[f]
			if cur == next {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			rightSum, rightSq := total-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (cur + next) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
