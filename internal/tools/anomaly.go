package tools

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/axion-health/insight-engine/internal/health"
)

const (
	isoForestTrees     = 100
	isoForestSubsample = 256
)

// AnomalyDetector scores outliers in a metric series with an isolation
// forest: points that isolate in fewer random splits score higher. It needs
// no labeled data and, with a fixed seed, is fully reproducible.
type AnomalyDetector struct {
	metrics       MetricReader
	minSamples    int
	contamination float64
	seed          int64
	now           func() time.Time
}

func NewAnomalyDetector(metrics MetricReader, minSamples int, contamination float64, seed int64) *AnomalyDetector {
	return &AnomalyDetector{
		metrics:       metrics,
		minSamples:    minSamples,
		contamination: contamination,
		seed:          seed,
		now:           time.Now,
	}
}

func (d *AnomalyDetector) Detect(ctx context.Context, userID int64, params AnomalyParams) (*AnomalyReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metricType := health.NormalizeMetricName(params.MetricName)
	lookback := params.LookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	contamination := params.Contamination
	if contamination <= 0 || contamination > 0.5 {
		contamination = d.contamination
	}

	from, to := SeriesWindow(lookback, d.now())
	series, err := d.metrics.ReadMetricSeries(userID, metricType, from, to)
	if err != nil {
		return nil, fmt.Errorf("reading %s series: %w", metricType, err)
	}

	report, err := d.DetectSeries(series, contamination)
	if err != nil {
		return nil, err
	}

	log.Printf("Anomaly detection complete for %s: %d of %d points flagged", metricType, report.AnomalyCount, report.TotalDataPoints)
	return report, nil
}

// DetectSeries runs the forest over an already normalized series.
func (d *AnomalyDetector) DetectSeries(series health.MetricSeries, contamination float64) (*AnomalyReport, error) {
	n := len(series.Points)
	if n < d.minSamples {
		return nil, fmt.Errorf("%w: %s has %d points, need at least %d", ErrInsufficientData, series.MetricType, n, d.minSamples)
	}

	values := series.Values()
	scores := isolationScores(values, d.seed)

	// Flag the top contamination quantile by score.
	flagCount := int(math.Ceil(contamination * float64(n)))
	if flagCount > n {
		flagCount = n
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	flagged := make(map[int]bool, flagCount)
	for _, idx := range order[:flagCount] {
		flagged[idx] = true
	}

	report := &AnomalyReport{
		MetricName:      series.MetricType,
		Mean:            stat.Mean(values, nil),
		StdDev:          stat.StdDev(values, nil),
		TotalDataPoints: n,
		AnomalyCount:    flagCount,
		Points:          make([]AnomalyPoint, n),
	}
	for i, p := range series.Points {
		report.Points[i] = AnomalyPoint{
			Timestamp: p.Timestamp,
			Value:     p.Value,
			Score:     scores[i],
			IsAnomaly: flagged[i],
		}
	}
	return report, nil
}

// isolationScores returns the per-point anomaly score in [0, 1].
func isolationScores(values []float64, seed int64) []float64 {
	n := len(values)
	rng := rand.New(rand.NewSource(seed))

	psi := n
	if psi > isoForestSubsample {
		psi = isoForestSubsample
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))

	pathSums := make([]float64, n)
	for t := 0; t < isoForestTrees; t++ {
		sample := make([]float64, psi)
		for i, idx := range rng.Perm(n)[:psi] {
			sample[i] = values[idx]
		}
		tree := buildIsolationTree(sample, 0, maxDepth, rng)
		for i, v := range values {
			pathSums[i] += tree.pathLength(v, 0)
		}
	}

	norm := avgPathLength(psi)
	scores := make([]float64, n)
	for i := range scores {
		avg := pathSums[i] / float64(isoForestTrees)
		scores[i] = math.Pow(2, -avg/norm)
	}
	return scores
}

type isoNode struct {
	split       float64
	left, right *isoNode
	size        int
}

func buildIsolationTree(sample []float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(sample) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(sample)}
	}

	lo, hi := sample[0], sample[0]
	for _, v := range sample[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &isoNode{size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range sample {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return &isoNode{
		split: split,
		left:  buildIsolationTree(left, depth+1, maxDepth, rng),
		right: buildIsolationTree(right, depth+1, maxDepth, rng),
		size:  len(sample),
	}
}

func (n *isoNode) pathLength(v float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + avgPathLength(n.size)
	}
	if v < n.split {
		return n.left.pathLength(v, depth+1)
	}
	return n.right.pathLength(v, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}
