package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/axion-health/insight-engine/internal/health"
)

// CorrelationAnalyzer computes Pearson correlations between a user's metric
// series over time-aligned daily samples.
type CorrelationAnalyzer struct {
	metrics    MetricReader
	minOverlap int
	now        func() time.Time
}

func NewCorrelationAnalyzer(metrics MetricReader, minOverlap int) *CorrelationAnalyzer {
	return &CorrelationAnalyzer{
		metrics:    metrics,
		minOverlap: minOverlap,
		now:        time.Now,
	}
}

// Analyze correlates every pair of metrics the user has data for in the
// window, keeping pairs at or above the absolute-value threshold. Degenerate
// pairs (too little overlap, zero variance) are skipped rather than failing
// the whole analysis.
func (a *CorrelationAnalyzer) Analyze(ctx context.Context, userID int64, params CorrelationParams) (*CorrelationReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lookback := params.LookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	from, to := SeriesWindow(lookback, a.now())

	types, err := a.metrics.ListMetricTypes(userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing metric types: %w", err)
	}
	if len(types) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 metric types, found %d", ErrInsufficientData, len(types))
	}

	series := make([]health.MetricSeries, 0, len(types))
	for _, metricType := range types {
		s, err := a.metrics.ReadMetricSeries(userID, metricType, from, to)
		if err != nil {
			return nil, fmt.Errorf("reading %s series: %w", metricType, err)
		}
		series = append(series, s)
	}

	report := &CorrelationReport{MetricsAnalyzed: types}
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			pair, err := a.Pair(series[i], series[j])
			if err != nil {
				if errors.Is(err, ErrInsufficientOverlap) || errors.Is(err, ErrUndefinedStatistic) {
					continue
				}
				return nil, err
			}
			if math.Abs(pair.Coefficient) >= params.MinCorrelation {
				report.Pairs = append(report.Pairs, pair)
			}
		}
	}

	sort.SliceStable(report.Pairs, func(x, y int) bool {
		return math.Abs(report.Pairs[x].Coefficient) > math.Abs(report.Pairs[y].Coefficient)
	})

	log.Printf("Correlation analysis found %d pairs above |r| >= %.2f across %d metrics", len(report.Pairs), params.MinCorrelation, len(types))
	return report, nil
}

// Pair correlates two series over their inner join on calendar day.
func (a *CorrelationAnalyzer) Pair(seriesA, seriesB health.MetricSeries) (CorrelationPair, error) {
	xs, ys := alignDaily(seriesA, seriesB)
	if len(xs) < a.minOverlap {
		return CorrelationPair{}, fmt.Errorf("%w: %s vs %s has %d paired samples, need %d",
			ErrInsufficientOverlap, seriesA.MetricType, seriesB.MetricType, len(xs), a.minOverlap)
	}

	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return CorrelationPair{}, fmt.Errorf("%w: zero variance in %s vs %s",
			ErrUndefinedStatistic, seriesA.MetricType, seriesB.MetricType)
	}

	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return CorrelationPair{}, fmt.Errorf("%w: %s vs %s", ErrUndefinedStatistic, seriesA.MetricType, seriesB.MetricType)
	}
	// Floating error can push a perfect correlation just past the bounds.
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}

	direction := "positive"
	if r < 0 {
		direction = "negative"
	}
	return CorrelationPair{
		MetricA:      seriesA.MetricType,
		MetricB:      seriesB.MetricType,
		Coefficient:  r,
		Strength:     StrengthLabel(r),
		Direction:    direction,
		OverlapCount: len(xs),
	}, nil
}

// alignDaily inner-joins two series on calendar day.
func alignDaily(a, b health.MetricSeries) ([]float64, []float64) {
	daysA, valsA := a.DailyBuckets()
	daysB, valsB := b.DailyBuckets()

	byDay := make(map[time.Time]float64, len(daysB))
	for i, day := range daysB {
		byDay[day] = valsB[i]
	}

	var xs, ys []float64
	for i, day := range daysA {
		if v, ok := byDay[day]; ok {
			xs = append(xs, valsA[i])
			ys = append(ys, v)
		}
	}
	return xs, ys
}
