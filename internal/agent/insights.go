package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"gonum.org/v1/gonum/stat"

	"github.com/axion-health/insight-engine/internal/health"
	"github.com/axion-health/insight-engine/internal/tools"
)

// keyMetrics are the signals scanned on the scheduled-insight path.
var keyMetrics = []string{
	health.MetricHeartRateResting,
	health.MetricSteps,
	health.MetricSleepDuration,
}

// InsightGenerator produces the dashboard feed: it proactively runs anomaly
// detection over key metrics plus a correlation sweep, and summarizes a
// recent trend. Results are cached per user with a short TTL since callers
// poll this surface.
type InsightGenerator struct {
	anomaly     AnomalyTool
	correlation CorrelationTool
	metrics     tools.MetricReader
	cache       *ristretto.Cache
	ttl         time.Duration
	defaults    PlannerDefaults
	now         func() time.Time
}

func NewInsightGenerator(anomaly AnomalyTool, correlation CorrelationTool, metrics tools.MetricReader, ttl time.Duration, defaults PlannerDefaults) (*InsightGenerator, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1e6,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating insight cache: %w", err)
	}
	return &InsightGenerator{
		anomaly:     anomaly,
		correlation: correlation,
		metrics:     metrics,
		cache:       cache,
		ttl:         ttl,
		defaults:    defaults,
		now:         time.Now,
	}, nil
}

func (g *InsightGenerator) Close() {
	g.cache.Close()
}

// Invalidate drops the user's cached feed, e.g. after a data sync.
func (g *InsightGenerator) Invalidate(userID int64) {
	g.cache.Del(insightCacheKey(userID))
}

func (g *InsightGenerator) Generate(ctx context.Context, userID int64) ([]Insight, error) {
	key := insightCacheKey(userID)
	if cached, found := g.cache.Get(key); found {
		if insights, ok := cached.([]Insight); ok {
			return insights, nil
		}
	}

	insights := g.compute(ctx, userID)
	// A feed computed under a dead context is all failure cards; never cache
	// it, or every caller within the TTL inherits the cancellation.
	if ctx.Err() == nil {
		g.cache.SetWithTTL(key, insights, int64(len(insights)+1), g.ttl)
	}
	return insights, nil
}

func (g *InsightGenerator) compute(ctx context.Context, userID int64) []Insight {
	now := g.now().UTC()
	var (
		mu       sync.Mutex
		insights []Insight
	)
	add := func(in ...Insight) {
		mu.Lock()
		insights = append(insights, in...)
		mu.Unlock()
	}

	var wg sync.WaitGroup

	// Anomaly scan over the key metrics.
	for _, metric := range keyMetrics {
		wg.Add(1)
		go func(metric string) {
			defer wg.Done()
			report, err := g.anomaly.Detect(ctx, userID, tools.AnomalyParams{
				MetricName:    metric,
				LookbackDays:  g.defaults.LookbackDays,
				Contamination: g.defaults.Contamination,
			})
			if err != nil {
				if errors.Is(err, tools.ErrInsufficientData) {
					return // nothing to report, not an error worth surfacing
				}
				add(Insight{
					Kind:        InsightError,
					Title:       fmt.Sprintf("Could not analyze %s", metric),
					Description: err.Error(),
					GeneratedAt: now,
				})
				return
			}
			anomalies := report.Anomalies()
			if len(anomalies) == 0 {
				return
			}
			latest := anomalies[len(anomalies)-1]
			add(Insight{
				Kind:  InsightAnomaly,
				Title: fmt.Sprintf("Unusual %s readings", metric),
				Description: fmt.Sprintf("%d of your last %d %s readings stood out; the most recent was %.1f on %s (typical is %.1f ± %.1f).",
					len(anomalies), report.TotalDataPoints, metric, latest.Value, latest.Timestamp.Format("Jan 2"), report.Mean, report.StdDev),
				Data:        report,
				GeneratedAt: now,
			})
		}(metric)
	}

	// Correlation sweep across everything the user tracks.
	wg.Add(1)
	go func() {
		defer wg.Done()
		report, err := g.correlation.Analyze(ctx, userID, tools.CorrelationParams{
			LookbackDays:   g.defaults.LookbackDays,
			MinCorrelation: g.defaults.MinCorrelation,
		})
		if err != nil {
			if errors.Is(err, tools.ErrInsufficientData) {
				return
			}
			add(Insight{
				Kind:        InsightError,
				Title:       "Could not analyze correlations",
				Description: err.Error(),
				GeneratedAt: now,
			})
			return
		}
		for _, pair := range report.Pairs {
			if pair.Strength == "weak" {
				continue
			}
			add(Insight{
				Kind:  InsightCorrelation,
				Title: fmt.Sprintf("%s tracks with %s", pair.MetricA, pair.MetricB),
				Description: fmt.Sprintf("Your %s and %s show a %s %s correlation (r=%.2f over %d overlapping days).",
					pair.MetricA, pair.MetricB, pair.Strength, pair.Direction, pair.Coefficient, pair.OverlapCount),
				Data:        pair,
				GeneratedAt: now,
			})
		}
	}()

	// Week-over-week trend on step count.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if insight, ok := g.weeklyTrend(userID, health.MetricSteps, now); ok {
			add(insight)
		}
	}()

	wg.Wait()

	summary := fmt.Sprintf("Reviewed %d key metrics plus cross-metric relationships over the last %d days; %d finding(s) surfaced.",
		len(keyMetrics), g.defaults.LookbackDays, len(insights))
	insights = append(insights, Insight{
		Kind:        InsightSummary,
		Title:       "Health review",
		Description: summary,
		GeneratedAt: now,
	})

	log.Printf("Generated %d insight(s) for user %d", len(insights), userID)
	return insights
}

// weeklyTrend compares the last seven days against the seven before.
func (g *InsightGenerator) weeklyTrend(userID int64, metric string, now time.Time) (Insight, bool) {
	series, err := g.metrics.ReadMetricSeries(userID, metric, now.AddDate(0, 0, -14), now)
	if err != nil {
		return Insight{}, false
	}
	days, values := series.DailyBuckets()
	if len(days) < 10 {
		return Insight{}, false
	}

	split := len(values) - 7
	prior := values[:split]
	recent := values[split:]
	priorMean := stat.Mean(prior, nil)
	recentMean := stat.Mean(recent, nil)
	if priorMean == 0 {
		return Insight{}, false
	}

	change := (recentMean - priorMean) / priorMean * 100
	if change < 5 && change > -5 {
		return Insight{}, false // flat week, nothing to say
	}

	direction := "up"
	if change < 0 {
		direction = "down"
	}
	return Insight{
		Kind:  InsightTrend,
		Title: fmt.Sprintf("Your %s is trending %s", metric, direction),
		Description: fmt.Sprintf("Daily %s averaged %.0f this week vs %.0f the week before (%+.0f%%).",
			metric, recentMean, priorMean, change),
		Data: map[string]float64{
			"recent_mean":    recentMean,
			"prior_mean":     priorMean,
			"percent_change": change,
		},
		GeneratedAt: now,
	}, true
}

func insightCacheKey(userID int64) string {
	return fmt.Sprintf("insights:%d", userID)
}
