package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axion-health/insight-engine/internal/health"
)

func dailySeries(metricType string, values []float64) health.MetricSeries {
	base := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	points := make([]health.Point, len(values))
	for i, v := range values {
		points[i] = health.Point{Timestamp: base.AddDate(0, 0, i), Value: v}
	}
	return health.MetricSeries{MetricType: metricType, Unit: "bpm", Points: points}
}

func TestAnomalyDetector_InsufficientData(t *testing.T) {
	d := NewAnomalyDetector(nil, 7, 0.1, 42)

	series := dailySeries(health.MetricHeartRateResting, []float64{60, 61, 62})
	_, err := d.DetectSeries(series, 0.1)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnomalyDetector_FlagsObviousOutlier(t *testing.T) {
	d := NewAnomalyDetector(nil, 7, 0.1, 42)

	values := make([]float64, 30)
	for i := range values {
		values[i] = 60 + float64(i%3) // tight band around 60-62
	}
	values[17] = 130 // single extreme reading

	report, err := d.DetectSeries(dailySeries(health.MetricHeartRateResting, values), 0.1)
	require.NoError(t, err)

	assert.Equal(t, 30, report.TotalDataPoints)
	assert.Equal(t, 3, report.AnomalyCount, "10% contamination over 30 points flags ceil(3)")

	flaggedExtreme := false
	for _, a := range report.Anomalies() {
		if a.Value == 130 {
			flaggedExtreme = true
		}
	}
	assert.True(t, flaggedExtreme, "The extreme reading should be among the flagged points")
}

func TestAnomalyDetector_Deterministic(t *testing.T) {
	d := NewAnomalyDetector(nil, 7, 0.1, 42)

	values := []float64{60, 62, 61, 63, 95, 60, 61, 62, 64, 61, 60, 63}
	series := dailySeries(health.MetricHeartRateResting, values)

	first, err := d.DetectSeries(series, 0.1)
	require.NoError(t, err)
	second, err := d.DetectSeries(series, 0.1)
	require.NoError(t, err)

	require.Len(t, second.Points, len(first.Points))
	for i := range first.Points {
		assert.Equal(t, first.Points[i].Score, second.Points[i].Score, "Scores must be reproducible with a fixed seed")
		assert.Equal(t, first.Points[i].IsAnomaly, second.Points[i].IsAnomaly)
	}
}

func TestAnomalyDetector_ScoresWithinUnitInterval(t *testing.T) {
	d := NewAnomalyDetector(nil, 7, 0.1, 42)

	values := []float64{60, 62, 61, 63, 95, 60, 61, 62, 64, 61}
	report, err := d.DetectSeries(dailySeries(health.MetricHeartRateResting, values), 0.1)
	require.NoError(t, err)

	for _, p := range report.Points {
		assert.GreaterOrEqual(t, p.Score, 0.0)
		assert.LessOrEqual(t, p.Score, 1.0)
	}
}
