package tools

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axion-health/insight-engine/internal/health"
)

// autocorrelatedSeries builds n daily values whose differences follow an
// AR(1) process, the kind of structure the model is meant to capture.
func autocorrelatedSeries(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	values[0] = 60
	diff := 0.0
	for i := 1; i < n; i++ {
		diff = 0.5*diff + rng.NormFloat64()*2
		values[i] = values[i-1] + diff
	}
	return values
}

func TestForecastSeries_ARIMAWithIntervals(t *testing.T) {
	f := NewForecaster(nil, 14)

	series := dailySeries(health.MetricHeartRateResting, autocorrelatedSeries(60, 7))
	report, err := f.ForecastSeries(series, 7)
	require.NoError(t, err)

	assert.Equal(t, ForecastMethodARIMA, report.Method)
	assert.Equal(t, [3]int{1, 1, 1}, report.ModelOrder)
	assert.Equal(t, 60, report.HistoricalCount)
	require.Len(t, report.Values, 7)
	require.Len(t, report.Dates, 7)
	require.Len(t, report.Intervals, 7, "The model path must carry an interval per forecast day")

	for i, interval := range report.Intervals {
		assert.Less(t, interval.Low, report.Values[i], "Interval must bracket the point forecast")
		assert.Greater(t, interval.High, report.Values[i])
		if i > 0 {
			prev := report.Intervals[i-1]
			assert.GreaterOrEqual(t, interval.High-interval.Low, prev.High-prev.Low,
				"Uncertainty should widen with the horizon")
		}
	}
}

func TestForecastSeries_ForecastDatesFollowHistory(t *testing.T) {
	f := NewForecaster(nil, 14)

	series := dailySeries(health.MetricSteps, autocorrelatedSeries(30, 3))
	report, err := f.ForecastSeries(series, 3)
	require.NoError(t, err)

	days, _ := series.DailyBuckets()
	lastDay := days[len(days)-1]
	assert.Equal(t, lastDay.AddDate(0, 0, 1).Format("2006-01-02"), report.Dates[0])
	assert.Equal(t, lastDay.AddDate(0, 0, 3).Format("2006-01-02"), report.Dates[2])
}

func TestForecastSeries_MovingAverageFallback(t *testing.T) {
	f := NewForecaster(nil, 14)

	// Five daily points: enough to forecast, not enough for the model.
	series := dailySeries(health.MetricSleepDuration, []float64{7, 8, 6, 7, 7})
	report, err := f.ForecastSeries(series, 7)
	require.NoError(t, err)

	assert.Equal(t, ForecastMethodMovingAverage, report.Method)
	assert.Nil(t, report.Intervals, "The fallback carries no confidence intervals")

	mean := (7.0 + 8 + 6 + 7 + 7) / 5
	require.Len(t, report.Values, 7)
	for _, v := range report.Values {
		assert.InDelta(t, mean, v, 1e-9, "Fallback flat-lines the trailing mean")
	}
}

func TestForecastSeries_InsufficientData(t *testing.T) {
	f := NewForecaster(nil, 14)

	series := dailySeries(health.MetricSleepDuration, []float64{7, 8})
	_, err := f.ForecastSeries(series, 7)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
