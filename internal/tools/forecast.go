package tools

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/axion-health/insight-engine/internal/health"
)

const fallbackWindow = 7

// Forecaster projects a metric series forward. The primary path fits an
// ARIMA(1,1,1); series shorter than the configured minimum, or fits that do
// not converge, fall back to a trailing moving-average projection. The
// report always says which method produced it, and confidence intervals are
// only present on the ARIMA path.
type Forecaster struct {
	metrics   MetricReader
	minPoints int
	now       func() time.Time
}

func NewForecaster(metrics MetricReader, minPoints int) *Forecaster {
	return &Forecaster{
		metrics:   metrics,
		minPoints: minPoints,
		now:       time.Now,
	}
}

func (f *Forecaster) Forecast(ctx context.Context, userID int64, params ForecastParams) (*ForecastReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metricType := health.NormalizeMetricName(params.MetricName)
	lookback := params.LookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	horizon := params.ForecastDays
	if horizon <= 0 {
		horizon = 7
	}

	from, to := SeriesWindow(lookback, f.now())
	series, err := f.metrics.ReadMetricSeries(userID, metricType, from, to)
	if err != nil {
		return nil, fmt.Errorf("reading %s series: %w", metricType, err)
	}

	return f.ForecastSeries(series, horizon)
}

// ForecastSeries forecasts from an already normalized series.
func (f *Forecaster) ForecastSeries(series health.MetricSeries, horizon int) (*ForecastReport, error) {
	days, values := series.DailyBuckets()
	if len(values) < 3 {
		return nil, fmt.Errorf("%w: %s has %d daily points", ErrInsufficientData, series.MetricType, len(values))
	}

	report := &ForecastReport{
		MetricName:      series.MetricType,
		HistoricalCount: len(values),
	}
	historyTail := len(days) - fallbackWindow
	if historyTail < 0 {
		historyTail = 0
	}
	for i := historyTail; i < len(days); i++ {
		report.HistoryDates = append(report.HistoryDates, days[i].Format("2006-01-02"))
		report.HistoryValues = append(report.HistoryValues, values[i])
	}

	lastDay := days[len(days)-1]
	report.Dates = make([]string, horizon)
	for i := 0; i < horizon; i++ {
		report.Dates[i] = lastDay.AddDate(0, 0, i+1).Format("2006-01-02")
	}

	if len(values) >= f.minPoints {
		model, err := fitARIMA111(values)
		if err == nil {
			points, halfWidths := model.forecast(horizon)
			report.Method = ForecastMethodARIMA
			report.ModelOrder = [3]int{1, 1, 1}
			report.Values = points
			report.ResidualStdDev = sqrtOrZero(model.sigma2)
			report.Intervals = make([]ConfidenceInterval, horizon)
			for i := range points {
				report.Intervals[i] = ConfidenceInterval{
					Low:  points[i] - halfWidths[i],
					High: points[i] + halfWidths[i],
				}
			}
			log.Printf("ARIMA forecast for %s: %d days ahead from %d observations", series.MetricType, horizon, len(values))
			return report, nil
		}
		log.Printf("ARIMA fit failed for %s, falling back to moving average: %v", series.MetricType, err)
	}

	// Moving-average fallback: flat-line the trailing window mean.
	window := values
	if len(window) > fallbackWindow {
		window = window[len(window)-fallbackWindow:]
	}
	mean := stat.Mean(window, nil)
	report.Method = ForecastMethodMovingAverage
	report.Values = make([]float64, horizon)
	for i := range report.Values {
		report.Values[i] = mean
	}
	// Intervals stay nil: the fallback carries no distributional claim.
	log.Printf("Moving-average forecast for %s: %d days ahead from %d observations", series.MetricType, horizon, len(values))
	return report, nil
}

func sqrtOrZero(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
