package tools

import (
	"time"

	"github.com/axion-health/insight-engine/internal/health"
)

// ToolID identifies one analytical capability. The set is closed: adding a
// capability means adding a constant here, a params/report pair, and a case
// in the executor — never name-based lookup.
type ToolID string

const (
	ToolDetectAnomalies  ToolID = "detect_anomalies"
	ToolFindCorrelations ToolID = "find_correlations"
	ToolRunForecasting   ToolID = "run_forecasting"
	ToolJournalSearch    ToolID = "search_private_journal"
	ToolExternalResearch ToolID = "external_research"
)

// Params is the sealed union of per-tool parameter shapes.
type Params interface {
	Tool() ToolID
}

type AnomalyParams struct {
	MetricName    string
	LookbackDays  int
	Contamination float64
}

func (AnomalyParams) Tool() ToolID { return ToolDetectAnomalies }

type CorrelationParams struct {
	LookbackDays   int
	MinCorrelation float64
}

func (CorrelationParams) Tool() ToolID { return ToolFindCorrelations }

type ForecastParams struct {
	MetricName   string
	ForecastDays int
	LookbackDays int
}

func (ForecastParams) Tool() ToolID { return ToolRunForecasting }

type JournalSearchParams struct {
	Query    string
	NResults int
}

func (JournalSearchParams) Tool() ToolID { return ToolJournalSearch }

type ResearchParams struct {
	Query string
}

func (ResearchParams) Tool() ToolID { return ToolExternalResearch }

// Call is one fully parameterized tool invocation in a plan.
type Call struct {
	Params Params
}

func (c Call) Tool() ToolID { return c.Params.Tool() }

// Reports: the typed result of each tool.

type AnomalyPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Score     float64   `json:"score"`
	IsAnomaly bool      `json:"is_anomaly"`
}

type AnomalyReport struct {
	MetricName      string         `json:"metric_name"`
	Points          []AnomalyPoint `json:"points"`
	AnomalyCount    int            `json:"anomaly_count"`
	Mean            float64        `json:"mean_value"`
	StdDev          float64        `json:"std_value"`
	TotalDataPoints int            `json:"total_data_points"`
}

// Anomalies returns only the flagged points, in series order.
func (r AnomalyReport) Anomalies() []AnomalyPoint {
	var flagged []AnomalyPoint
	for _, p := range r.Points {
		if p.IsAnomaly {
			flagged = append(flagged, p)
		}
	}
	return flagged
}

type CorrelationPair struct {
	MetricA      string  `json:"metric_a"`
	MetricB      string  `json:"metric_b"`
	Coefficient  float64 `json:"coefficient"`
	Strength     string  `json:"strength"`
	Direction    string  `json:"direction"`
	OverlapCount int     `json:"overlap_count"`
}

type CorrelationReport struct {
	Pairs           []CorrelationPair `json:"correlations"`
	MetricsAnalyzed []string          `json:"metrics_analyzed"`
}

// Forecast methods, reported so callers know which path produced the output.
const (
	ForecastMethodARIMA         = "arima"
	ForecastMethodMovingAverage = "moving_average"
)

type ConfidenceInterval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type ForecastReport struct {
	MetricName string    `json:"metric_name"`
	Method     string    `json:"method"`
	Dates      []string  `json:"forecast_dates"`
	Values     []float64 `json:"forecast_values"`
	// Intervals is nil on the moving-average fallback path.
	Intervals       []ConfidenceInterval `json:"confidence_intervals,omitempty"`
	HistoryDates    []string             `json:"history_dates"`
	HistoryValues   []float64            `json:"history_values"`
	ModelOrder      [3]int               `json:"model_order"`
	ResidualStdDev  float64              `json:"residual_std_dev"`
	HistoricalCount int                  `json:"historical_count"`
}

type JournalMatch struct {
	EntryID    string  `json:"entry_id"`
	Date       string  `json:"date"`
	Excerpt    string  `json:"excerpt"`
	Similarity float64 `json:"similarity"`
}

type JournalSearchReport struct {
	Query   string         `json:"query"`
	Matches []JournalMatch `json:"results"`
}

type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type ResearchReport struct {
	Query     string     `json:"query"`
	Summary   string     `json:"summary"`
	Citations []Citation `json:"citations"`
}

// Strength bands for Pearson coefficients.
func StrengthLabel(coefficient float64) string {
	abs := coefficient
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 0.7:
		return "strong"
	case abs >= 0.4:
		return "moderate"
	default:
		return "weak"
	}
}

// SeriesWindow is the shared lookback window helper used by the metric tools.
func SeriesWindow(lookbackDays int, now time.Time) (time.Time, time.Time) {
	end := now.UTC()
	return end.AddDate(0, 0, -lookbackDays), end
}

// MetricReader is the slice of the metric store the analytical tools need.
type MetricReader interface {
	ReadMetricSeries(userID int64, metricType string, from, to time.Time) (health.MetricSeries, error)
	ListMetricTypes(userID int64, from, to time.Time) ([]string, error)
}
