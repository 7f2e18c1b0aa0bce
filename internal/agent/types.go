package agent

import (
	"time"

	"github.com/axion-health/insight-engine/internal/tools"
)

// UserScope carries the requesting user's identity through every call. No
// store or tool is ever invoked without it.
type UserScope struct {
	UserID     int64
	SessionKey string
}

// Invocation records one tool call within a turn: what ran, what came back,
// and how long it took. It lives only as long as the response payload.
type Invocation struct {
	Call    tools.Call
	Report  any
	Err     error
	Latency time.Duration
}

func (inv Invocation) Tool() tools.ToolID { return inv.Call.Tool() }

func (inv Invocation) Succeeded() bool { return inv.Err == nil }

// QueryResponse is the outbound payload for an agent query. Error is set
// only on total request failure; per-tool failures appear inside ToolResults.
type QueryResponse struct {
	Answer       string           `json:"answer"`
	ToolsUsed    []string         `json:"tools_used"`
	ToolResults  map[string]any   `json:"tool_results"`
	Sources      []tools.Citation `json:"sources,omitempty"`
	ChartPayload *ChartPayload    `json:"chart_payload,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// ChartPayload carries chart-representable tool output: a forecast's
// time-indexed values or a correlation's paired points.
type ChartPayload struct {
	Kind         string                  `json:"kind"` // "forecast" or "correlation"
	Forecast     *tools.ForecastReport   `json:"forecast,omitempty"`
	Correlations []tools.CorrelationPair `json:"correlations,omitempty"`
}

// Insight kinds for the scheduled-analysis surface.
const (
	InsightAnomaly     = "anomaly"
	InsightCorrelation = "correlation"
	InsightTrend       = "trend"
	InsightSummary     = "summary"
	InsightError       = "error"
)

type Insight struct {
	Kind        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Data        any       `json:"data,omitempty"`
	GeneratedAt time.Time `json:"timestamp"`
}
