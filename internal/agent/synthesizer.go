package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/axion-health/insight-engine/internal/llm"
	"github.com/axion-health/insight-engine/internal/tools"
)

// Synthesis is the merged view of a turn: one narrative answer plus the
// structured extras derived from tool output.
type Synthesis struct {
	Answer  string
	Sources []tools.Citation
	Chart   *ChartPayload
}

// Synthesizer folds tool results, including failures, into one answer. It
// must never invent an outcome for a tool that failed.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, invocations []Invocation, history []Turn) (Synthesis, error)
}

// TemplateSynthesizer builds the answer deterministically from whichever
// tools succeeded and names the ones that did not. Sources and chart payload
// are always assembled here, whether or not an LLM rewrites the prose.
type TemplateSynthesizer struct{}

func (TemplateSynthesizer) Synthesize(_ context.Context, query string, invocations []Invocation, _ []Turn) (Synthesis, error) {
	synthesis := Synthesis{
		Sources: collectSources(invocations),
		Chart:   buildChart(invocations),
	}

	if len(invocations) == 0 {
		synthesis.Answer = "Hello! Ask me about your health data: I can spot unusual readings, find " +
			"relationships between metrics, forecast trends, search your journal, and look up health research."
		return synthesis, nil
	}

	var sections []string
	for _, inv := range invocations {
		if !inv.Succeeded() {
			sections = append(sections, failureSentence(inv))
			continue
		}
		if section := successSection(inv); section != "" {
			sections = append(sections, section)
		}
	}
	synthesis.Answer = strings.Join(sections, "\n\n")
	return synthesis, nil
}

func successSection(inv Invocation) string {
	switch report := inv.Report.(type) {
	case *tools.AnomalyReport:
		anomalies := report.Anomalies()
		if len(anomalies) == 0 {
			return fmt.Sprintf("Your %s looks steady over the last %d readings (mean %.1f, no notable outliers).",
				report.MetricName, report.TotalDataPoints, report.Mean)
		}
		var days []string
		for _, a := range anomalies {
			days = append(days, fmt.Sprintf("%s (%.1f)", a.Timestamp.Format("Jan 2"), a.Value))
		}
		return fmt.Sprintf("I found %d unusual %s reading(s): %s. Typical range centers on %.1f ± %.1f.",
			len(anomalies), report.MetricName, strings.Join(days, ", "), report.Mean, report.StdDev)
	case *tools.CorrelationReport:
		if len(report.Pairs) == 0 {
			return fmt.Sprintf("No notable relationships showed up across %d metrics in this window.", len(report.MetricsAnalyzed))
		}
		var lines []string
		for _, pair := range report.Pairs {
			lines = append(lines, fmt.Sprintf("%s and %s move together with a %s %s correlation (r=%.2f over %d days)",
				pair.MetricA, pair.MetricB, pair.Strength, pair.Direction, pair.Coefficient, pair.OverlapCount))
		}
		return "Relationships in your data: " + strings.Join(lines, "; ") + "."
	case *tools.ForecastReport:
		method := "an ARIMA time-series model"
		if report.Method == tools.ForecastMethodMovingAverage {
			method = "a trailing moving average (not enough history for a full model)"
		}
		last := len(report.Values) - 1
		return fmt.Sprintf("Based on %s, your %s is projected around %.1f by %s (from %d days of history).",
			method, report.MetricName, report.Values[last], report.Dates[last], report.HistoricalCount)
	case *tools.JournalSearchReport:
		if len(report.Matches) == 0 {
			return "I didn't find journal entries related to this."
		}
		top := report.Matches[0]
		return fmt.Sprintf("Your journal from %s seems relevant: \"%s\" (%d matching entr%s overall).",
			top.Date, top.Excerpt, len(report.Matches), plural(len(report.Matches), "y", "ies"))
	case *tools.ResearchReport:
		return "From published sources: " + report.Summary
	default:
		return ""
	}
}

// failureSentence states plainly that a tool's contribution is missing and
// why, so the answer never implies a result that was not produced.
func failureSentence(inv Invocation) string {
	switch {
	case errors.Is(inv.Err, tools.ErrInsufficientData):
		return fmt.Sprintf("I couldn't run %s: %v.", describeTool(inv.Tool()), inv.Err)
	case errors.Is(inv.Err, tools.ErrInsufficientOverlap):
		return "There wasn't enough overlapping data to correlate those metrics."
	case errors.Is(inv.Err, tools.ErrUndefinedStatistic):
		return "One of the metrics doesn't vary in this window, so a correlation isn't defined."
	case errors.Is(inv.Err, tools.ErrResearchUnavailable):
		return "I couldn't reach the research service, so this answer has no external citations."
	case errors.Is(inv.Err, tools.ErrToolTimeout):
		return fmt.Sprintf("The %s step took too long and was skipped.", describeTool(inv.Tool()))
	default:
		return fmt.Sprintf("The %s step failed, so its findings are missing from this answer.", describeTool(inv.Tool()))
	}
}

func describeTool(id tools.ToolID) string {
	switch id {
	case tools.ToolDetectAnomalies:
		return "anomaly detection"
	case tools.ToolFindCorrelations:
		return "correlation analysis"
	case tools.ToolRunForecasting:
		return "forecasting"
	case tools.ToolJournalSearch:
		return "journal search"
	case tools.ToolExternalResearch:
		return "external research"
	default:
		return string(id)
	}
}

func collectSources(invocations []Invocation) []tools.Citation {
	for _, inv := range invocations {
		if report, ok := inv.Report.(*tools.ResearchReport); ok && inv.Err == nil {
			return report.Citations
		}
	}
	return nil
}

// buildChart attaches the first chart-representable result: forecasts win
// over correlations since they carry a full time axis.
func buildChart(invocations []Invocation) *ChartPayload {
	for _, inv := range invocations {
		if report, ok := inv.Report.(*tools.ForecastReport); ok && inv.Err == nil {
			return &ChartPayload{Kind: "forecast", Forecast: report}
		}
	}
	for _, inv := range invocations {
		if report, ok := inv.Report.(*tools.CorrelationReport); ok && inv.Err == nil && len(report.Pairs) > 0 {
			return &ChartPayload{Kind: "correlation", Correlations: report.Pairs}
		}
	}
	return nil
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

const synthesisSystemInstruction = "You are a personalized health AI assistant. Write one clear, supportive " +
	"answer grounded ONLY in the tool results provided. Acknowledge any tool that failed instead of guessing " +
	"its outcome. Use specific numbers and dates from the results. If results suggest a concerning pattern, " +
	"recommend consulting a healthcare professional. Never invent data."

// LLMSynthesizer rewrites the grounded narrative with Gemini for fluency,
// keeping the deterministic synthesis as both the prompt grounding and the
// fallback when the model is unreachable.
type LLMSynthesizer struct {
	llm      *llm.GeminiService
	template TemplateSynthesizer
}

func NewLLMSynthesizer(service *llm.GeminiService) *LLMSynthesizer {
	return &LLMSynthesizer{llm: service}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, query string, invocations []Invocation, history []Turn) (Synthesis, error) {
	base, err := s.template.Synthesize(ctx, query, invocations, history)
	if err != nil {
		return Synthesis{}, err
	}

	prompt := s.buildPrompt(query, invocations, history, base.Answer)
	answer, err := s.llm.Complete(ctx, synthesisSystemInstruction, prompt)
	if err != nil {
		log.Printf("LLM synthesis failed, returning grounded answer: %v", err)
		return base, nil
	}

	base.Answer = answer
	return base, nil
}

func (s *LLMSynthesizer) buildPrompt(query string, invocations []Invocation, history []Turn, grounded string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User question: %s\n\nTool results:\n", query)
	for _, inv := range invocations {
		if inv.Err != nil {
			fmt.Fprintf(&b, "- %s FAILED: %v\n", inv.Tool(), inv.Err)
			continue
		}
		payload, err := json.Marshal(inv.Report)
		if err != nil {
			fmt.Fprintf(&b, "- %s: (unserializable result)\n", inv.Tool())
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", inv.Tool(), payload)
	}
	fmt.Fprintf(&b, "\nGrounded draft answer:\n%s\n\nRewrite the draft into a single natural reply.", grounded)
	return b.String()
}
