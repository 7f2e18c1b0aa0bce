package agent

import (
	"context"
	"strings"

	"github.com/axion-health/insight-engine/internal/health"
	"github.com/axion-health/insight-engine/internal/tools"
)

// Plan is the ordered set of tool calls chosen for a query. Calls carry no
// data dependencies on each other, so the orchestrator runs them all
// concurrently. An empty plan means a purely conversational turn.
type Plan []tools.Call

func (p Plan) ToolIDs() []tools.ToolID {
	ids := make([]tools.ToolID, len(p))
	for i, call := range p {
		ids[i] = call.Tool()
	}
	return ids
}

// Planner maps a query plus conversation context to a plan. Implementations
// must be side-effect free: planning inspects, execution acts.
type Planner interface {
	Plan(ctx context.Context, query string, history []Turn) (Plan, error)
}

// PlannerDefaults are the parameter values a planner fills in when the query
// does not pin them down.
type PlannerDefaults struct {
	LookbackDays   int
	ForecastDays   int
	JournalTopK    int
	MinCorrelation float64
	Contamination  float64
	DefaultMetric  string
}

// RulePlanner selects tools by matching query intent against the fixed
// capability set. It is fully deterministic, which keeps orchestration
// testable; the LLM planner behind the same interface is the pluggable
// alternative.
type RulePlanner struct {
	defaults PlannerDefaults
}

func NewRulePlanner(defaults PlannerDefaults) *RulePlanner {
	if defaults.DefaultMetric == "" {
		defaults.DefaultMetric = health.MetricHeartRateResting
	}
	return &RulePlanner{defaults: defaults}
}

var (
	forecastWords    = []string{"forecast", "predict", "prediction", "next week", "next month", "expect", "project", "will my"}
	anomalyWords     = []string{"anomal", "unusual", "abnormal", "outlier", "spike", "sudden", "weird", "strange", "concerning", "irregular"}
	correlationWords = []string{"correlat", "relationship", "related", "connection", "connected", "affect", "impact", "influence", "between"}
	journalWords     = []string{"journal", "wrote", "write", "diary", "note", "why", "because", "remember", "recall"}
	researchWords    = []string{"medication", "medicine", "drug", "side effect", "research", "study", "studies", "condition", "symptom of", "is it normal", "should i"}
	socialWords      = []string{"hello", "hi", "hey", "thanks", "thank you", "good morning", "good evening", "how are you"}
)

// symptomMetrics maps free-text symptom mentions to the metric most likely
// to explain them. Ordered so planning stays deterministic when a query
// mentions several symptoms.
var symptomMetrics = []struct {
	symptom string
	metric  string
}{
	{"exhausted", health.MetricSleepDuration},
	{"tired", health.MetricSleepDuration},
	{"fatigue", health.MetricSleepDuration},
	{"sleepy", health.MetricSleepDuration},
	{"insomnia", health.MetricSleepDuration},
	{"stressed", health.MetricHRVSDNN},
	{"anxious", health.MetricHRVSDNN},
	{"dizzy", health.MetricBPSystolic},
	{"breathless", health.MetricOxygenSaturation},
	{"winded", health.MetricOxygenSaturation},
}

func (p *RulePlanner) Plan(_ context.Context, query string, _ []Turn) (Plan, error) {
	q := strings.ToLower(query)

	metric := p.mentionedMetric(q)
	hasMetric := metric != ""
	if !hasMetric {
		if symptomMetric := mentionedSymptomMetric(q); symptomMetric != "" {
			metric = symptomMetric
			hasMetric = true
		}
	}

	wantsForecast := containsAny(q, forecastWords)
	wantsAnomaly := containsAny(q, anomalyWords)
	wantsCorrelation := containsAny(q, correlationWords)
	wantsJournal := containsAny(q, journalWords)
	wantsResearch := containsAny(q, researchWords)

	// Medication questions about the user's own signals pull in the journal
	// and the metric history alongside the web research.
	if wantsResearch && hasMetric {
		wantsJournal = true
		wantsAnomaly = true
	}
	// "Why ..." questions about a symptom look at both the journal and the
	// implicated metric's recent behavior.
	if wantsJournal && hasMetric {
		wantsAnomaly = true
	}

	noIntent := !wantsForecast && !wantsAnomaly && !wantsCorrelation && !wantsJournal && !wantsResearch
	if noIntent {
		if !hasMetric && containsAny(q, socialWords) {
			return nil, nil // purely conversational
		}
		if hasMetric {
			// A metric-referencing query always gets at least one tool.
			wantsAnomaly = true
		} else {
			// No capability matched and nothing concrete referenced: let the
			// journal answer personal-history phrasing, otherwise converse.
			return nil, nil
		}
	}

	anomalyMetric := metric
	if anomalyMetric == "" {
		anomalyMetric = p.defaults.DefaultMetric
	}

	var plan Plan
	if wantsJournal {
		plan = append(plan, tools.Call{Params: tools.JournalSearchParams{
			Query:    query,
			NResults: p.defaults.JournalTopK,
		}})
	}
	if wantsAnomaly {
		plan = append(plan, tools.Call{Params: tools.AnomalyParams{
			MetricName:    anomalyMetric,
			LookbackDays:  p.defaults.LookbackDays,
			Contamination: p.defaults.Contamination,
		}})
	}
	if wantsCorrelation {
		plan = append(plan, tools.Call{Params: tools.CorrelationParams{
			LookbackDays:   p.defaults.LookbackDays,
			MinCorrelation: p.defaults.MinCorrelation,
		}})
	}
	if wantsForecast {
		plan = append(plan, tools.Call{Params: tools.ForecastParams{
			MetricName:   anomalyMetric,
			ForecastDays: p.defaults.ForecastDays,
			LookbackDays: p.defaults.LookbackDays,
		}})
	}
	if wantsResearch {
		plan = append(plan, tools.Call{Params: tools.ResearchParams{Query: query}})
	}
	return plan, nil
}

// mentionedMetric finds the first metric the query names, via the same alias
// table the tools use.
func (p *RulePlanner) mentionedMetric(q string) string {
	candidates := []string{
		"resting heart rate", "heart rate variability", "blood pressure", "body mass index",
		"heart rate", "hrv", "steps", "step count", "walking", "sleep", "weight", "bmi",
		"body fat", "oxygen", "spo2", "glucose", "blood sugar", "respiratory rate", "exercise", "activity",
	}
	for _, name := range candidates {
		if strings.Contains(q, name) {
			return health.NormalizeMetricName(name)
		}
	}
	return ""
}

func mentionedSymptomMetric(q string) string {
	for _, entry := range symptomMetrics {
		if strings.Contains(q, entry.symptom) {
			return entry.metric
		}
	}
	return ""
}

func containsAny(q string, words []string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
