package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axion-health/insight-engine/internal/health"
	"github.com/axion-health/insight-engine/internal/tools"
)

func testPlanner() *RulePlanner {
	return NewRulePlanner(PlannerDefaults{
		LookbackDays:   30,
		ForecastDays:   7,
		JournalTopK:    5,
		MinCorrelation: 0.3,
		Contamination:  0.1,
	})
}

func planFor(t *testing.T, query string) Plan {
	t.Helper()
	plan, err := testPlanner().Plan(context.Background(), query, nil)
	require.NoError(t, err)
	return plan
}

func toolSet(plan Plan) map[tools.ToolID]bool {
	set := make(map[tools.ToolID]bool, len(plan))
	for _, id := range plan.ToolIDs() {
		set[id] = true
	}
	return set
}

func TestRulePlanner_ForecastQuery(t *testing.T) {
	plan := planFor(t, "Forecast my resting heart rate for next week")

	set := toolSet(plan)
	assert.True(t, set[tools.ToolRunForecasting])
	assert.False(t, set[tools.ToolExternalResearch])

	var params tools.ForecastParams
	for _, call := range plan {
		if p, ok := call.Params.(tools.ForecastParams); ok {
			params = p
		}
	}
	assert.Equal(t, health.MetricHeartRateResting, params.MetricName)
	assert.Equal(t, 7, params.ForecastDays)
}

func TestRulePlanner_SymptomQueryPullsJournalAndMetric(t *testing.T) {
	plan := planFor(t, "Why was I so tired last Tuesday?")

	set := toolSet(plan)
	assert.True(t, set[tools.ToolJournalSearch], "A 'why' question searches the journal")
	assert.True(t, set[tools.ToolDetectAnomalies], "The implicated metric's history is checked too")

	var params tools.AnomalyParams
	for _, call := range plan {
		if p, ok := call.Params.(tools.AnomalyParams); ok {
			params = p
		}
	}
	assert.Equal(t, health.MetricSleepDuration, params.MetricName, "Tiredness implicates sleep")
}

func TestRulePlanner_CorrelationQuery(t *testing.T) {
	plan := planFor(t, "Is there a relationship between my sleep and my steps?")

	set := toolSet(plan)
	assert.True(t, set[tools.ToolFindCorrelations])
}

func TestRulePlanner_MedicationQueryFansOut(t *testing.T) {
	plan := planFor(t, "Could my new medication affect my heart rate?")

	set := toolSet(plan)
	assert.True(t, set[tools.ToolExternalResearch])
	assert.True(t, set[tools.ToolJournalSearch], "Personal context accompanies the web research")
	assert.True(t, set[tools.ToolDetectAnomalies])
}

func TestRulePlanner_SocialQueryPlansNothing(t *testing.T) {
	for _, query := range []string{"hello", "Hi there!", "thanks a lot", "good morning"} {
		plan := planFor(t, query)
		assert.Empty(t, plan, "Purely conversational messages run no tools: %q", query)
	}
}

func TestRulePlanner_MetricMentionWithoutIntent(t *testing.T) {
	plan := planFor(t, "Tell me about my blood pressure")

	require.Len(t, plan, 1, "A metric mention with no other intent gets one anomaly check")
	params, ok := plan[0].Params.(tools.AnomalyParams)
	require.True(t, ok)
	assert.Equal(t, health.MetricBPSystolic, params.MetricName)
}

func TestRulePlanner_Deterministic(t *testing.T) {
	query := "I feel tired and stressed, is that unusual?"

	first := planFor(t, query)
	second := planFor(t, query)

	assert.Equal(t, first, second, "The same query must always produce the same plan")
}
