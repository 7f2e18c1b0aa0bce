package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"

	"github.com/axion-health/insight-engine/internal/health"
	"github.com/axion-health/insight-engine/internal/llm"
	"github.com/axion-health/insight-engine/internal/tools"
)

const plannerSystemInstruction = "You are a personalized health AI assistant. You have access to the user's " +
	"private health data through the declared functions. Decide which functions, if any, answer the user's " +
	"question. Call multiple functions when the question spans several capabilities. For purely social " +
	"messages, call no function."

// LLMPlanner asks Gemini which capabilities a query needs and translates the
// proposed function calls into a declarative plan. It only plans; execution
// stays with the orchestrator, so a misbehaving model can never touch data
// outside the closed tool set.
type LLMPlanner struct {
	llm      *llm.GeminiService
	defaults PlannerDefaults
	fallback Planner
}

// NewLLMPlanner wraps the Gemini service. fallback handles planning when the
// model is unreachable; the rule planner is the usual choice.
func NewLLMPlanner(service *llm.GeminiService, defaults PlannerDefaults, fallback Planner) *LLMPlanner {
	if defaults.DefaultMetric == "" {
		defaults.DefaultMetric = health.MetricHeartRateResting
	}
	return &LLMPlanner{llm: service, defaults: defaults, fallback: fallback}
}

func (p *LLMPlanner) Plan(ctx context.Context, query string, history []Turn) (Plan, error) {
	calls, err := p.llm.ProposeFunctionCalls(ctx, plannerSystemInstruction, query, geminiHistory(history), toolDeclarations())
	if err != nil {
		log.Printf("LLM planner unavailable, using fallback: %v", err)
		if p.fallback != nil {
			return p.fallback.Plan(ctx, query, history)
		}
		return nil, err
	}

	var plan Plan
	for _, call := range calls {
		toolCall, err := translateCall(call, p.defaults)
		if err != nil {
			log.Printf("Dropping unplannable function call: %v", err)
			continue
		}
		plan = append(plan, toolCall)
	}
	return plan, nil
}

func translateCall(call llm.FunctionCall, defaults PlannerDefaults) (tools.Call, error) {
	switch tools.ToolID(call.Name) {
	case tools.ToolDetectAnomalies:
		return tools.Call{Params: tools.AnomalyParams{
			MetricName:    stringArg(call.Args, "metric_name", defaults.DefaultMetric),
			LookbackDays:  intArg(call.Args, "lookback_days", defaults.LookbackDays),
			Contamination: floatArg(call.Args, "contamination", defaults.Contamination),
		}}, nil
	case tools.ToolFindCorrelations:
		return tools.Call{Params: tools.CorrelationParams{
			LookbackDays:   intArg(call.Args, "lookback_days", defaults.LookbackDays),
			MinCorrelation: floatArg(call.Args, "min_correlation", defaults.MinCorrelation),
		}}, nil
	case tools.ToolRunForecasting:
		return tools.Call{Params: tools.ForecastParams{
			MetricName:   stringArg(call.Args, "metric_name", defaults.DefaultMetric),
			ForecastDays: intArg(call.Args, "forecast_days", defaults.ForecastDays),
			LookbackDays: intArg(call.Args, "lookback_days", defaults.LookbackDays),
		}}, nil
	case tools.ToolJournalSearch:
		return tools.Call{Params: tools.JournalSearchParams{
			Query:    stringArg(call.Args, "query", ""),
			NResults: intArg(call.Args, "n_results", defaults.JournalTopK),
		}}, nil
	case tools.ToolExternalResearch:
		return tools.Call{Params: tools.ResearchParams{
			Query: stringArg(call.Args, "query", ""),
		}}, nil
	default:
		return tools.Call{}, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func toolDeclarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        string(tools.ToolDetectAnomalies),
			Description: "Detect unusual patterns or outliers in a specific health metric. Use for questions about abnormal readings, sudden changes, or concerning patterns.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"metric_name":   {Type: genai.TypeString, Description: "Health metric to analyze, e.g. 'heart_rate_resting', 'steps', 'sleep_duration'. Friendly names like 'heart rate' are normalized automatically."},
					"lookback_days": {Type: genai.TypeInteger, Description: "Number of days to analyze (default 30)"},
					"contamination": {Type: genai.TypeNumber, Description: "Expected proportion of outliers 0.0-0.5 (default 0.1)"},
				},
				Required: []string{"metric_name"},
			},
		},
		{
			Name:        string(tools.ToolFindCorrelations),
			Description: "Find statistical relationships between the user's health metrics. Use for questions about connections between metrics or what affects what.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"lookback_days":   {Type: genai.TypeInteger, Description: "Number of days to analyze (default 30)"},
					"min_correlation": {Type: genai.TypeNumber, Description: "Minimum correlation coefficient to report (default 0.3)"},
				},
			},
		},
		{
			Name:        string(tools.ToolRunForecasting),
			Description: "Predict future values of a health metric from historical patterns. Use for questions about future trends or what to expect.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"metric_name":   {Type: genai.TypeString, Description: "Health metric to forecast; friendly names are normalized automatically."},
					"forecast_days": {Type: genai.TypeInteger, Description: "Number of days to forecast (default 7)"},
					"lookback_days": {Type: genai.TypeInteger, Description: "Number of historical days to use (default 30)"},
				},
				Required: []string{"metric_name"},
			},
		},
		{
			Name:        string(tools.ToolJournalSearch),
			Description: "Search the user's private journal entries by semantic similarity. Use for questions about past experiences or things the user wrote about.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query":     {Type: genai.TypeString, Description: "What to look for in journal entries"},
					"n_results": {Type: genai.TypeInteger, Description: "Number of results to return (default 5)"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        string(tools.ToolExternalResearch),
			Description: "Search the internet for health information with citations to credible sources. Use for medical conditions, medication effects, or anything not in the user's personal data.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString, Description: "Research query, e.g. 'side effects of antihistamines on heart rate'"},
				},
				Required: []string{"query"},
			},
		},
	}
}

func geminiHistory(history []Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		if turn.Content == "" {
			continue
		}
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return contents
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func floatArg(args map[string]any, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}
