package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/axion-health/insight-engine/internal/tools"
)

// Tool interfaces, one per capability, so tests can swap any slot.

type AnomalyTool interface {
	Detect(ctx context.Context, userID int64, params tools.AnomalyParams) (*tools.AnomalyReport, error)
}

type CorrelationTool interface {
	Analyze(ctx context.Context, userID int64, params tools.CorrelationParams) (*tools.CorrelationReport, error)
}

type ForecastTool interface {
	Forecast(ctx context.Context, userID int64, params tools.ForecastParams) (*tools.ForecastReport, error)
}

type JournalTool interface {
	Search(ctx context.Context, userID int64, params tools.JournalSearchParams) (*tools.JournalSearchReport, error)
}

type ResearchTool interface {
	Research(ctx context.Context, params tools.ResearchParams) (*tools.ResearchReport, error)
}

// Toolset is the closed capability set the orchestrator can dispatch to.
type Toolset struct {
	Anomaly     AnomalyTool
	Correlation CorrelationTool
	Forecast    ForecastTool
	Journal     JournalTool
	Research    ResearchTool
}

// Orchestrator drives a turn: plan, fan out tool calls, synthesize, remember.
// A single failing tool degrades only its own slot; the request always
// produces the best synthesis available from whatever settled successfully.
type Orchestrator struct {
	planner       Planner
	toolset       Toolset
	synthesizer   Synthesizer
	memory        *Memory
	toolTimeout   time.Duration
	globalTimeout time.Duration
}

func NewOrchestrator(planner Planner, toolset Toolset, synthesizer Synthesizer, memory *Memory, toolTimeout, globalTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		planner:       planner,
		toolset:       toolset,
		synthesizer:   synthesizer,
		memory:        memory,
		toolTimeout:   toolTimeout,
		globalTimeout: globalTimeout,
	}
}

// HandleQuery processes one user query. seedHistory lets callers that resend
// history each turn warm a fresh session; server-side memory stays the
// source of truth once the session exists.
func (o *Orchestrator) HandleQuery(ctx context.Context, scope UserScope, query string, seedHistory []Turn) (*QueryResponse, error) {
	session := o.memory.Session(scope.SessionKey)
	if session.Len() == 0 && len(seedHistory) > 0 {
		session.Append(seedHistory...)
	}
	history := session.Recent(o.memory.window)

	ctx, cancel := context.WithTimeout(ctx, o.globalTimeout)
	defer cancel()

	plan, err := o.planner.Plan(ctx, query, history)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}
	log.Printf("Planned %d tool call(s) for user %d: %v", len(plan), scope.UserID, plan.ToolIDs())

	invocations := o.executePlan(ctx, scope, plan)

	// A cross-scope breach is a privacy invariant failure: abort the whole
	// request rather than return partial data.
	for _, inv := range invocations {
		if errors.Is(inv.Err, tools.ErrCrossScope) {
			return nil, inv.Err
		}
	}

	synthesis, err := o.synthesizer.Synthesize(ctx, query, invocations, history)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	response := &QueryResponse{
		Answer:       synthesis.Answer,
		ToolsUsed:    make([]string, 0, len(invocations)),
		ToolResults:  make(map[string]any, len(invocations)),
		Sources:      synthesis.Sources,
		ChartPayload: synthesis.Chart,
	}
	for _, inv := range invocations {
		id := string(inv.Tool())
		response.ToolsUsed = append(response.ToolsUsed, id)
		if inv.Succeeded() {
			response.ToolResults[id] = inv.Report
		} else {
			response.ToolResults[id] = map[string]any{"error": inv.Err.Error()}
		}
	}

	session.Append(
		Turn{Role: RoleUser, Content: query},
		Turn{Role: RoleAssistant, Content: synthesis.Answer, ToolResults: response.ToolResults},
	)
	return response, nil
}

// executePlan runs every call concurrently and waits until all settle. Each
// call gets its own deadline under the request deadline; a slot that misses
// it records ErrToolTimeout and is never retried within the request.
func (o *Orchestrator) executePlan(ctx context.Context, scope UserScope, plan Plan) []Invocation {
	invocations := make([]Invocation, len(plan))

	var wg sync.WaitGroup
	for i, call := range plan {
		wg.Add(1)
		go func(slot int, call tools.Call) {
			defer wg.Done()
			invocations[slot] = o.invoke(ctx, scope, call)
		}(i, call)
	}
	wg.Wait()
	return invocations
}

func (o *Orchestrator) invoke(ctx context.Context, scope UserScope, call tools.Call) Invocation {
	toolCtx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()

	type outcome struct {
		report any
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		report, err := o.dispatch(toolCtx, scope, call)
		done <- outcome{report, err}
	}()

	select {
	case out := <-done:
		err := out.err
		if err != nil && toolCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %s exceeded %s", tools.ErrToolTimeout, call.Tool(), o.toolTimeout)
		}
		if err != nil {
			log.Printf("Tool %s failed for user %d: %v", call.Tool(), scope.UserID, err)
		}
		return Invocation{Call: call, Report: out.report, Err: err, Latency: time.Since(start)}
	case <-toolCtx.Done():
		// The tool goroutine is abandoned; tools are read-only so this is
		// safe. The buffered channel lets it finish without leaking a send.
		return Invocation{
			Call:    call,
			Err:     fmt.Errorf("%w: %s exceeded %s", tools.ErrToolTimeout, call.Tool(), o.toolTimeout),
			Latency: time.Since(start),
		}
	}
}

// dispatch is the single switch over the closed tool union.
func (o *Orchestrator) dispatch(ctx context.Context, scope UserScope, call tools.Call) (any, error) {
	switch params := call.Params.(type) {
	case tools.AnomalyParams:
		return o.toolset.Anomaly.Detect(ctx, scope.UserID, params)
	case tools.CorrelationParams:
		return o.toolset.Correlation.Analyze(ctx, scope.UserID, params)
	case tools.ForecastParams:
		return o.toolset.Forecast.Forecast(ctx, scope.UserID, params)
	case tools.JournalSearchParams:
		return o.toolset.Journal.Search(ctx, scope.UserID, params)
	case tools.ResearchParams:
		return o.toolset.Research.Research(ctx, params)
	default:
		return nil, fmt.Errorf("no executor for tool %s", call.Tool())
	}
}

// ClearSession discards the user's conversation memory.
func (o *Orchestrator) ClearSession(scope UserScope) {
	o.memory.Drop(scope.SessionKey)
}
