package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axion-health/insight-engine/internal/agent"
	"github.com/axion-health/insight-engine/internal/config"
	"github.com/axion-health/insight-engine/internal/health"
	"github.com/axion-health/insight-engine/internal/journal"
	"github.com/axion-health/insight-engine/internal/store"
	"github.com/axion-health/insight-engine/internal/tools"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) EmbedDocument(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type stubResearch struct{}

func (stubResearch) Research(_ context.Context, params tools.ResearchParams) (*tools.ResearchReport, error) {
	return &tools.ResearchReport{Query: params.Query, Summary: "stub summary"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	config.AppConfig.JWTSecret = "test-secret"

	dbStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })

	defaults := agent.PlannerDefaults{
		LookbackDays:   30,
		ForecastDays:   7,
		JournalTopK:    5,
		MinCorrelation: 0.3,
		Contamination:  0.1,
	}
	anomalyTool := tools.NewAnomalyDetector(dbStore, 7, 0.1, 42)
	correlationTool := tools.NewCorrelationAnalyzer(dbStore, 5)
	forecastTool := tools.NewForecaster(dbStore, 14)
	journalTool := tools.NewJournalSearcher(stubEmbedder{}, dbStore, 0.3)

	memory, err := agent.NewMemory(16, 20)
	require.NoError(t, err)

	orchestrator := agent.NewOrchestrator(
		agent.NewRulePlanner(defaults),
		agent.Toolset{
			Anomaly:     anomalyTool,
			Correlation: correlationTool,
			Forecast:    forecastTool,
			Journal:     journalTool,
			Research:    stubResearch{},
		},
		agent.TemplateSynthesizer{},
		memory,
		time.Second,
		5*time.Second,
	)

	insights, err := agent.NewInsightGenerator(anomalyTool, correlationTool, dbStore, time.Minute, defaults)
	require.NoError(t, err)
	t.Cleanup(insights.Close)

	journalService := journal.NewService(dbStore, stubEmbedder{})
	handler := NewAPIHandler(dbStore, orchestrator, insights, journalService, journalTool, dbStore)

	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)
	return server, dbStore
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func signupAndLogin(t *testing.T, server *httptest.Server, userID string) string {
	t.Helper()
	creds := map[string]string{"user_id": userID, "password": "secret-password"}

	resp := doJSON(t, http.MethodPost, server.URL+"/api/signup", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	require.NotEmpty(t, body["token"])
	return body["token"]
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/agent/query", "", map[string]string{"query": "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/agent/query", "not-a-token", map[string]string{"query": "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	server, _ := newTestServer(t)
	signupAndLogin(t, server, "alice")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/login", "", map[string]string{
		"user_id": "alice", "password": "wrong",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAgentQuery_Conversational(t *testing.T) {
	server, _ := newTestServer(t)
	token := signupAndLogin(t, server, "alice")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/agent/query", token, map[string]string{"query": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body agent.QueryResponse
	decode(t, resp, &body)
	assert.NotEmpty(t, body.Answer)
	assert.Empty(t, body.ToolsUsed, "A greeting runs no tools")
	assert.Empty(t, body.Error)
}

func TestAgentQuery_WithData(t *testing.T) {
	server, dbStore := newTestServer(t)
	token := signupAndLogin(t, server, "alice")

	user, err := dbStore.GetUserByExternalID("alice")
	require.NoError(t, err)
	base := time.Now().UTC().AddDate(0, 0, -20)
	for i := 0; i < 20; i++ {
		require.NoError(t, dbStore.InsertMetric(user.ID, store.HealthMetric{
			Timestamp:  base.AddDate(0, 0, i),
			MetricType: health.MetricHeartRateResting,
			Value:      "62",
			Unit:       "bpm",
			Source:     "test",
		}))
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/api/agent/query", token, map[string]string{
		"query": "anything unusual in my heart rate?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body agent.QueryResponse
	decode(t, resp, &body)
	assert.Contains(t, body.ToolsUsed, string(tools.ToolDetectAnomalies))
	assert.NotEmpty(t, body.Answer)
}

func TestClearHistory(t *testing.T) {
	server, _ := newTestServer(t)
	token := signupAndLogin(t, server, "alice")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/agent/query", token, map[string]string{"query": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, server.URL+"/api/agent/history", token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJournalCRUD(t *testing.T) {
	server, _ := newTestServer(t)
	token := signupAndLogin(t, server, "alice")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/journal", token, map[string]string{
		"date": "2025-03-01", "content": "slept badly after late coffee",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created store.JournalEntry
	decode(t, resp, &created)
	require.NotEmpty(t, created.ID)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/journal", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []store.JournalEntry
	decode(t, resp, &entries)
	assert.Len(t, entries, 1)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/journal/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched store.JournalEntry
	decode(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)

	resp = doJSON(t, http.MethodDelete, server.URL+"/api/journal/"+created.ID, token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/journal/"+created.ID, token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJournal_RejectsBadDate(t *testing.T) {
	server, _ := newTestServer(t)
	token := signupAndLogin(t, server, "alice")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/journal", token, map[string]string{
		"date": "March 1st", "content": "content",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJournal_IsolatedBetweenUsers(t *testing.T) {
	server, _ := newTestServer(t)
	aliceToken := signupAndLogin(t, server, "alice")
	bobToken := signupAndLogin(t, server, "bob")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/journal", aliceToken, map[string]string{
		"date": "2025-03-01", "content": "private",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created store.JournalEntry
	decode(t, resp, &created)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/journal/"+created.ID, bobToken, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "Another user's entry reads as not-found")

	resp = doJSON(t, http.MethodGet, server.URL+"/api/journal", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []store.JournalEntry
	decode(t, resp, &entries)
	assert.Empty(t, entries)
}

func TestJournalSearchEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	token := signupAndLogin(t, server, "alice")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/journal", token, map[string]string{
		"date": "2025-03-01", "content": "felt exhausted after a terrible night",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/journal/search", token, map[string]any{
		"query": "why am I tired", "n_results": 3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []tools.JournalMatch `json:"results"`
		Count   int                  `json:"count"`
	}
	decode(t, resp, &body)
	assert.Equal(t, len(body.Results), body.Count)
	require.NotEmpty(t, body.Results, "The stub embedder makes every entry a perfect match")
}

func TestHealthDataEndpoint(t *testing.T) {
	server, dbStore := newTestServer(t)
	token := signupAndLogin(t, server, "alice")

	user, err := dbStore.GetUserByExternalID("alice")
	require.NoError(t, err)
	require.NoError(t, dbStore.InsertMetric(user.ID, store.HealthMetric{
		Timestamp:  time.Now().UTC().AddDate(0, 0, -1),
		MetricType: health.MetricSteps,
		Value:      "9000",
		Unit:       "steps",
		Source:     "test",
	}))

	resp := doJSON(t, http.MethodGet, server.URL+"/api/health-data?days=7", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Days    int                            `json:"days"`
		Metrics map[string]health.MetricSeries `json:"metrics"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 7, body.Days)
	require.Contains(t, body.Metrics, health.MetricSteps)
	assert.Len(t, body.Metrics[health.MetricSteps].Points, 1)
}

func TestInsightsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	token := signupAndLogin(t, server, "alice")

	resp := doJSON(t, http.MethodGet, server.URL+"/api/agent/insights", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Insights []agent.Insight `json:"insights"`
		Count    int             `json:"count"`
	}
	decode(t, resp, &body)
	assert.Equal(t, len(body.Insights), body.Count)
	require.NotEmpty(t, body.Insights, "Even an empty account gets the summary card")
}
