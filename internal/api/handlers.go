package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/axion-health/insight-engine/internal/agent"
	"github.com/axion-health/insight-engine/internal/auth"
	"github.com/axion-health/insight-engine/internal/journal"
	"github.com/axion-health/insight-engine/internal/store"
	"github.com/axion-health/insight-engine/internal/tools"
)

type contextKey string

const (
	ctxUserID         contextKey = "userID"
	ctxExternalUserID contextKey = "externalUserID"
)

type APIHandler struct {
	users        *store.SQLiteStore
	orchestrator *agent.Orchestrator
	insights     *agent.InsightGenerator
	journal      *journal.Service
	searcher     *tools.JournalSearcher
	metrics      tools.MetricReader
}

func NewAPIHandler(users *store.SQLiteStore, orchestrator *agent.Orchestrator, insights *agent.InsightGenerator, journalService *journal.Service, searcher *tools.JournalSearcher, metrics tools.MetricReader) *APIHandler {
	return &APIHandler{
		users:        users,
		orchestrator: orchestrator,
		insights:     insights,
		journal:      journalService,
		searcher:     searcher,
		metrics:      metrics,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.users.GetUserByExternalID(externalUserID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", externalUserID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, user.ID)
		ctx = context.WithValue(ctx, ctxExternalUserID, user.ExternalUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestScope(r *http.Request) agent.UserScope {
	return agent.UserScope{
		UserID:     r.Context().Value(ctxUserID).(int64),
		SessionKey: r.Context().Value(ctxExternalUserID).(string),
	}
}

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.UserID, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.users.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.UserID, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByExternalID(req.UserID)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.UserID, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.UserID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Agent endpoints

type AgentQueryRequest struct {
	Query   string `json:"query"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history,omitempty"`
}

func (h *APIHandler) AgentQueryHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)

	var req AgentQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "Query cannot be empty", http.StatusBadRequest)
		return
	}

	var seed []agent.Turn
	for _, msg := range req.History {
		role := agent.RoleAssistant
		if msg.Role == "user" {
			role = agent.RoleUser
		}
		seed = append(seed, agent.Turn{Role: role, Content: msg.Content})
	}

	response, err := h.orchestrator.HandleQuery(r.Context(), scope, req.Query, seed)
	if err != nil {
		if errors.Is(err, tools.ErrCrossScope) {
			log.Printf("Cross-scope violation for user %d: %v", scope.UserID, err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		log.Printf("Error processing query for user %d: %v", scope.UserID, err)
		json.NewEncoder(w).Encode(agent.QueryResponse{
			Answer:      "I'm sorry, I encountered an error while processing your request.",
			ToolsUsed:   []string{},
			ToolResults: map[string]any{},
			Error:       err.Error(),
		})
		return
	}
	json.NewEncoder(w).Encode(response)
}

func (h *APIHandler) AgentInsightsHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)

	insights, err := h.insights.Generate(r.Context(), scope.UserID)
	if err != nil {
		log.Printf("Error generating insights for user %d: %v", scope.UserID, err)
		http.Error(w, "Failed to generate insights", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"insights": insights,
		"count":    len(insights),
	})
}

func (h *APIHandler) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)
	h.orchestrator.ClearSession(scope)
	json.NewEncoder(w).Encode(map[string]string{"message": "Chat history cleared successfully"})
}

// Journal endpoints

type CreateJournalRequest struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

func (h *APIHandler) CreateJournalHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)

	var req CreateJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Journal content cannot be empty", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		http.Error(w, "Date must be an ISO date (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	entry, err := h.journal.CreateEntry(r.Context(), scope.UserID, req.Date, req.Content)
	if err != nil {
		log.Printf("Error creating journal entry for user %d: %v", scope.UserID, err)
		http.Error(w, "Failed to create journal entry", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (h *APIHandler) ListJournalHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)

	entries, err := h.journal.ListEntries(scope.UserID)
	if err != nil {
		log.Printf("Error listing journal entries for user %d: %v", scope.UserID, err)
		http.Error(w, "Failed to list journal entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.JournalEntry{}
	}
	json.NewEncoder(w).Encode(entries)
}

func (h *APIHandler) GetJournalHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)
	entryID := chi.URLParam(r, "entryID")

	entry, err := h.journal.GetEntry(entryID, scope.UserID)
	if err != nil {
		log.Printf("Error getting journal entry %s for user %d: %v", entryID, scope.UserID, err)
		http.Error(w, "Failed to get journal entry", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "Journal entry not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(entry)
}

func (h *APIHandler) DeleteJournalHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)
	entryID := chi.URLParam(r, "entryID")

	deleted, err := h.journal.DeleteEntry(entryID, scope.UserID)
	if err != nil {
		log.Printf("Error deleting journal entry %s for user %d: %v", entryID, scope.UserID, err)
		http.Error(w, "Failed to delete journal entry", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Journal entry not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type JournalSearchRequest struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results"`
}

func (h *APIHandler) SearchJournalHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)

	var req JournalSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "Search query cannot be empty", http.StatusBadRequest)
		return
	}

	report, err := h.searcher.Search(r.Context(), scope.UserID, tools.JournalSearchParams{
		Query:    req.Query,
		NResults: req.NResults,
	})
	if err != nil {
		log.Printf("Error searching journal for user %d: %v", scope.UserID, err)
		http.Error(w, "Failed to search journal", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"query":   report.Query,
		"results": report.Matches,
		"count":   len(report.Matches),
	})
}

// Health data readout

func (h *APIHandler) HealthDataHandler(w http.ResponseWriter, r *http.Request) {
	scope := requestScope(r)

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			http.Error(w, "days must be between 1 and 90", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	from, to := tools.SeriesWindow(days, time.Now())

	metricTypes := []string{}
	if raw := r.URL.Query().Get("metrics"); raw != "" {
		metricTypes = strings.Split(raw, ",")
	} else {
		listed, err := h.metrics.ListMetricTypes(scope.UserID, from, to)
		if err != nil {
			log.Printf("Error listing metric types for user %d: %v", scope.UserID, err)
			http.Error(w, "Failed to read health data", http.StatusInternalServerError)
			return
		}
		metricTypes = listed
	}

	series := make(map[string]any, len(metricTypes))
	for _, metricType := range metricTypes {
		s, err := h.metrics.ReadMetricSeries(scope.UserID, strings.TrimSpace(metricType), from, to)
		if err != nil {
			log.Printf("Error reading %s for user %d: %v", metricType, scope.UserID, err)
			http.Error(w, "Failed to read health data", http.StatusInternalServerError)
			return
		}
		series[s.MetricType] = s
	}
	json.NewEncoder(w).Encode(map[string]any{
		"days":    days,
		"metrics": series,
	})
}
