package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axion-health/insight-engine/internal/agent"
	"github.com/axion-health/insight-engine/internal/api"
	"github.com/axion-health/insight-engine/internal/auth"
	"github.com/axion-health/insight-engine/internal/config"
	"github.com/axion-health/insight-engine/internal/journal"
	"github.com/axion-health/insight-engine/internal/llm"
	"github.com/axion-health/insight-engine/internal/store"
	"github.com/axion-health/insight-engine/internal/tools"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flag for demo data seeding
	seedFlag := flag.Bool("seed", false, "Seed 60 days of demo biomarker data for the demo user and exit")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Handle demo seeding if flag is set
	if *seedFlag {
		log.Println("Starting demo data seeding...")
		user, err := ensureDemoUser(dbStore)
		if err != nil {
			log.Fatalf("Demo seeding failed: %v", err)
		}
		numSeeded, err := dbStore.SeedDemoData(user.ID, 60, cfg.AnomalySeed)
		if err != nil {
			log.Fatalf("Demo seeding failed: %v", err)
		}
		log.Printf("Demo seeding complete. Inserted %d readings for user %q. Exiting.", numSeeded, user.ExternalUserID)
		os.Exit(0)
	}

	// Initialize LLM service
	llmService := llm.NewGeminiService()
	defer llmService.Close()

	// Analytical tools
	anomalyTool := tools.NewAnomalyDetector(dbStore, cfg.AnomalyMinSamples, cfg.AnomalyContamination, cfg.AnomalySeed)
	correlationTool := tools.NewCorrelationAnalyzer(dbStore, cfg.CorrelationMinOverlap)
	forecastTool := tools.NewForecaster(dbStore, cfg.ForecastMinPoints)
	journalTool := tools.NewJournalSearcher(llmService, dbStore, cfg.SimilarityFloor)
	researchTool := tools.NewResearchClient(cfg.PerplexityAPIKey)
	if cfg.PerplexityAPIKey == "" {
		log.Println("PERPLEXITY_API_KEY not set; external research will report as unavailable")
	}

	// Agent pipeline
	defaults := agent.PlannerDefaults{
		LookbackDays:   cfg.LookbackDays,
		ForecastDays:   cfg.ForecastDays,
		JournalTopK:    cfg.JournalTopK,
		MinCorrelation: cfg.MinCorrelation,
		Contamination:  cfg.AnomalyContamination,
	}
	planner := agent.NewLLMPlanner(llmService, defaults, agent.NewRulePlanner(defaults))
	synthesizer := agent.NewLLMSynthesizer(llmService)

	memory, err := agent.NewMemory(cfg.MaxSessions, cfg.MemoryWindow)
	if err != nil {
		log.Fatalf("Failed to initialize conversation memory: %v", err)
	}

	orchestrator := agent.NewOrchestrator(planner, agent.Toolset{
		Anomaly:     anomalyTool,
		Correlation: correlationTool,
		Forecast:    forecastTool,
		Journal:     journalTool,
		Research:    researchTool,
	}, synthesizer, memory, cfg.ToolTimeout, cfg.GlobalTimeout)

	insightGenerator, err := agent.NewInsightGenerator(anomalyTool, correlationTool, dbStore, cfg.InsightTTL, defaults)
	if err != nil {
		log.Fatalf("Failed to initialize insight generator: %v", err)
	}
	defer insightGenerator.Close()

	journalService := journal.NewService(dbStore, llmService)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, orchestrator, insightGenerator, journalService, journalTool, dbStore)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish before forcing exit.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

// ensureDemoUser creates the demo account on first run so seeded data has
// an owner the demo credentials can log into.
func ensureDemoUser(dbStore *store.SQLiteStore) (*store.User, error) {
	user, err := dbStore.GetUserByExternalID("demo")
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	hashed, err := auth.HashPassword("demo-password")
	if err != nil {
		return nil, err
	}
	return dbStore.CreateUser("demo", hashed)
}
