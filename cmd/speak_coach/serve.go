package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jonathan/speaking-coach/internal/config"
	"github.com/jonathan/speaking-coach/internal/evaluation"
	"github.com/jonathan/speaking-coach/internal/interview"
	"github.com/jonathan/speaking-coach/internal/llm"
	"github.com/jonathan/speaking-coach/internal/observability"
	"github.com/jonathan/speaking-coach/internal/profile"
	"github.com/jonathan/speaking-coach/internal/server"
	"github.com/jonathan/speaking-coach/internal/server/ratelimit"
	"github.com/jonathan/speaking-coach/internal/session"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes interview, evaluation and profile endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	env := processEnv
	if env.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	port := env.Port
	if servePort != 0 {
		port = servePort
	}

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()

	store, closeStore, err := openProfileStore(ctx, env.DatabaseURL, serveMigrate)
	if err != nil {
		return err
	}

	llmConfig := llm.DefaultConfig().WithModel(llm.TierStandard, cfg.Model)
	client, err := llm.NewGeminiClient(ctx, llmConfig, env.GeminiAPIKey)
	if err != nil {
		closeStore()
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.MustNewMetrics(registry)

	profiles := profile.NewAggregator(store, profile.Options{
		RecentCap:           cfg.RecentRecordsCap,
		TrendCap:            cfg.TrendCap,
		TopN:                cfg.PatternTopN,
		ImprovementMinCount: cfg.ImprovementMinCount,
		PaceMinRecords:      cfg.PaceMinRecords,
		Metrics:             metrics,
		Logger:              logger,
	})

	sessions := session.NewStore(cfg.MaxSessions, cfg.SessionTTL.Std(), func(s *session.Session) {
		metrics.SessionEvicted()
		logger.Info("session evicted", "session_id", s.ID)
	})

	engine := interview.NewEngine(sessions, client, interview.Options{
		MaxQuestions:      cfg.MaxQuestions,
		GenerationTimeout: cfg.GenerationTimeout.Std(),
		Transcriber:       client.WithTier(llm.TierLite),
		Contexts:          profiles,
		Metrics:           metrics,
		Logger:            logger,
	})

	analyzer := evaluation.NewAnalyzer(client.WithTier(llm.TierAdvanced), evaluation.AnalyzerOptions{
		Concurrency: cfg.SlideConcurrency,
		Timeout:     cfg.GenerationTimeout.Std(),
		Contexts:    profiles,
		Metrics:     metrics,
		Logger:      logger,
	})

	rlConfig, err := ratelimit.LoadConfig()
	if err != nil {
		closeStore()
		_ = client.Close()
		return err
	}

	srv, err := server.New(server.Config{Port: port}, server.Deps{
		Interviews:  engine,
		Analyzer:    analyzer,
		Profiles:    profiles,
		Metrics:     metrics,
		Gatherer:    registry,
		RateLimiter: ratelimit.NewLimiter(rlConfig),
		Logger:      logger,
		OnShutdown: []func(){
			func() { _ = client.Close() },
			closeStore,
		},
	})
	if err != nil {
		closeStore()
		_ = client.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
