package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"dayflow/internal/agent"
	"dayflow/internal/config"
	"dayflow/internal/httpapi"
	"dayflow/internal/observability"
	"dayflow/internal/provider"
	"dayflow/internal/resolve"
	"dayflow/internal/storage"
	"dayflow/internal/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dayflowd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("no API key configured (set DAYFLOW_API_KEY or OPENAI_API_KEY)")
	}

	log := observability.Logger()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	llm := provider.NewOpenAIProvider(provider.OpenAIConfig{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		Model:      cfg.Provider.Model,
		TimeoutMS:  cfg.Provider.TimeoutMS,
		MaxRetries: cfg.Provider.MaxRetries,
	})

	resolver := resolve.New(store, store)
	registry, err := tools.NewRegistry(tools.All(tools.Deps{
		Events:   store,
		Tasks:    store,
		Resolver: resolver,
	})...)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	temperature := float32(cfg.Agent.Temperature)
	orch := agent.New(llm, store, store, registry, agent.Config{
		HistoryLimit: cfg.Agent.HistoryLimit,
		TokenBudget:  cfg.Agent.TokenBudget,
		Temperature:  &temperature,
		MaxTokens:    cfg.Agent.MaxTokens,
	})

	handler := httpapi.NewServer(store, orch)

	log.Info("dayflowd listening",
		"addr", cfg.HTTP.Addr,
		"model", cfg.Provider.Model,
		"db", cfg.Storage.Path)
	return http.ListenAndServe(cfg.HTTP.Addr, handler)
}
