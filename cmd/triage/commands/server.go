package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opsloop/triage/internal/agent/engine"
	"github.com/opsloop/triage/internal/agent/entities"
	"github.com/opsloop/triage/internal/agent/provider"
	"github.com/opsloop/triage/internal/apiserver"
	"github.com/opsloop/triage/internal/config"
	"github.com/opsloop/triage/internal/correlation"
	"github.com/opsloop/triage/internal/knowledge"
	"github.com/opsloop/triage/internal/lifecycle"
	"github.com/opsloop/triage/internal/logging"
	"github.com/opsloop/triage/internal/mcp"
	"github.com/opsloop/triage/internal/metrics"
	"github.com/opsloop/triage/internal/runner"
	"github.com/opsloop/triage/internal/store"
)

var (
	apiPort             int
	providersConfigPath string
	watchProviders      bool
	knowledgeGraphPath  string
	llmProvider         string
	llmAPIKey           string
	llmModel            string
	llmTemperature      float64
	llmMaxTokens        int
	maxIterations       int
	toolTimeout         time.Duration
	reasoningTimeout    time.Duration
	maxConcurrent       int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the triage server",
	Long: `Start the triage server which accepts incident reports over HTTP,
investigates them against the configured tool providers, and exposes
their findings through the API.`,
	Run: runServer,
}

func init() {
	serverCmd.Flags().IntVar(&apiPort, "api-port", 8080, "Port the API server listens on")
	serverCmd.Flags().StringVar(&providersConfigPath, "providers-config", "providers.yaml",
		"Path to the YAML file describing MCP tool providers")
	serverCmd.Flags().BoolVar(&watchProviders, "watch-providers", false,
		"Reload tool providers when the providers config file changes")
	serverCmd.Flags().StringVar(&knowledgeGraphPath, "knowledge-graph", "",
		"Path to the component topology YAML file used by rule-based correlation (optional)")
	serverCmd.Flags().StringVar(&llmProvider, "llm-provider", "anthropic",
		"Reasoning backend: anthropic, gemini, or mock")
	serverCmd.Flags().StringVar(&llmAPIKey, "llm-api-key", "",
		"API key for the reasoning backend (defaults to ANTHROPIC_API_KEY or GEMINI_API_KEY env var)")
	serverCmd.Flags().StringVar(&llmModel, "llm-model", "",
		"Model identifier (defaults to the backend's default model)")
	serverCmd.Flags().Float64Var(&llmTemperature, "llm-temperature", 0.0,
		"Sampling temperature for reasoning calls")
	serverCmd.Flags().IntVar(&llmMaxTokens, "llm-max-tokens", 4096,
		"Maximum tokens per reasoning response")
	serverCmd.Flags().IntVar(&maxIterations, "max-iterations", 10,
		"Maximum reasoning iterations per investigation")
	serverCmd.Flags().DurationVar(&toolTimeout, "tool-timeout", 30*time.Second,
		"Timeout for a single tool invocation")
	serverCmd.Flags().DurationVar(&reasoningTimeout, "reasoning-timeout", 60*time.Second,
		"Timeout for a single reasoning call")
	serverCmd.Flags().IntVar(&maxConcurrent, "max-concurrent-investigations", 4,
		"Maximum number of investigations running at once")
}

func runServer(cmd *cobra.Command, args []string) {
	cfg := &config.Config{
		APIPort:                     apiPort,
		ProvidersConfigPath:         providersConfigPath,
		WatchProviders:              watchProviders,
		KnowledgeGraphPath:          knowledgeGraphPath,
		MaxIterations:               maxIterations,
		ToolTimeout:                 toolTimeout,
		ReasoningTimeout:            reasoningTimeout,
		MaxConcurrentInvestigations: maxConcurrent,
		LLM: config.LLMConfig{
			Provider:    llmProvider,
			APIKey:      resolveAPIKey(llmProvider, llmAPIKey),
			Model:       llmModel,
			Temperature: llmTemperature,
			MaxTokens:   llmMaxTokens,
		},
	}

	if err := cfg.Validate(); err != nil {
		HandleError(err, "Configuration error")
	}

	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("server")

	logger.Info("Starting Triage v%s", Version)
	logger.Debug("Configuration loaded: APIPort=%d Provider=%s", cfg.APIPort, cfg.LLM.Provider)

	manager := lifecycle.NewManager()

	promRegistry := prometheus.NewRegistry()
	m := metrics.NewMetrics(promRegistry)

	// Tool provider registry. A provider failing to connect degrades the
	// catalog but does not block startup.
	providersFile, err := config.LoadProvidersFile(cfg.ProvidersConfigPath)
	if err != nil {
		logger.Error("Failed to load providers config: %v", err)
		HandleError(err, "Providers config error")
	}

	registry := mcp.NewRegistry(Version)
	initCtx, initCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := registry.Initialize(initCtx, providersFile.EnabledProviders()); err != nil {
		initCancel()
		logger.Error("Failed to initialize tool providers: %v", err)
		HandleError(err, "Tool provider initialization error")
	}
	initCancel()
	logger.Info("Tool registry initialized: %d tools from %d providers",
		len(registry.Catalog()), len(registry.Providers()))

	var providersWatcher *config.ProvidersWatcher
	if cfg.WatchProviders {
		providersWatcher, err = config.NewProvidersWatcher(config.ProvidersWatcherConfig{
			FilePath: cfg.ProvidersConfigPath,
		}, func(reloaded *config.ProvidersFile) error {
			reloadCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			return registry.Reload(reloadCtx, reloaded.EnabledProviders())
		})
		if err != nil {
			logger.Error("Failed to create providers watcher: %v", err)
			HandleError(err, "Providers watcher error")
		}
		if err := providersWatcher.Start(context.Background()); err != nil {
			logger.Error("Failed to start providers watcher: %v", err)
			HandleError(err, "Providers watcher error")
		}
		logger.Info("Watching providers config for changes: %s", cfg.ProvidersConfigPath)
	}

	llm, err := buildProvider(cfg.LLM)
	if err != nil {
		logger.Error("Failed to create reasoning provider: %v", err)
		HandleError(err, "Reasoning provider error")
	}
	retryCfg := provider.DefaultRetryConfig()
	retryCfg.AttemptTimeout = cfg.ReasoningTimeout
	reasoner := provider.WithRetry(llm, retryCfg)
	logger.Info("Reasoning provider ready: %s (%s)", llm.Name(), llm.Model())

	// Optional knowledge graph for the correlation fallback.
	var graph *knowledge.Graph
	if cfg.KnowledgeGraphPath != "" {
		graph, err = knowledge.Load(cfg.KnowledgeGraphPath)
		if err != nil {
			logger.Error("Failed to load knowledge graph: %v", err)
			HandleError(err, "Knowledge graph error")
		}
		logger.Info("Knowledge graph loaded: %d components", graph.Len())
	}
	fallback := correlation.NewEngine(graph)

	incidentStore := store.NewMemoryStore()

	invoker := mcp.NewInvoker(registry, cfg.ToolTimeout, m)
	investigator := engine.New(reasoner, invoker, engine.Options{
		MaxIterations: cfg.MaxIterations,
		Metrics:       m,
		Fallback:      fallback,
	})

	// Entity extraction runs on the same reasoning provider; it degrades
	// to regex extraction when the model call fails.
	extractor := entities.NewExtractor(reasoner)

	runnerComponent := runner.New(incidentStore, investigator, extractor, m, cfg.MaxConcurrentInvestigations)
	if err := manager.Register(runnerComponent); err != nil {
		logger.Error("Failed to register runner component: %v", err)
		HandleError(err, "Runner registration error")
	}

	apiComponent := apiserver.New(cfg.APIPort, incidentStore, runnerComponent, registry, promRegistry)
	if err := manager.Register(apiComponent, runnerComponent); err != nil {
		logger.Error("Failed to register API server component: %v", err)
		HandleError(err, "API server registration error")
	}

	logger.Info("All components registered with dependencies")
	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		logger.Error("Failed to start components: %v", err)
		HandleError(err, "Startup error")
	}

	logger.Info("Application started successfully")
	logger.Info("Accepting incidents on port %d", cfg.APIPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received, gracefully shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if providersWatcher != nil {
		providersWatcher.Stop()
	}

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}

	if err := registry.Close(); err != nil {
		logger.Error("Failed to close tool registry: %v", err)
	}

	logger.Info("Shutdown complete")
}

// resolveAPIKey falls back to the backend's conventional env var when no
// key flag is given.
func resolveAPIKey(backend, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	switch backend {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// buildProvider constructs the reasoning backend from config.
func buildProvider(cfg config.LLMConfig) (provider.Provider, error) {
	pcfg := provider.DefaultConfig()
	if cfg.Model != "" {
		pcfg.Model = cfg.Model
	}
	if cfg.MaxTokens > 0 {
		pcfg.MaxTokens = cfg.MaxTokens
	}
	pcfg.Temperature = cfg.Temperature

	switch cfg.Provider {
	case "anthropic":
		return provider.NewAnthropicProviderWithKey(cfg.APIKey, pcfg)
	case "gemini":
		return provider.NewGeminiProvider(context.Background(), cfg.APIKey, pcfg)
	case "mock":
		return &mockProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown reasoning backend: %s", cfg.Provider)
	}
}

// mockProvider answers every reasoning call with a canned analysis.
// Useful for exercising the API and investigation plumbing without a
// real model.
type mockProvider struct{}

func (p *mockProvider) Chat(ctx context.Context, systemPrompt string, messages []provider.Message, tools []provider.ToolDefinition) (*provider.Response, error) {
	return &provider.Response{
		Content: "ROOT CAUSE: Mock investigation, no analysis performed.\n" +
			"CONFIDENCE: low\n" +
			"EVIDENCE: Mock provider returns canned output.\n" +
			"RECOMMENDATIONS:\n- Configure a real reasoning backend",
		StopReason: provider.StopReasonEndTurn,
	}, nil
}

func (p *mockProvider) Name() string  { return "mock" }
func (p *mockProvider) Model() string { return "mock-v1" }
