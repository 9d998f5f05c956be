package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/haasonsaas/graphquery/internal/config"
	"github.com/haasonsaas/graphquery/internal/decomposer"
	"github.com/haasonsaas/graphquery/internal/executor"
	"github.com/haasonsaas/graphquery/internal/llm"
	"github.com/haasonsaas/graphquery/internal/orchestrator"
	"github.com/haasonsaas/graphquery/internal/planner"
	"github.com/haasonsaas/graphquery/internal/synthesizer"
	"github.com/haasonsaas/graphquery/internal/toolclient"
)

// wired bundles the components every subcommand needs, built once from
// the loaded configuration.
type wired struct {
	cfg          *config.Config
	logger       *slog.Logger
	toolClient   *toolclient.Client
	orchestrator *orchestrator.Orchestrator
}

func wireFromConfig(path string) (*wired, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := buildSlogLogger(cfg.Observability)

	toolClient := toolclient.New(toolclient.Config{
		BaseURL:         cfg.ToolServer.BaseURL,
		APIKey:          cfg.ToolServer.APIKey,
		Timeout:         cfg.ToolServer.Timeout,
		MaxRetries:      cfg.ToolServer.MaxRetries,
		MaxConns:        cfg.ToolServer.MaxConns,
		MaxConnsPerHost: cfg.ToolServer.MaxConnsPerHost,
	}, logger)

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	d := decomposer.New(provider, stageConfig(decomposer.DefaultConfig(), cfg.LLM.Decomposer), logger)
	p := planner.New(provider, plannerConfig(cfg.LLM.Planner), logger)
	e := executor.New(toolClient, executor.Config{
		MaxConcurrency: cfg.Executor.MaxConcurrency,
		PerCallTimeout: cfg.Executor.PerCallTimeout,
		RankCap:        cfg.Executor.RankCap,
	}, logger)
	s := synthesizer.New(toolClient, provider, synthesizerConfig(cfg.LLM.Synthesizer), logger)

	orch := orchestrator.New(d, p, e, s, orchestrator.Config{
		DesiredCountDefault: cfg.Pipeline.DesiredCountDefault,
		DesiredCountMax:     cfg.Pipeline.DesiredCountMax,
	}, logger)

	return &wired{cfg: cfg, logger: logger, toolClient: toolClient, orchestrator: orch}, nil
}

func buildSlogLogger(cfg config.ObservabilityConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic":
		return llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: cfg.APIKey}), nil
	case "openai", "":
		return llm.NewOpenAIProvider(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func stageConfig(base decomposer.Config, override config.LLMStageConfig) decomposer.Config {
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.Temperature != 0 {
		base.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.MaxRetries != 0 {
		base.MaxRetries = override.MaxRetries
	}
	return base
}

func plannerConfig(override config.LLMStageConfig) planner.Config {
	base := planner.DefaultConfig()
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.Temperature != 0 {
		base.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.MaxRetries != 0 {
		base.MaxRetries = override.MaxRetries
	}
	return base
}

func synthesizerConfig(override config.LLMStageConfig) synthesizer.Config {
	base := synthesizer.DefaultConfig()
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.Temperature != 0 {
		base.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		base.MaxTokens = override.MaxTokens
	}
	return base
}
