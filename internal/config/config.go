// Package config loads and validates the pipeline's configuration: a
// layered YAML/JSON5 loader with $include resolution and environment
// variable expansion, following internal/config/loader.go's shape in the
// teacher, re-sectioned for the query-orchestration domain instead of the
// teacher's channel-gateway schema.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the graphquery pipeline.
type Config struct {
	Version       int                 `yaml:"version"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	ToolServer    ToolServerConfig    `yaml:"toolserver"`
	LLM           LLMConfig           `yaml:"llm"`
	Executor      ExecutorConfig      `yaml:"executor"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PipelineConfig bounds how many candidates a run requests and how long a
// single run is allowed to take end to end.
type PipelineConfig struct {
	DesiredCountDefault int           `yaml:"desired_count_default"`
	DesiredCountMax     int           `yaml:"desired_count_max"`
	Deadline            time.Duration `yaml:"deadline"`
}

// ToolServerConfig configures the JSON-RPC tool server connection.
type ToolServerConfig struct {
	BaseURL string `yaml:"base_url"`
	// APIKey is never set from the config file itself (see applyEnvOverrides);
	// it is sourced from GRAPHQUERY_TOOLSERVER_API_KEY at load time.
	APIKey          string        `yaml:"-"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	MaxConns        int           `yaml:"max_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
}

// LLMConfig selects the backend provider and per-stage call parameters.
type LLMConfig struct {
	// Provider selects the backend: "openai" or "anthropic".
	Provider string `yaml:"provider"`
	// APIKey is sourced from GRAPHQUERY_LLM_API_KEY, never from the file.
	APIKey      string             `yaml:"-"`
	Decomposer  LLMStageConfig     `yaml:"decomposer"`
	Planner     LLMStageConfig     `yaml:"planner"`
	Synthesizer LLMStageConfig     `yaml:"synthesizer"`
}

// LLMStageConfig overrides the model/temperature/token budget for one of
// the pipeline's three LLM call sites. Zero values fall back to that
// stage's package-level DefaultConfig.
type LLMStageConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	MaxRetries  int     `yaml:"max_retries"`
}

// ExecutorConfig bounds sub-query fan-out concurrency and ranked output size.
type ExecutorConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	PerCallTimeout time.Duration `yaml:"per_call_timeout"`
	RankCap        int           `yaml:"rank_cap"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TracingConfig controls OpenTelemetry OTLP trace export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// Load reads path (resolving $include directives and expanding ${VAR}
// references), decodes it strictly, applies defaults, layers in
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Pipeline.DesiredCountDefault == 0 {
		cfg.Pipeline.DesiredCountDefault = 5
	}
	if cfg.Pipeline.DesiredCountMax == 0 {
		cfg.Pipeline.DesiredCountMax = 10
	}
	if cfg.Pipeline.Deadline == 0 {
		cfg.Pipeline.Deadline = 60 * time.Second
	}

	if cfg.ToolServer.Timeout == 0 {
		cfg.ToolServer.Timeout = 10 * time.Second
	}
	if cfg.ToolServer.MaxRetries == 0 {
		cfg.ToolServer.MaxRetries = 2
	}
	if cfg.ToolServer.MaxConns == 0 {
		cfg.ToolServer.MaxConns = 100
	}
	if cfg.ToolServer.MaxConnsPerHost == 0 {
		cfg.ToolServer.MaxConnsPerHost = 20
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}

	if cfg.Executor.MaxConcurrency == 0 {
		cfg.Executor.MaxConcurrency = 4
	}
	if cfg.Executor.PerCallTimeout == 0 {
		cfg.Executor.PerCallTimeout = 15 * time.Second
	}
	if cfg.Executor.RankCap == 0 {
		cfg.Executor.RankCap = 20
	}

	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.Metrics.Addr == "" {
		cfg.Observability.Metrics.Addr = ":9090"
	}
	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = "graphquery"
	}
	if cfg.Observability.Tracing.SamplingRate == 0 {
		cfg.Observability.Tracing.SamplingRate = 1.0
	}
}

// applyEnvOverrides layers environment variables on top of the loaded
// file, with a fixed GRAPHQUERY_ prefix. Secrets are sourced here
// exclusively: the config file has no field to carry an API key in, so a
// key can never be checked in accidentally.
func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("GRAPHQUERY_TOOLSERVER_BASE_URL")); value != "" {
		cfg.ToolServer.BaseURL = value
	}
	cfg.ToolServer.APIKey = os.Getenv("GRAPHQUERY_TOOLSERVER_API_KEY")

	if value := strings.TrimSpace(os.Getenv("GRAPHQUERY_LLM_PROVIDER")); value != "" {
		cfg.LLM.Provider = value
	}
	cfg.LLM.APIKey = os.Getenv("GRAPHQUERY_LLM_API_KEY")

	if value := strings.TrimSpace(os.Getenv("GRAPHQUERY_LOG_LEVEL")); value != "" {
		cfg.Observability.LogLevel = value
	}
	if value := strings.TrimSpace(os.Getenv("GRAPHQUERY_DESIRED_COUNT_DEFAULT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Pipeline.DesiredCountDefault = parsed
		}
	}
}

// ConfigValidationError collects every validation issue found in one pass,
// so a user fixing config doesn't have to re-run after every single fix.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var issues []string

	if strings.TrimSpace(cfg.ToolServer.BaseURL) == "" {
		issues = append(issues, "toolserver.base_url is required")
	}
	if cfg.ToolServer.MaxRetries < 0 {
		issues = append(issues, "toolserver.max_retries must be >= 0")
	}
	if cfg.ToolServer.Timeout < 0 {
		issues = append(issues, "toolserver.timeout must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case "openai", "anthropic":
	default:
		issues = append(issues, `llm.provider must be "openai" or "anthropic"`)
	}

	if cfg.Pipeline.DesiredCountDefault <= 0 {
		issues = append(issues, "pipeline.desired_count_default must be > 0")
	}
	if cfg.Pipeline.DesiredCountMax < cfg.Pipeline.DesiredCountDefault {
		issues = append(issues, "pipeline.desired_count_max must be >= pipeline.desired_count_default")
	}

	if cfg.Executor.MaxConcurrency <= 0 {
		issues = append(issues, "executor.max_concurrency must be > 0")
	}
	if cfg.Executor.RankCap <= 0 {
		issues = append(issues, "executor.rank_cap must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Observability.LogFormat)) {
	case "json", "text":
	default:
		issues = append(issues, `observability.log_format must be "json" or "text"`)
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
