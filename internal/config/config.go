package config

import (
	"fmt"
	"os"
	"time"

	"github.com/signalnine/gauntlet/internal/evaluator"
	"github.com/signalnine/gauntlet/internal/judge"
	"github.com/signalnine/gauntlet/internal/logging"
	"github.com/signalnine/gauntlet/internal/retry"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Plugin      Plugin    `yaml:"plugin"`
	Inputs      Inputs    `yaml:"inputs"`
	Judge       Judge     `yaml:"judge"`
	Detection   Detection `yaml:"detection"`
	Concurrency int       `yaml:"concurrency"`
	Retry       Retry     `yaml:"retry"`
	Results     Results   `yaml:"results"`
	Pricing     Pricing   `yaml:"pricing"`
	Secrets     Secrets   `yaml:"secrets"`
	Logging     Logging   `yaml:"logging"`
}

type Plugin struct {
	Name string `yaml:"name"`
}

// Inputs locates the upstream scenario and execution files. Both can be
// overridden on the command line.
type Inputs struct {
	Scenarios  string `yaml:"scenarios"`
	Executions string `yaml:"executions"`
}

type Judge struct {
	Model           string            `yaml:"model"`
	BaseURL         string            `yaml:"base_url"`
	APIKeyEnv       string            `yaml:"api_key_env"`
	Provider        string            `yaml:"provider"`
	NumSamples      int               `yaml:"num_samples"`
	Aggregation     string            `yaml:"aggregation"`
	MaxContentChars int               `yaml:"max_content_chars"`
	Temperature     float32           `yaml:"temperature"`
	MaxTokens       int               `yaml:"max_tokens"`
	ModelAliases    map[string]string `yaml:"model_aliases"`
}

type Detection struct {
	Mode           string `yaml:"mode"`
	MinTokenLength int    `yaml:"min_token_length"`
}

type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

type Results struct {
	Dir         string `yaml:"dir"`
	MetricsFile string `yaml:"metrics_file"`
}

type Pricing struct {
	File string `yaml:"file"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Plugin.Name == "" {
		return fmt.Errorf("plugin.name is required")
	}

	j := &cfg.Judge
	if j.Model == "" {
		j.Model = "sonnet"
	}
	if j.BaseURL == "" {
		j.BaseURL = "https://api.anthropic.com/v1/"
	}
	if j.APIKeyEnv == "" {
		j.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if j.Provider == "" {
		j.Provider = "anthropic"
	}
	if j.NumSamples == 0 {
		j.NumSamples = 1
	}
	if j.NumSamples < 1 {
		return fmt.Errorf("judge.num_samples must be at least 1")
	}
	if _, err := judge.ParseAggregationMethod(j.Aggregation); err != nil {
		return fmt.Errorf("judge.aggregation: %w", err)
	}
	if j.Aggregation == "" {
		j.Aggregation = string(judge.Average)
	}
	if j.MaxContentChars == 0 {
		j.MaxContentChars = judge.DefaultMaxContentChars
	}
	if j.MaxContentChars < 0 {
		return fmt.Errorf("judge.max_content_chars must be positive")
	}
	if j.MaxTokens == 0 {
		j.MaxTokens = 2048
	}
	if j.Temperature < 0 || j.Temperature > 2 {
		return fmt.Errorf("judge.temperature must be between 0 and 2")
	}

	mode, err := evaluator.ParseMode(cfg.Detection.Mode)
	if err != nil {
		return fmt.Errorf("detection.mode: %w", err)
	}
	cfg.Detection.Mode = string(mode)
	if cfg.Detection.MinTokenLength < 0 {
		return fmt.Errorf("detection.min_token_length must not be negative")
	}

	if cfg.Concurrency == 0 {
		cfg.Concurrency = 5
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	def := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = def.MaxAttempts
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = def.BaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = def.MaxDelay
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay must not be shorter than retry.base_delay")
	}
	if cfg.Retry.Jitter == 0 {
		cfg.Retry.Jitter = def.Jitter
	}
	if cfg.Retry.Jitter < 0 || cfg.Retry.Jitter > 1 {
		return fmt.Errorf("retry.jitter must be between 0 and 1")
	}

	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch cfg.Logging.Format {
	case "":
		cfg.Logging.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	return nil
}

// Policy converts the retry section into an executable policy.
func (r Retry) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = r.MaxAttempts
	p.BaseDelay = r.BaseDelay
	p.MaxDelay = r.MaxDelay
	p.Jitter = r.Jitter
	return p
}

// Tuning converts the evaluation knobs for the evaluator.
func (c *Config) Tuning() evaluator.Tuning {
	return evaluator.Tuning{
		Mode:           evaluator.Mode(c.Detection.Mode),
		NumSamples:     c.Judge.NumSamples,
		Aggregation:    judge.AggregationMethod(c.Judge.Aggregation),
		Concurrency:    c.Concurrency,
		MinTokenLength: c.Detection.MinTokenLength,
	}
}
