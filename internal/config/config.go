package config

// #region imports
import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alq-agent/agent/internal/generator"
	"github.com/alq-agent/agent/internal/llm"
	"github.com/alq-agent/agent/internal/validator"
	"github.com/alq-agent/agent/internal/workflow"
)

// #endregion

// #region sections

// HubSection configures the provider hub's circuit breaker.
type HubSection struct {
	FailureThreshold  int  `yaml:"failure_threshold"`
	CooldownSeconds   int  `yaml:"cooldown_s"`
	AttemptDelayMS    int  `yaml:"attempt_delay_ms"`
	WarmupHealthcheck bool `yaml:"warmup_healthcheck"`
}

// HubConfig converts the section into the hub's native config.
func (s HubSection) HubConfig() llm.HubConfig {
	return llm.HubConfig{
		FailureThreshold:  s.FailureThreshold,
		Cooldown:          time.Duration(s.CooldownSeconds) * time.Second,
		AttemptDelay:      time.Duration(s.AttemptDelayMS) * time.Millisecond,
		WarmupHealthcheck: s.WarmupHealthcheck,
	}
}

// OllamaSection configures the local Ollama backend.
type OllamaSection struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// GeminiSection configures the Gemini backend. The API key is normally
// injected through the environment, not the file.
type GeminiSection struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// OpenAISection configures the OpenAI backend.
type OpenAISection struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// ProvidersSection lists the backends in priority order.
type ProvidersSection struct {
	Order  []string      `yaml:"order"`
	Ollama OllamaSection `yaml:"ollama"`
	Gemini GeminiSection `yaml:"gemini"`
	OpenAI OpenAISection `yaml:"openai"`
}

// StoreSection points at the SQLite database file.
type StoreSection struct {
	Path string `yaml:"path"`
}

// #endregion

// #region config

// Config is the full configuration surface, loaded from one YAML file with
// environment overrides for secrets.
type Config struct {
	Hub        HubSection       `yaml:"hub"`
	Providers  ProvidersSection `yaml:"providers"`
	Generation generator.Config `yaml:"question_generation"`
	Validation validator.Config `yaml:"validation"`
	Workflow   workflow.Config  `yaml:"workflow"`
	Store      StoreSection     `yaml:"store"`
}

// Default returns the built-in configuration, used as the base every file
// load merges into.
func Default() Config {
	hub := llm.DefaultHubConfig()
	return Config{
		Hub: HubSection{
			FailureThreshold:  hub.FailureThreshold,
			CooldownSeconds:   int(hub.Cooldown / time.Second),
			AttemptDelayMS:    int(hub.AttemptDelay / time.Millisecond),
			WarmupHealthcheck: hub.WarmupHealthcheck,
		},
		Providers: ProvidersSection{
			Order: []string{"ollama", "gemini", "openai"},
			Ollama: OllamaSection{
				Enabled: true,
				BaseURL: "http://localhost:11434",
				Model:   "qwen2.5:7b",
			},
			Gemini: GeminiSection{Model: "gemini-1.5-flash"},
			OpenAI: OpenAISection{Model: "gpt-4o-mini"},
		},
		Generation: generator.DefaultConfig(),
		Validation: validator.DefaultConfig(),
		Workflow:   workflow.DefaultConfig(),
		Store:      StoreSection{Path: "agent.db"},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file and returns defaults
// plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.check(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv lets the environment supply secrets and the local backend URL so
// they never need to live in the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Providers.Gemini.APIKey = v
		c.Providers.Gemini.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAI.APIKey = v
		c.Providers.OpenAI.Enabled = true
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.Providers.Ollama.BaseURL = v
	}
}

// check rejects configurations that cannot run at all. Malformed settings
// are a caller error, not a runtime condition to absorb.
func (c *Config) check() error {
	if c.Generation.BatchSize <= 0 {
		return fmt.Errorf("question_generation.batch_size must be positive, got %d", c.Generation.BatchSize)
	}
	if c.Workflow.RegenLimit < 0 {
		return fmt.Errorf("workflow.regen_limit must not be negative, got %d", c.Workflow.RegenLimit)
	}
	if c.Hub.FailureThreshold <= 0 {
		return fmt.Errorf("hub.failure_threshold must be positive, got %d", c.Hub.FailureThreshold)
	}
	for _, name := range c.Providers.Order {
		switch name {
		case "ollama", "gemini", "openai":
		default:
			return fmt.Errorf("unknown provider %q in providers.order", name)
		}
	}
	return nil
}

// #endregion
