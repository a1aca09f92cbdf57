package config

// #region imports
import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// #endregion

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Generation.BatchSize != 4 {
		t.Errorf("batch size = %d, want 4", cfg.Generation.BatchSize)
	}
	if cfg.Hub.FailureThreshold != 3 || cfg.Hub.CooldownSeconds != 120 {
		t.Errorf("hub defaults = %+v", cfg.Hub)
	}
	if cfg.Workflow.RegenLimit != 2 {
		t.Errorf("regen limit = %d, want 2", cfg.Workflow.RegenLimit)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
question_generation:
  batch_size: 3
  temperature: 0.5
  max_tokens: 1024
hub:
  failure_threshold: 5
  cooldown_s: 30
workflow:
  regen_limit: 1
  retrieval:
    min_score: 0.5
providers:
  ollama:
    model: llama3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Generation.BatchSize != 3 {
		t.Errorf("batch size = %d, want 3", cfg.Generation.BatchSize)
	}
	if cfg.Generation.Temperature != 0.5 {
		t.Errorf("temperature = %v, want 0.5", cfg.Generation.Temperature)
	}
	if cfg.Hub.FailureThreshold != 5 {
		t.Errorf("failure threshold = %d, want 5", cfg.Hub.FailureThreshold)
	}
	if got := cfg.Hub.HubConfig().Cooldown; got != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", got)
	}
	if cfg.Workflow.Retrieval.MinScore != 0.5 {
		t.Errorf("min score = %v, want 0.5", cfg.Workflow.Retrieval.MinScore)
	}
	if cfg.Providers.Ollama.Model != "llama3" {
		t.Errorf("ollama model = %q", cfg.Providers.Ollama.Model)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Validation.MinLen != 5 {
		t.Errorf("validation min_len = %d, want default 5", cfg.Validation.MinLen)
	}
}

func TestEnvOverridesEnableProviders(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gk-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.Providers.Gemini.Enabled || cfg.Providers.Gemini.APIKey != "gk-test" {
		t.Errorf("gemini = %+v", cfg.Providers.Gemini)
	}
	if !cfg.Providers.OpenAI.Enabled || cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Errorf("openai = %+v", cfg.Providers.OpenAI)
	}
	if cfg.Providers.Ollama.BaseURL != "http://ollama:11434" {
		t.Errorf("ollama base url = %q", cfg.Providers.Ollama.BaseURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []string{
		"question_generation:\n  batch_size: 0\n",
		"workflow:\n  regen_limit: -1\n",
		"hub:\n  failure_threshold: 0\n",
		"providers:\n  order: [ollama, mystery]\n",
	}
	for _, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("config %q should be rejected", body)
		}
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
