package main

// #region imports
import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alq-agent/agent/internal/config"
	"github.com/alq-agent/agent/internal/generator"
	"github.com/alq-agent/agent/internal/llm"
	"github.com/alq-agent/agent/internal/store"
	"github.com/alq-agent/agent/internal/validator"
	"github.com/alq-agent/agent/internal/workflow"
)

// #endregion

// #region main
func main() {
	var (
		configPath = flag.String("config", envOr("AGENT_CONFIG", ""), "path to YAML config (optional)")
		skill      = flag.String("skill", "S5", "skill identifier")
		skillName  = flag.String("skill-name", "", "human-readable skill name")
		grade      = flag.Int("grade", 1, "student grade")
		count      = flag.Int("count", 4, "number of questions to generate")
		username   = flag.String("username", "", "student username")
		accuracy   = flag.Float64("accuracy", 50, "student accuracy percent on this skill")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall run deadline")
		save       = flag.Bool("save", true, "persist the run to the store")
		asJSON     = flag.Bool("json", false, "print the full result as JSON")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store %s: %v", cfg.Store.Path, err)
	}
	defer db.Close()

	providers, err := buildProviders(cfg)
	if err != nil {
		log.Fatalf("provider setup: %v", err)
	}
	hub := llm.NewHub(providers, cfg.Hub.HubConfig())

	gen := generator.New(hub, cfg.Generation)
	val := validator.New(cfg.Validation, hub)
	runner := workflow.New(db, gen, val, cfg.Workflow)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := runner.Run(ctx, generator.Profile{
		Username: *username,
		Accuracy: *accuracy,
		SkillID:  *skill,
	}, generator.Constraints{
		Count:     *count,
		Grade:     *grade,
		Skill:     *skill,
		SkillName: *skillName,
	})
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	if *save {
		if err := db.SaveRun(result, *username, *skill, *grade); err != nil {
			log.Fatalf("failed to persist run %s: %v", result.RunID, err)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encode result: %v", err)
		}
		return
	}
	printSummary(result)
}

// #endregion

// #region providers

// buildProviders assembles the backend list in the configured priority
// order, skipping disabled entries. At least one backend must survive.
func buildProviders(cfg config.Config) ([]llm.Provider, error) {
	var providers []llm.Provider
	for _, name := range cfg.Providers.Order {
		switch name {
		case "ollama":
			if cfg.Providers.Ollama.Enabled {
				providers = append(providers, llm.NewOllamaProvider(
					"ollama", cfg.Providers.Ollama.BaseURL, cfg.Providers.Ollama.Model, 120*time.Second))
			}
		case "gemini":
			if cfg.Providers.Gemini.Enabled && cfg.Providers.Gemini.APIKey != "" {
				providers = append(providers, llm.NewGeminiProvider(
					"gemini", cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Model))
			}
		case "openai":
			if cfg.Providers.OpenAI.Enabled && cfg.Providers.OpenAI.APIKey != "" {
				providers = append(providers, llm.NewOpenAIProvider(
					"openai", cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Model, cfg.Providers.OpenAI.BaseURL))
			}
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers enabled; set an API key or enable ollama")
	}
	return providers, nil
}

// #endregion

// #region output

func printSummary(result workflow.RunResult) {
	fmt.Printf("Run %s: %s\n", result.RunID, result.Status)
	fmt.Printf("  attempts: %d, confidence: %.2f\n", len(result.Attempts), result.Report.Confidence)
	for _, a := range result.Attempts {
		fmt.Printf("  attempt %d: %d questions, issues %v (%s)\n", a.Index, a.Questions, a.IssueCodes, a.Duration.Round(time.Millisecond))
	}
	for i, q := range result.Questions {
		fmt.Printf("\n%d. [%s] %s\n", i+1, q.Type, q.Text)
		for _, ans := range q.Answers {
			mark := " "
			if ans.Correct {
				mark = "*"
			}
			fmt.Printf("   %s %s\n", mark, ans.Text)
		}
		if q.Explanation != "" {
			fmt.Printf("   > %s\n", q.Explanation)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion
