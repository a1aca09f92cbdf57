package main

// #region imports
import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/alq-agent/agent/internal/config"
	"github.com/alq-agent/agent/internal/store"
)

// #endregion

// #region main

// Loads a JSON corpus of context chunks into the store. The input file is a
// JSON array of chunk objects matching store.ChunkRow.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("AGENT_CONFIG"), "path to YAML config (optional)")
		input      = flag.String("input", "", "path to JSON corpus file (required)")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	raw, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("failed to read corpus %s: %v", *input, err)
	}
	var rows []store.ChunkRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		log.Fatalf("failed to parse corpus %s: %v", *input, err)
	}
	if len(rows) == 0 {
		log.Fatalf("corpus %s holds no chunks", *input)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store %s: %v", cfg.Store.Path, err)
	}
	defer db.Close()

	if err := db.InsertChunks(rows); err != nil {
		log.Fatalf("failed to insert chunks: %v", err)
	}

	counts, err := db.CountChunks()
	if err != nil {
		log.Fatalf("failed to count chunks: %v", err)
	}
	fmt.Printf("Seeded %d chunks into %s\n", len(rows), cfg.Store.Path)
	for cat, n := range counts {
		fmt.Printf("  %s: %d total\n", cat, n)
	}
}

// #endregion
