package main

// #region imports
import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alq-agent/agent/internal/logging"
	"github.com/alq-agent/agent/internal/store"
)

// #endregion

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the agent database")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/agent.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if *runID != "" {
		err = runDetailMode(db, *runID, *jsonOut)
	} else {
		err = runListMode(db, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(db *store.Store, last int, jsonOut bool) error {
	runs, err := db.ListRuns(last)
	if err != nil {
		return err
	}
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	fmt.Printf("%-38s %-10s %-6s %-16s %-6s %-5s %s\n", "RUN", "SKILL", "GRADE", "STATUS", "CONF", "TRIES", "CREATED")
	for _, r := range runs {
		fmt.Printf("%-38s %-10s %-6d %-16s %-6.2f %-5d %s\n",
			r.RunID, r.Skill, r.Grade, r.Status, r.Confidence, r.Attempts,
			r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type runDetail struct {
	Run       store.RunRecord        `json:"run"`
	Attempts  []logging.AttemptEntry `json:"attempts"`
	Questions any                    `json:"questions"`
}

func runDetailMode(db *store.Store, runID string, jsonOut bool) error {
	rec, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	attempts, err := logging.AttemptHistory(db.DB(), runID)
	if err != nil {
		return err
	}
	questions, err := db.LoadRunQuestions(runID)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runDetail{Run: rec, Attempts: attempts, Questions: questions})
	}

	fmt.Printf("Run %s\n", rec.RunID)
	fmt.Printf("  user: %s | skill: %s | grade: %d\n", rec.Username, rec.Skill, rec.Grade)
	fmt.Printf("  status: %s | confidence: %.2f | created: %s\n", rec.Status, rec.Confidence, rec.CreatedAt.Format(time.RFC3339))

	fmt.Println("\nAttempts:")
	for _, a := range attempts {
		fmt.Printf("  %d: %d questions, %dms, issues %v\n", a.Attempt, a.Questions, a.DurationMS, a.Codes())
	}

	fmt.Println("\nQuestions:")
	for i, q := range questions {
		fmt.Printf("  %d. [%s] %s\n", i+1, q.Type, q.Text)
		for _, ans := range q.Answers {
			mark := " "
			if ans.Correct {
				mark = "*"
			}
			fmt.Printf("     %s %s\n", mark, ans.Text)
		}
	}
	return nil
}

// #endregion detail-mode
