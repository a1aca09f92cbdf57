package logging

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alq-agent/agent/internal/validator"
	"github.com/alq-agent/agent/internal/workflow"
)

// #endregion

// #region attempt-entry

// AttemptEntry is a single row in the attempt_log table. One row per
// generate/validate iteration of a run, kept for audit and replayable
// diagnostics independent of what the run finally returned.
type AttemptEntry struct {
	RunID      string
	Attempt    int
	Questions  int
	IssueCodes string // JSON array of issue codes
	DurationMS int64
	CreatedAt  time.Time
}

// #endregion attempt-entry

// #region log-attempt

// LogAttempt writes one attempt entry to the attempt_log table.
func LogAttempt(db *sql.DB, entry AttemptEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO attempt_log (run_id, attempt, questions, issue_codes, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Attempt,
		entry.Questions,
		nullIfEmpty(entry.IssueCodes),
		entry.DurationMS,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log attempt: %w", err)
	}
	return nil
}

// LogRunAttempts records every attempt of a finished run.
func LogRunAttempts(db *sql.DB, runID string, attempts []workflow.Attempt) error {
	for _, a := range attempts {
		codes, err := json.Marshal(a.IssueCodes)
		if err != nil {
			return fmt.Errorf("marshal issue codes: %w", err)
		}
		entry := AttemptEntry{
			RunID:      runID,
			Attempt:    a.Index,
			Questions:  a.Questions,
			IssueCodes: string(codes),
			DurationMS: a.Duration.Milliseconds(),
		}
		if err := LogAttempt(db, entry); err != nil {
			return err
		}
	}
	return nil
}

// #endregion log-attempt

// #region history

// AttemptHistory loads a run's attempt entries in order.
func AttemptHistory(db *sql.DB, runID string) ([]AttemptEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, attempt, questions, issue_codes, duration_ms, created_at
		 FROM attempt_log WHERE run_id = ? ORDER BY attempt`, runID)
	if err != nil {
		return nil, fmt.Errorf("load attempt history: %w", err)
	}
	defer rows.Close()

	var entries []AttemptEntry
	for rows.Next() {
		var e AttemptEntry
		var codes sql.NullString
		var createdAt string
		if err := rows.Scan(&e.RunID, &e.Attempt, &e.Questions, &codes, &e.DurationMS, &createdAt); err != nil {
			return nil, err
		}
		e.IssueCodes = codes.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Codes decodes the entry's issue codes.
func (e AttemptEntry) Codes() []validator.Code {
	var codes []validator.Code
	if e.IssueCodes == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(e.IssueCodes), &codes); err != nil {
		return nil
	}
	return codes
}

// #endregion history

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
