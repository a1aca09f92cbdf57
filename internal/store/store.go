package store

// #region imports
import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alq-agent/agent/internal/logging"
	"github.com/alq-agent/agent/internal/question"
	"github.com/alq-agent/agent/internal/retrieval"
	"github.com/alq-agent/agent/internal/workflow"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS context_chunks (
	chunk_id   TEXT PRIMARY KEY,
	category   TEXT NOT NULL CHECK (category IN ('teacher', 'textbook')),
	skill      TEXT NOT NULL,
	grade      INTEGER NOT NULL,
	text       TEXT NOT NULL,
	source     TEXT,
	image_ref  TEXT,
	weight     REAL NOT NULL DEFAULT 0.5,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_skill ON context_chunks(skill, grade, category);

CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	username   TEXT,
	skill      TEXT NOT NULL,
	grade      INTEGER NOT NULL,
	status     TEXT NOT NULL,
	confidence REAL NOT NULL,
	attempts   INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_questions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	question_id TEXT NOT NULL,
	payload     TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS attempt_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	attempt     INTEGER NOT NULL,
	questions   INTEGER NOT NULL,
	issue_codes TEXT,
	duration_ms INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct

// Store persists the context corpus and finished runs in SQLite. It also
// serves as the retrieval collaborator, ranking stored chunks by weight.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// Open opens the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region contexts

// ChunkRow is one stored context chunk.
type ChunkRow struct {
	ID       string             `json:"id"`
	Category retrieval.Category `json:"category"`
	Skill    string             `json:"skill"`
	Grade    int                `json:"grade"`
	Text     string             `json:"text"`
	Source   string             `json:"source"`
	ImageRef string             `json:"image_question,omitempty"`
	Weight   float64            `json:"weight"`
}

// InsertChunks upserts context chunks in one transaction.
func (s *Store) InsertChunks(rows []ChunkRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range rows {
		if r.ID == "" || r.Text == "" {
			return fmt.Errorf("chunk missing id or text: %+v", r)
		}
		if r.Category != retrieval.CategoryTeacher && r.Category != retrieval.CategoryTextbook {
			return fmt.Errorf("chunk %s has unknown category %q", r.ID, r.Category)
		}
		_, err := tx.Exec(
			`INSERT INTO context_chunks (chunk_id, category, skill, grade, text, source, image_ref, weight, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(chunk_id) DO UPDATE SET
				category = excluded.category, skill = excluded.skill, grade = excluded.grade,
				text = excluded.text, source = excluded.source, image_ref = excluded.image_ref,
				weight = excluded.weight`,
			r.ID, string(r.Category), r.Skill, r.Grade, r.Text, r.Source, r.ImageRef, r.Weight, now,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// CountChunks returns the corpus size per category.
func (s *Store) CountChunks() (map[retrieval.Category]int, error) {
	rows, err := s.db.Query(`SELECT category, COUNT(*) FROM context_chunks GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	defer rows.Close()

	counts := make(map[retrieval.Category]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[retrieval.Category(cat)] = n
	}
	return counts, rows.Err()
}

// #endregion contexts

// #region retriever

// Query implements retrieval.Retriever against the stored corpus: chunks
// matching the requested skill and grade, ranked by weight, capped per
// category by the request's top-K limits.
func (s *Store) Query(ctx context.Context, req retrieval.Request) (retrieval.Result, error) {
	teacher, err := s.queryCategory(ctx, retrieval.CategoryTeacher, req.Skill, req.Grade, req.TopKTeacher)
	if err != nil {
		return retrieval.Result{}, err
	}
	textbook, err := s.queryCategory(ctx, retrieval.CategoryTextbook, req.Skill, req.Grade, req.TopKTextbook)
	if err != nil {
		return retrieval.Result{}, err
	}
	return retrieval.Result{Teacher: teacher, Textbook: textbook}, nil
}

func (s *Store) queryCategory(ctx context.Context, cat retrieval.Category, skill string, grade, topK int) ([]retrieval.Chunk, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, text, source, image_ref, weight
		 FROM context_chunks
		 WHERE category = ? AND skill = ? AND grade = ?
		 ORDER BY weight DESC, chunk_id
		 LIMIT ?`,
		string(cat), skill, grade, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s chunks: %w", cat, err)
	}
	defer rows.Close()

	var chunks []retrieval.Chunk
	for rows.Next() {
		var c retrieval.Chunk
		var source, imageRef sql.NullString
		if err := rows.Scan(&c.ID, &c.Text, &source, &imageRef, &c.Score); err != nil {
			return nil, err
		}
		c.SourceLabel = source.String
		c.ImageRef = imageRef.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// #endregion retriever

// #region runs

// RunRecord is one persisted workflow run.
type RunRecord struct {
	RunID      string
	Username   string
	Skill      string
	Grade      int
	Status     string
	Confidence float64
	Attempts   int
	CreatedAt  time.Time
}

// SaveRun persists a finished run and its final questions. Unapproved runs
// are saved too; status tells readers apart.
func (s *Store) SaveRun(res workflow.RunResult, username, skill string, grade int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(
		`INSERT INTO runs (run_id, username, skill, grade, status, confidence, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, username, skill, grade, res.Status, res.Report.Confidence, len(res.Attempts), now,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.RunID, err)
	}

	for _, q := range res.Questions {
		payload, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO run_questions (run_id, question_id, payload) VALUES (?, ?, ?)`,
			res.RunID, q.ID, string(payload),
		)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return logging.LogRunAttempts(s.db, res.RunID, res.Attempts)
}

// GetRun loads one run's record by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	var createdAt string
	err := s.db.QueryRow(
		`SELECT run_id, username, skill, grade, status, confidence, attempts, created_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &rec.Username, &rec.Skill, &rec.Grade, &rec.Status, &rec.Confidence, &rec.Attempts, &createdAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// ListRuns returns the n most recent runs, newest first.
func (s *Store) ListRuns(n int) ([]RunRecord, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id, username, skill, grade, status, confidence, attempts, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var createdAt string
		if err := rows.Scan(&rec.RunID, &rec.Username, &rec.Skill, &rec.Grade, &rec.Status, &rec.Confidence, &rec.Attempts, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LoadRunQuestions loads a run's stored questions in insertion order.
func (s *Store) LoadRunQuestions(runID string) ([]question.Question, error) {
	rows, err := s.db.Query(`SELECT payload FROM run_questions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run questions: %w", err)
	}
	defer rows.Close()

	var qs []question.Question
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var q question.Question
		if err := json.Unmarshal([]byte(payload), &q); err != nil {
			return nil, fmt.Errorf("decode question payload: %w", err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// RunQuestionCount returns how many questions a run stored.
func (s *Store) RunQuestionCount(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM run_questions WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count run questions: %w", err)
	}
	return n, nil
}

// #endregion runs
