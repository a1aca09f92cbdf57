package store

// #region imports
import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alq-agent/agent/internal/logging"
	"github.com/alq-agent/agent/internal/question"
	"github.com/alq-agent/agent/internal/retrieval"
	"github.com/alq-agent/agent/internal/validator"
	"github.com/alq-agent/agent/internal/workflow"
)

// #endregion

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedChunks(t *testing.T, s *Store) {
	t.Helper()
	err := s.InsertChunks([]ChunkRow{
		{ID: "t1", Category: retrieval.CategoryTeacher, Skill: "S5", Grade: 1, Text: "Teach addition with objects.", Source: "guide", Weight: 0.9},
		{ID: "t2", Category: retrieval.CategoryTeacher, Skill: "S5", Grade: 1, Text: "Use number lines.", Source: "guide", Weight: 0.7},
		{ID: "b1", Category: retrieval.CategoryTextbook, Skill: "S5", Grade: 1, Text: "2 + 3 = 5", Source: "book", Weight: 0.8},
		{ID: "b2", Category: retrieval.CategoryTextbook, Skill: "S5", Grade: 1, Text: "Count the squares.", Source: "book", ImageRef: "http://example.com/sq.png", Weight: 0.6},
		{ID: "x1", Category: retrieval.CategoryTextbook, Skill: "S9", Grade: 2, Text: "Other skill.", Source: "book", Weight: 0.9},
	})
	if err != nil {
		t.Fatalf("insert chunks: %v", err)
	}
}

// #region contexts

func TestInsertAndCountChunks(t *testing.T) {
	s := openTestStore(t)
	seedChunks(t, s)

	counts, err := s.CountChunks()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[retrieval.CategoryTeacher] != 2 || counts[retrieval.CategoryTextbook] != 3 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestInsertChunksUpserts(t *testing.T) {
	s := openTestStore(t)
	seedChunks(t, s)

	err := s.InsertChunks([]ChunkRow{
		{ID: "t1", Category: retrieval.CategoryTeacher, Skill: "S5", Grade: 1, Text: "Updated guidance.", Weight: 0.95},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := s.Query(context.Background(), retrieval.Request{Skill: "S5", Grade: 1, TopKTeacher: 5, TopKTextbook: 5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Teacher[0].ID != "t1" || res.Teacher[0].Text != "Updated guidance." {
		t.Errorf("upsert not visible: %+v", res.Teacher[0])
	}
}

func TestInsertChunksRejectsBadRows(t *testing.T) {
	s := openTestStore(t)

	if err := s.InsertChunks([]ChunkRow{{ID: "", Text: "x", Category: retrieval.CategoryTeacher}}); err == nil {
		t.Error("missing id should be rejected")
	}
	if err := s.InsertChunks([]ChunkRow{{ID: "z", Text: "x", Category: "mystery"}}); err == nil {
		t.Error("unknown category should be rejected")
	}
}

// #endregion contexts

// #region retriever

func TestQueryRanksAndCaps(t *testing.T) {
	s := openTestStore(t)
	seedChunks(t, s)

	res, err := s.Query(context.Background(), retrieval.Request{Skill: "S5", Grade: 1, TopKTeacher: 1, TopKTextbook: 5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Teacher) != 1 || res.Teacher[0].ID != "t1" {
		t.Fatalf("expected highest-weight teacher chunk only, got %+v", res.Teacher)
	}
	if len(res.Textbook) != 2 {
		t.Fatalf("expected 2 textbook chunks for S5, got %d", len(res.Textbook))
	}
	if res.Textbook[0].ID != "b1" {
		t.Errorf("textbook chunks not ranked by weight: %+v", res.Textbook)
	}
	if res.Textbook[1].ImageRef != "http://example.com/sq.png" {
		t.Errorf("image ref lost: %+v", res.Textbook[1])
	}
}

func TestQueryScopesBySkillAndGrade(t *testing.T) {
	s := openTestStore(t)
	seedChunks(t, s)

	res, err := s.Query(context.Background(), retrieval.Request{Skill: "S9", Grade: 2, TopKTextbook: 5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Teacher) != 0 || len(res.Textbook) != 1 || res.Textbook[0].ID != "x1" {
		t.Errorf("unexpected scoping: %+v", res)
	}
}

func TestQueryEmptyCorpus(t *testing.T) {
	s := openTestStore(t)
	res, err := s.Query(context.Background(), retrieval.Request{Skill: "S5", Grade: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Total() != 0 {
		t.Errorf("expected empty result, got %d chunks", res.Total())
	}
}

// #endregion retriever

// #region runs

func TestSaveAndLoadRun(t *testing.T) {
	s := openTestStore(t)

	run := workflow.RunResult{
		RunID:  "run-1",
		Status: workflow.StatusApproved,
		Questions: []question.Question{
			{ID: "q1", Text: "2 + 3 = ?", Type: question.FillBlank,
				Answers: []question.Answer{{Text: "5", Correct: true}, {Text: "4"}, {Text: "6"}, {Text: "7"}}},
			{ID: "q2", Text: "Is 1 + 1 = 2?", Type: question.TrueFalse,
				Answers: []question.Answer{{Text: "True", Correct: true}, {Text: "False"}}},
		},
		Report: validator.Report{Status: validator.StatusApproved, Confidence: 0.95},
		Attempts: []workflow.Attempt{
			{Index: 1, Questions: 0, IssueCodes: []validator.Code{workflow.CodeGenEmpty}},
			{Index: 2, Questions: 2},
		},
	}
	if err := s.SaveRun(run, "student1", "S5", 1); err != nil {
		t.Fatalf("save run: %v", err)
	}

	rec, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if rec.Status != workflow.StatusApproved || rec.Confidence != 0.95 || rec.Attempts != 2 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Username != "student1" || rec.Skill != "S5" || rec.Grade != 1 {
		t.Errorf("unexpected identity fields: %+v", rec)
	}

	n, err := s.RunQuestionCount("run-1")
	if err != nil {
		t.Fatalf("count questions: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 stored questions, got %d", n)
	}

	qs, err := s.LoadRunQuestions("run-1")
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if len(qs) != 2 || qs[0].ID != "q1" || qs[1].Type != question.TrueFalse {
		t.Errorf("unexpected questions: %+v", qs)
	}

	history, err := logging.AttemptHistory(s.DB(), "run-1")
	if err != nil {
		t.Fatalf("attempt history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(history))
	}
	if got := history[0].Codes(); len(got) != 1 || got[0] != workflow.CodeGenEmpty {
		t.Errorf("first attempt codes = %v", got)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-1" {
		t.Errorf("unexpected run list: %+v", runs)
	}
}

func TestGetMissingRunFails(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetRun("absent"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

// #endregion runs
