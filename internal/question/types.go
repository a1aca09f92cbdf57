package question

// #region imports
import (
	"fmt"
	"strings"
	"time"
)

// #endregion

// #region question-type

// Type identifies the format of a generated question.
type Type string

const (
	MultipleChoice Type = "multiple_choice"
	TrueFalse      Type = "true_false"
	FillBlank      Type = "fill_blank"
)

// Valid reports whether t is one of the known question types.
func (t Type) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, FillBlank:
		return true
	}
	return false
}

// RequiredAnswers returns the exact answer count a question of this type
// must carry: 2 for true/false, 4 for everything else.
func (t Type) RequiredAnswers() int {
	if t == TrueFalse {
		return 2
	}
	return 4
}

// #endregion

// #region answer

// Answer is one option of a question. Order within a question is display
// order only.
type Answer struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// #endregion

// #region provenance

// Provenance records how and from what context a question was produced.
// It is stamped once at creation; validation repair may rewrite the
// question's answers but never these identity fields.
type Provenance struct {
	QuestionID         string    `json:"question_id"`
	TeacherContextIDs  []string  `json:"teacher_context_ids"`
	TextbookContextIDs []string  `json:"textbook_context_ids"`
	Provider           string    `json:"provider"`
	Temperature        float64   `json:"temperature"`
	BatchIndex         int       `json:"generation_batch"`
	GeneratedAt        time.Time `json:"timestamp"`
}

// #endregion

// #region question

// Question is a single generated item.
type Question struct {
	ID          string     `json:"question_id"`
	Text        string     `json:"question_text"`
	Type        Type       `json:"question_type"`
	Answers     []Answer   `json:"answers"`
	Explanation string     `json:"explanation,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty"`
	Provenance  Provenance `json:"provenance"`
}

// #endregion

// #region invariants

// CheckInvariants verifies the structural contract every question must hold:
// known type, exact answer count for the type, exactly one correct answer,
// no empty answer text, and pairwise case-insensitively distinct answers.
func (q *Question) CheckInvariants() error {
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("empty question text")
	}
	want := q.Type.RequiredAnswers()
	if len(q.Answers) != want {
		return fmt.Errorf("%s question has %d answers, want %d", q.Type, len(q.Answers), want)
	}
	correct := 0
	seen := make(map[string]bool, len(q.Answers))
	for i, a := range q.Answers {
		text := strings.TrimSpace(a.Text)
		if text == "" {
			return fmt.Errorf("answer %d has empty text", i)
		}
		key := strings.ToLower(text)
		if seen[key] {
			return fmt.Errorf("duplicate answer text %q", a.Text)
		}
		seen[key] = true
		if a.Correct {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("found %d correct answers, want exactly 1", correct)
	}
	return nil
}

// CorrectAnswer returns the first answer flagged correct, or nil.
func (q *Question) CorrectAnswer() *Answer {
	for i := range q.Answers {
		if q.Answers[i].Correct {
			return &q.Answers[i]
		}
	}
	return nil
}

// #endregion
