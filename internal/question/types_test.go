package question

import (
	"strings"
	"testing"
)

func makeMCQ() Question {
	return Question{
		ID:   "q1",
		Text: "2 + 3 = ?",
		Type: MultipleChoice,
		Answers: []Answer{
			{Text: "5", Correct: true},
			{Text: "4", Correct: false},
			{Text: "6", Correct: false},
			{Text: "7", Correct: false},
		},
	}
}

func TestCheckInvariantsValid(t *testing.T) {
	q := makeMCQ()
	if err := q.CheckInvariants(); err != nil {
		t.Fatalf("expected valid question, got %v", err)
	}
}

func TestCheckInvariantsAnswerCount(t *testing.T) {
	q := makeMCQ()
	q.Answers = q.Answers[:3]
	if err := q.CheckInvariants(); err == nil {
		t.Fatal("expected error for 3 answers on multiple_choice")
	}

	tf := Question{
		Text: "1 + 1 = 2, true or false?",
		Type: TrueFalse,
		Answers: []Answer{
			{Text: "True", Correct: true},
			{Text: "False", Correct: false},
		},
	}
	if err := tf.CheckInvariants(); err != nil {
		t.Fatalf("expected valid true_false, got %v", err)
	}
}

func TestCheckInvariantsExactlyOneCorrect(t *testing.T) {
	q := makeMCQ()
	q.Answers[1].Correct = true
	err := q.CheckInvariants()
	if err == nil || !strings.Contains(err.Error(), "correct") {
		t.Fatalf("expected correct-count error, got %v", err)
	}

	q = makeMCQ()
	q.Answers[0].Correct = false
	if err := q.CheckInvariants(); err == nil {
		t.Fatal("expected error for zero correct answers")
	}
}

func TestCheckInvariantsDuplicateCaseInsensitive(t *testing.T) {
	q := makeMCQ()
	q.Answers[2].Text = " Five "
	q.Answers[3].Text = "five"
	if err := q.CheckInvariants(); err == nil {
		t.Fatal("expected duplicate-answer error")
	}
}

func TestCheckInvariantsUnknownType(t *testing.T) {
	q := makeMCQ()
	q.Type = "essay"
	if err := q.CheckInvariants(); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestRequiredAnswers(t *testing.T) {
	if n := TrueFalse.RequiredAnswers(); n != 2 {
		t.Errorf("true_false requires %d answers, want 2", n)
	}
	if n := MultipleChoice.RequiredAnswers(); n != 4 {
		t.Errorf("multiple_choice requires %d answers, want 4", n)
	}
	if n := FillBlank.RequiredAnswers(); n != 4 {
		t.Errorf("fill_blank requires %d answers, want 4", n)
	}
}

func TestCorrectAnswer(t *testing.T) {
	q := makeMCQ()
	a := q.CorrectAnswer()
	if a == nil || a.Text != "5" {
		t.Fatalf("expected correct answer 5, got %+v", a)
	}
	q.Answers[0].Correct = false
	if q.CorrectAnswer() != nil {
		t.Fatal("expected nil when no answer is correct")
	}
}
