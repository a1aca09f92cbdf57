package generator

// #region imports
import (
	"errors"
	"testing"
)

// #endregion

const oneQuestion = `{"questions":[{"question_text":"2 + 3 = ?","question_type":"fill_blank","answers":[{"text":"5","correct":true},{"text":"4","correct":false},{"text":"6","correct":false},{"text":"7","correct":false}],"explanation":"basic addition"}]}`

func TestParseStrictJSON(t *testing.T) {
	qs, err := parseResponse(oneQuestion)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(qs) != 1 || qs[0].Text != "2 + 3 = ?" {
		t.Fatalf("unexpected questions: %+v", qs)
	}
}

func TestParseFencedJSONBlock(t *testing.T) {
	raw := "Here you go:\n```json\n" + oneQuestion + "\n```\nHope that helps!"
	qs, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
}

func TestParseGenericFencedBlock(t *testing.T) {
	raw := "```\n" + oneQuestion + "\n```"
	qs, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
}

func TestParseBalancedBraceScan(t *testing.T) {
	raw := "Sure! The questions are " + oneQuestion + " as requested."
	qs, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 question, got %d", len(qs))
	}
}

func TestParseTopLevelArrayIsWrapped(t *testing.T) {
	raw := `[{"question_text":"True?","question_type":"true_false","answers":[{"text":"True","correct":true},{"text":"False","correct":false}]}]`
	qs, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(qs) != 1 || qs[0].Type != "true_false" {
		t.Fatalf("unexpected questions: %+v", qs)
	}
}

func TestParseAlternateWrapperKey(t *testing.T) {
	raw := `{"items":[{"question_text":"True?","question_type":"true_false","answers":[{"text":"True","correct":true},{"text":"False","correct":false}]}]}`
	qs, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected wrapper-key list to be found, got %d questions", len(qs))
	}
}

func TestParseGarbageReturnsErrParse(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json at all", "{broken: json"} {
		_, err := parseResponse(raw)
		if !errors.Is(err, ErrParse) {
			t.Errorf("parseResponse(%q) error = %v, want ErrParse", raw, err)
		}
	}
}

func TestCheckSchemaRejections(t *testing.T) {
	good := func() []rawQuestion {
		return []rawQuestion{{
			Text: "2 + 2 = ?",
			Type: "multiple_choice",
			Answers: []rawAnswer{
				{Text: "4", Correct: true}, {Text: "3"}, {Text: "5"}, {Text: "6"},
			},
		}}
	}

	if err := checkSchema(good()); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if err := checkSchema(nil); err == nil {
		t.Error("empty payload should be rejected")
	}

	q := good()
	q[0].Answers = q[0].Answers[:3]
	if err := checkSchema(q); err == nil {
		t.Error("wrong answer count should be rejected")
	}

	q = good()
	q[0].Type = "essay"
	if err := checkSchema(q); err == nil {
		t.Error("unknown type should be rejected")
	}

	q = good()
	q[0].Answers[1].Correct = true
	if err := checkSchema(q); err == nil {
		t.Error("two correct answers should be rejected")
	}

	q = good()
	q[0].Text = "  "
	if err := checkSchema(q); err == nil {
		t.Error("empty question text should be rejected")
	}

	q = good()
	q[0].Answers = []rawAnswer{
		{Text: "Four", Correct: true}, {Text: "four"}, {Text: "5"}, {Text: "6"},
	}
	if err := checkSchema(q); err == nil {
		t.Error("case-insensitive duplicate answer texts should be rejected")
	}
}
