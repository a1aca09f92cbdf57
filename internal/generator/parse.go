package generator

// #region imports
import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/alq-agent/agent/internal/question"
)

// #endregion

// #region errors

// ErrParse marks model output that yielded no usable question payload after
// every fallback strategy.
var ErrParse = errors.New("unparseable model output")

// #endregion

// #region payload

// rawAnswer mirrors one answer object of the model's output schema.
type rawAnswer struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// rawQuestion mirrors one question object of the model's output schema.
// Unknown fields are ignored; image references are accepted but not carried
// onto the produced questions.
type rawQuestion struct {
	Text        string      `json:"question_text"`
	Type        string      `json:"question_type"`
	Answers     []rawAnswer `json:"answers"`
	Explanation string      `json:"explanation"`
	Difficulty  string      `json:"difficulty"`
}

// #endregion

// #region parse-chain

var (
	fencedJSON    = regexp.MustCompile("(?is)```json\\s*\\n(.*?)\\n```")
	fencedGeneric = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```")
)

// parseResponse extracts a question list from raw model output. Formatting
// instructions in the prompt are advisory only, so three strategies run in
// order and the first that produces valid JSON wins: the whole response as
// strict JSON, the contents of a fenced code block, then the largest
// balanced-brace substring.
func parseResponse(raw string) ([]rawQuestion, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty response", ErrParse)
	}

	for _, candidate := range []string{trimmed, extractFenced(raw), largestBalanced(raw)} {
		if candidate == "" {
			continue
		}
		if qs, ok := decodeCandidate(candidate); ok {
			return qs, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrParse, snippet(trimmed))
}

// extractFenced pulls the body of a markdown code block. A ```json block
// always wins; a plain block counts only when its body looks like an object.
func extractFenced(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fencedGeneric.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
			return body
		}
	}
	return ""
}

// largestBalanced returns the longest substring of text that is a
// brace-balanced, syntactically valid JSON object.
func largestBalanced(text string) string {
	best := ""
	depth := 0
	start := -1
	for i, r := range text {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidate := text[start : i+1]
				if len(candidate) > len(best) && json.Valid([]byte(candidate)) {
					best = candidate
				}
			}
		}
	}
	return best
}

// decodeCandidate parses one candidate string and normalizes whatever shape
// came back into a question list: a top-level array, an object with a
// "questions" key, or an object holding some other list whose elements look
// like question objects.
func decodeCandidate(candidate string) ([]rawQuestion, bool) {
	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return nil, false
	}

	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case map[string]any:
		if qs, ok := t["questions"].([]any); ok {
			list = qs
		} else {
			list = findQuestionList(t)
		}
	default:
		return nil, false
	}
	if list == nil {
		return nil, false
	}

	// Round-trip through JSON to get typed question objects.
	blob, err := json.Marshal(list)
	if err != nil {
		return nil, false
	}
	var qs []rawQuestion
	if err := json.Unmarshal(blob, &qs); err != nil {
		return nil, false
	}
	return qs, true
}

// findQuestionList scans an object's values for a list of objects carrying
// the required question fields. Used when the model invents its own wrapper
// key instead of "questions".
func findQuestionList(obj map[string]any) []any {
	for _, val := range obj {
		list, ok := val.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		first, ok := list[0].(map[string]any)
		if !ok {
			continue
		}
		if hasKeys(first, "question_text", "question_type", "answers") {
			return list
		}
	}
	return nil
}

func hasKeys(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func snippet(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// #endregion

// #region schema

// checkSchema verifies a parsed batch against the question contract before
// any stamping happens. Each entry must hold every structural invariant a
// finished question holds, including pairwise distinct answer texts, so a
// bad batch is caught here by the cheap in-batch retry rather than later by
// the validator.
func checkSchema(qs []rawQuestion) error {
	if len(qs) == 0 {
		return errors.New("no questions in payload")
	}
	for i, r := range qs {
		answers := make([]question.Answer, 0, len(r.Answers))
		for _, a := range r.Answers {
			answers = append(answers, question.Answer{Text: a.Text, Correct: a.Correct})
		}
		q := question.Question{Text: r.Text, Type: question.Type(r.Type), Answers: answers}
		if err := q.CheckInvariants(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// #endregion
