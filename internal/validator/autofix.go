package validator

// #region imports
import (
	"fmt"
	"strings"

	"github.com/alq-agent/agent/internal/question"
)

// #endregion

// #region autofix

// autoFix normalizes one question's answers in place: empty or
// case-insensitively duplicate texts are replaced with indexed placeholder
// labels, and exactly one correct flag is kept (the first found, or the
// first answer when none was set). Question text and explanation are never
// touched. Running it again on repaired answers changes nothing.
func autoFix(q *question.Question) []Fix {
	var fixes []Fix
	record := func(format string, args ...any) {
		fixes = append(fixes, Fix{QuestionID: q.ID, Description: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]bool, len(q.Answers))
	for i := range q.Answers {
		text := strings.TrimSpace(q.Answers[i].Text)
		key := strings.ToLower(text)
		if text == "" || seen[key] {
			placeholder := placeholderLabel(i, seen)
			record("answer %d text %q replaced with %q", i, q.Answers[i].Text, placeholder)
			q.Answers[i].Text = placeholder
			key = strings.ToLower(placeholder)
		}
		seen[key] = true
	}

	firstCorrect := -1
	for i := range q.Answers {
		if !q.Answers[i].Correct {
			continue
		}
		if firstCorrect < 0 {
			firstCorrect = i
			continue
		}
		q.Answers[i].Correct = false
		record("cleared extra correct flag on answer %d", i)
	}
	if firstCorrect < 0 && len(q.Answers) > 0 {
		q.Answers[0].Correct = true
		record("no answer was flagged correct; flagged answer 0")
	}
	return fixes
}

// placeholderLabel picks an unused "Option X" label for position i.
func placeholderLabel(i int, seen map[string]bool) string {
	label := fmt.Sprintf("Option %c", 'A'+i%26)
	for n := 2; seen[strings.ToLower(label)]; n++ {
		label = fmt.Sprintf("Option %c%d", 'A'+i%26, n)
	}
	return label
}

// #endregion
