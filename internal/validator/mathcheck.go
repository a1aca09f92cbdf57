package validator

// #region imports
import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/alq-agent/agent/internal/question"
)

// #endregion

// #region extraction

var (
	binaryExpr = regexp.MustCompile(`(\d+)\s*([+\-−])\s*(\d+)\s*=`)
	firstInt   = regexp.MustCompile(`-?\d+`)
)

// expression is one detected binary arithmetic expression.
type expression struct {
	a, b     int
	op       rune
	expected int
}

// detectExpression finds the first a±b= pattern in text. Returns false when
// no expression is present; absence is not an error for this layer.
func detectExpression(text string) (expression, bool) {
	m := binaryExpr.FindStringSubmatch(text)
	if m == nil {
		return expression{}, false
	}
	a, err1 := strconv.Atoi(m[1])
	b, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return expression{}, false
	}
	e := expression{a: a, b: b, op: rune(m[2][0])}
	if m[2] == "+" {
		e.expected = a + b
	} else {
		e.op = '-'
		e.expected = a - b
	}
	return e, true
}

// answerValue extracts the first integer in an answer text.
func answerValue(text string) (int, bool) {
	m := firstInt.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// #endregion

// #region check

// mathCheck verifies numeric consistency for questions carrying a detectable
// arithmetic expression: the expected result must appear among the answers'
// numeric values, the answer flagged correct must carry it, and operands and
// result must fall inside the grade's configured numeric range.
func (v *Validator) mathCheck(q *question.Question, grade int) []Issue {
	// True/false answers carry no numeric values to match against.
	if q.Type == question.TrueFalse {
		return nil
	}
	expr, ok := detectExpression(q.Text)
	if !ok {
		return nil
	}

	var issues []Issue
	add := func(code Code, format string, args ...any) {
		issues = append(issues, Issue{Code: code, Message: fmt.Sprintf(format, args...), QuestionID: q.ID})
	}

	if lo, hi, ok := v.gradeRange(grade); ok {
		for _, n := range []int{expr.a, expr.b, expr.expected} {
			if n < lo || n > hi {
				add(CodeMathRange, "value %d outside grade %d range [%d, %d]", n, grade, lo, hi)
				break
			}
		}
	}

	found := false
	correctMatches := false
	for _, a := range q.Answers {
		n, ok := answerValue(a.Text)
		if !ok {
			continue
		}
		if n == expr.expected {
			found = true
			if a.Correct {
				correctMatches = true
			}
		}
	}
	switch {
	case !found:
		add(CodeMathIncorrect, "%d %c %d = %d but no answer carries %d", expr.a, expr.op, expr.b, expr.expected, expr.expected)
	case !correctMatches:
		add(CodeMathIncorrect, "expected result %d is present but not the answer flagged correct", expr.expected)
	}
	return issues
}

// gradeRange looks up the numeric bounds for a grade, keyed "grade<n>".
func (v *Validator) gradeRange(grade int) (int, int, bool) {
	bounds, ok := v.cfg.NumericRange[fmt.Sprintf("grade%d", grade)]
	if !ok || len(bounds) != 2 {
		return 0, 0, false
	}
	return bounds[0], bounds[1], true
}

// #endregion
