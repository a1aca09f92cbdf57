package validator

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/alq-agent/agent/internal/llm"
	"github.com/alq-agent/agent/internal/question"
	"github.com/alq-agent/agent/internal/retrieval"
)

// #endregion

// #region caller

// Caller is the slice of the provider hub the critique layer needs.
// Satisfied by *llm.Hub.
type Caller interface {
	Call(ctx context.Context, msgs []llm.Message, temperature float64, maxTokens int) (string, string, error)
}

// #endregion

// #region critique

// critiquePayload mirrors the structured response the critique instruction
// asks for.
type critiquePayload struct {
	Issues []struct {
		QuestionID string `json:"question_id"`
		Code       string `json:"code"`
		Message    string `json:"message"`
	} `json:"issues"`
	SuggestedFixes []SuggestedFix `json:"suggested_fixes"`
}

// critique asks the hub to review the questions against the retrieved
// context. Every failure mode degrades to advisory output: a hub error
// yields nothing, a malformed response yields one FORMAT issue. This layer
// never gates content on its own.
func (v *Validator) critique(ctx context.Context, items []question.Question, res retrieval.Result) ([]Issue, []SuggestedFix) {
	blob, err := json.Marshal(items)
	if err != nil {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Review the questions below for clarity, pedagogy, and factual correctness.\n")
	b.WriteString(`Reply ONLY with JSON: {"issues": [{"question_id": "...", "code": "LLM_CRITIQUE", "message": "..."}], "suggested_fixes": [{"question_id": "...", "patch": {...}, "reason": "..."}]}.`)
	b.WriteString(" Use empty lists when nothing needs attention.\n\nQuestions:\n")
	b.Write(blob)
	if ctxText := contextSummary(res); ctxText != "" {
		b.WriteString("\n\nSource context:\n")
		b.WriteString(ctxText)
	}

	text, _, err := v.hub.Call(ctx, []llm.Message{
		llm.System("You review educational quiz questions and respond in strict JSON."),
		llm.User(b.String()),
	}, 0.1, 1024)
	if err != nil {
		log.Printf("[VAL] critique unavailable: %v", err)
		return nil, nil
	}

	payload, ok := decodeCritique(text)
	if !ok {
		return []Issue{{Code: CodeFormat, Message: "critique response was not structured data"}}, nil
	}

	issues := make([]Issue, 0, len(payload.Issues))
	for _, is := range payload.Issues {
		code := CodeLLMCritique
		if is.Code == string(CodeFormat) {
			code = CodeFormat
		}
		issues = append(issues, Issue{Code: code, Message: is.Message, QuestionID: is.QuestionID})
	}
	return issues, payload.SuggestedFixes
}

// decodeCritique accepts the response as strict JSON or as the largest
// embedded JSON object.
func decodeCritique(text string) (critiquePayload, bool) {
	var p critiquePayload
	trimmed := strings.TrimSpace(text)
	if json.Unmarshal([]byte(trimmed), &p) == nil {
		return p, true
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if json.Unmarshal([]byte(trimmed[start:end+1]), &p) == nil {
			return p, true
		}
	}
	return critiquePayload{}, false
}

func contextSummary(res retrieval.Result) string {
	var parts []string
	for _, c := range append(append([]retrieval.Chunk{}, res.Teacher...), res.Textbook...) {
		t := strings.TrimSpace(c.Text)
		if t != "" {
			parts = append(parts, fmt.Sprintf("- %s", t))
		}
	}
	return strings.Join(parts, "\n")
}

// #endregion
