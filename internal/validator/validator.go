package validator

// #region imports
import (
	"context"
	"fmt"
	"strings"

	"github.com/alq-agent/agent/internal/question"
	"github.com/alq-agent/agent/internal/retrieval"
)

// #endregion

// #region codes

// Code tags one validation issue. Structural and numeric codes are hard
// gates; critique codes are advisory.
type Code string

const (
	CodeTypeInvalid   Code = "TYPE_INVALID"
	CodeTextLen       Code = "TEXT_LEN"
	CodeBannedWord    Code = "BANNED_WORD"
	CodeTFAnswerCount Code = "TF_ANS_COUNT"
	CodeMCAnswerCount Code = "MC_ANS_COUNT"
	CodeCorrectCount  Code = "CORRECT_COUNT"
	CodeDupOption     Code = "DUP_OPTION"
	CodeEmptyOption   Code = "EMPTY_OPTION"
	CodeMathIncorrect Code = "MATH_INCORRECT"
	CodeMathRange     Code = "MATH_RANGE"
	CodeLLMCritique   Code = "LLM_CRITIQUE"
	CodeFormat        Code = "FORMAT"
)

// Advisory reports whether issues with this code may block approval.
// Critique output never gates content on its own.
func (c Code) Advisory() bool {
	return c == CodeLLMCritique || c == CodeFormat
}

// #endregion

// #region report

// Issue is one finding against one question.
type Issue struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	QuestionID string `json:"question_id"`
}

// Fix records one repair the validator applied in place.
type Fix struct {
	QuestionID  string `json:"question_id"`
	Description string `json:"fix_description"`
}

// SuggestedFix is a critique-layer patch proposal. Never applied
// automatically; surfaced for downstream review.
type SuggestedFix struct {
	QuestionID string         `json:"question_id"`
	Patch      map[string]any `json:"patch"`
	Reason     string         `json:"reason"`
}

const (
	StatusApproved = "approved"
	StatusRevise   = "revise"
)

// Report is the outcome of one validation pass. Reports are never merged
// across passes.
type Report struct {
	Status         string         `json:"status"`
	Issues         []Issue        `json:"issues"`
	AppliedFixes   []Fix          `json:"applied_fixes"`
	SuggestedFixes []SuggestedFix `json:"suggested_fixes,omitempty"`
	Confidence     float64        `json:"confidence"`
}

// HardIssues returns the issues that gate approval.
func (r *Report) HardIssues() []Issue {
	var hard []Issue
	for _, is := range r.Issues {
		if !is.Code.Advisory() {
			hard = append(hard, is)
		}
	}
	return hard
}

// #endregion

// #region config

// Config holds the rule thresholds and toggles. Penalty weights and grade
// ranges are tuned defaults, not derived constants.
type Config struct {
	MinLen         int              `yaml:"min_len"`
	MaxLen         int              `yaml:"max_len"`
	BannedWords    []string         `yaml:"banned_words"`
	UniqueOptions  bool             `yaml:"unique_options"`
	EnableMath     bool             `yaml:"enable_math_check"`
	EnableCritique bool             `yaml:"enable_llm_critique"`
	AutoFix        bool             `yaml:"auto_fix_once"`
	NumericRange   map[string][]int `yaml:"grade_numeric_range"`
	Penalties      map[Code]float64 `yaml:"penalties"`
	FixPenalty     float64          `yaml:"fix_penalty"`
}

// DefaultConfig returns the validation defaults used when no config file
// overrides them.
func DefaultConfig() Config {
	return Config{
		MinLen:        5,
		MaxLen:        300,
		BannedWords:   nil,
		UniqueOptions: true,
		EnableMath:    true,
		AutoFix:       true,
		NumericRange:  map[string][]int{"grade1": {0, 100}},
		Penalties:     DefaultPenalties(),
		FixPenalty:    0.05,
	}
}

// DefaultPenalties weights structural violations far above cosmetic ones.
func DefaultPenalties() map[Code]float64 {
	return map[Code]float64{
		CodeTypeInvalid:   0.30,
		CodeCorrectCount:  0.25,
		CodeTFAnswerCount: 0.25,
		CodeMCAnswerCount: 0.25,
		CodeMathIncorrect: 0.30,
		CodeMathRange:     0.15,
		CodeDupOption:     0.10,
		CodeEmptyOption:   0.10,
		CodeTextLen:       0.05,
		CodeBannedWord:    0.05,
		CodeLLMCritique:   0.05,
		CodeFormat:        0.02,
	}
}

// #endregion

// #region validator

// Validator runs the structural, numeric, and critique layers over a set of
// generated questions and repairs what it can.
type Validator struct {
	cfg Config
	hub Caller // nil disables the critique layer
}

// New builds a Validator. hub may be nil; the critique layer then stays off
// regardless of configuration.
func New(cfg Config, hub Caller) *Validator {
	if cfg.Penalties == nil {
		cfg.Penalties = DefaultPenalties()
	}
	return &Validator{cfg: cfg, hub: hub}
}

// Validate checks every question and, when auto-fix is on, repairs answer
// arrays in place. Approval is decided by the hard issue list alone;
// confidence is informational.
func (v *Validator) Validate(ctx context.Context, items []question.Question, res retrieval.Result, grade int) Report {
	var report Report

	for i := range items {
		report.Issues = append(report.Issues, v.structural(&items[i])...)
	}
	if v.cfg.EnableMath {
		for i := range items {
			report.Issues = append(report.Issues, v.mathCheck(&items[i], grade)...)
		}
	}
	if v.cfg.EnableCritique && v.hub != nil {
		issues, fixes := v.critique(ctx, items, res)
		report.Issues = append(report.Issues, issues...)
		report.SuggestedFixes = fixes
	}

	if v.cfg.AutoFix {
		for i := range items {
			report.AppliedFixes = append(report.AppliedFixes, autoFix(&items[i])...)
		}
	}

	if len(report.HardIssues()) == 0 {
		report.Status = StatusApproved
	} else {
		report.Status = StatusRevise
	}
	report.Confidence = v.confidence(report.Issues, len(report.AppliedFixes) > 0)
	return report
}

// #endregion

// #region structural

// structural applies the rule layer to one question.
func (v *Validator) structural(q *question.Question) []Issue {
	var issues []Issue
	add := func(code Code, format string, args ...any) {
		issues = append(issues, Issue{Code: code, Message: fmt.Sprintf(format, args...), QuestionID: q.ID})
	}

	if !q.Type.Valid() {
		add(CodeTypeInvalid, "unknown question type %q", q.Type)
		return issues // remaining rules assume a known type
	}

	text := strings.TrimSpace(q.Text)
	if n := len([]rune(text)); n < v.cfg.MinLen || (v.cfg.MaxLen > 0 && n > v.cfg.MaxLen) {
		add(CodeTextLen, "question text length %d outside [%d, %d]", n, v.cfg.MinLen, v.cfg.MaxLen)
	}
	for _, banned := range v.cfg.BannedWords {
		if containsWord(text, banned) {
			add(CodeBannedWord, "question text contains banned term %q", banned)
		}
		for _, a := range q.Answers {
			if containsWord(a.Text, banned) {
				add(CodeBannedWord, "answer %q contains banned term %q", a.Text, banned)
			}
		}
	}

	want := q.Type.RequiredAnswers()
	if len(q.Answers) != want {
		code := CodeMCAnswerCount
		if q.Type == question.TrueFalse {
			code = CodeTFAnswerCount
		}
		add(code, "%s question has %d answers, want %d", q.Type, len(q.Answers), want)
	}

	correct := 0
	seen := make(map[string]bool, len(q.Answers))
	for i, a := range q.Answers {
		t := strings.TrimSpace(a.Text)
		if t == "" {
			add(CodeEmptyOption, "answer %d has empty text", i)
			continue
		}
		key := strings.ToLower(t)
		if v.cfg.UniqueOptions && seen[key] {
			add(CodeDupOption, "duplicate answer text %q", a.Text)
		}
		seen[key] = true
		if a.Correct {
			correct++
		}
	}
	if correct != 1 {
		add(CodeCorrectCount, "found %d correct answers, want exactly 1", correct)
	}
	return issues
}

func containsWord(text, word string) bool {
	if strings.TrimSpace(word) == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(word))
}

// #endregion

// #region confidence

// Bounds for the confidence score of any report. Consumers synthesizing a
// report keep its confidence inside this range too.
const (
	MinConfidence = 0.1
	MaxConfidence = 0.95
)

// confidence starts at MaxConfidence for a clean pass, otherwise at 0.9
// minus the per-code penalties, with one flat deduction when any repair was
// applied. Clamped to [MinConfidence, MaxConfidence].
func (v *Validator) confidence(issues []Issue, fixed bool) float64 {
	score := MaxConfidence
	if len(issues) > 0 {
		score = 0.9
		for _, is := range issues {
			score -= v.cfg.Penalties[is.Code]
		}
	}
	if fixed {
		score -= v.cfg.FixPenalty
	}
	if score < MinConfidence {
		score = MinConfidence
	}
	if score > MaxConfidence {
		score = MaxConfidence
	}
	return score
}

// #endregion
