package workflow

// #region imports
import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/alq-agent/agent/internal/generator"
	"github.com/alq-agent/agent/internal/question"
	"github.com/alq-agent/agent/internal/retrieval"
	"github.com/alq-agent/agent/internal/validator"
)

// #endregion

// #region config

// Config bounds one run of the pipeline.
type Config struct {
	RegenLimit   int              `yaml:"regen_limit"`
	TopKTeacher  int              `yaml:"top_k_teacher"`
	TopKTextbook int              `yaml:"top_k_textbook"`
	Retrieval    retrieval.Config `yaml:"retrieval"`
}

// DefaultConfig returns the orchestration defaults used when no config file
// overrides them.
func DefaultConfig() Config {
	return Config{
		RegenLimit:   2,
		TopKTeacher:  5,
		TopKTextbook: 8,
		Retrieval:    retrieval.DefaultConfig(),
	}
}

// #endregion

// #region collaborators

// Generator is the slice of the batched generator the runner needs.
type Generator interface {
	Generate(ctx context.Context, res retrieval.Result, profile generator.Profile, cons generator.Constraints) generator.Output
}

// Validator is the slice of the validation engine the runner needs.
type Validator interface {
	Validate(ctx context.Context, items []question.Question, res retrieval.Result, grade int) validator.Report
}

// #endregion

// #region result

const (
	StatusApproved  = "DONE_APPROVED"
	StatusExhausted = "DONE_EXHAUSTED"
)

// CodeGenEmpty marks an attempt whose generation produced nothing at all.
const CodeGenEmpty validator.Code = "GEN_EMPTY"

// Attempt records one generate/validate iteration.
type Attempt struct {
	Index      int
	Duration   time.Duration
	Questions  int
	IssueCodes []validator.Code
}

// RunResult is the outcome of one Run call. The questions and report are
// always those of the final attempt; callers must inspect Status before
// presenting content.
type RunResult struct {
	RunID     string
	Status    string
	Questions []question.Question
	Report    validator.Report
	Attempts  []Attempt
	Context   retrieval.Result
}

// #endregion

// #region runner

// Runner drives one student request through retrieve, generate, and
// validate, regenerating up to the configured bound.
type Runner struct {
	retriever retrieval.Retriever
	gen       Generator
	val       Validator
	cfg       Config
	now       func() time.Time
}

func New(retriever retrieval.Retriever, gen Generator, val Validator, cfg Config) *Runner {
	if cfg.RegenLimit < 0 {
		cfg.RegenLimit = 0
	}
	return &Runner{retriever: retriever, gen: gen, val: val, cfg: cfg, now: time.Now}
}

// Run retrieves context once, then loops generate and validate until the
// validator approves or attempts run out. Retrieval failure is fatal to the
// run; everything downstream is absorbed into the attempt history.
func (r *Runner) Run(ctx context.Context, profile generator.Profile, cons generator.Constraints) (RunResult, error) {
	result := RunResult{RunID: uuid.NewString()}

	res, err := r.retriever.Query(ctx, retrieval.Request{
		Skill:        cons.Skill,
		SkillName:    cons.SkillName,
		Grade:        cons.Grade,
		TopKTeacher:  r.cfg.TopKTeacher,
		TopKTextbook: r.cfg.TopKTextbook,
	})
	if err != nil {
		return result, fmt.Errorf("retrieve context for skill %s: %w", cons.Skill, err)
	}
	result.Context = retrieval.Filter(res, r.cfg.Retrieval)
	log.Printf("[FLOW] run %s: %d teacher / %d textbook chunks after filtering",
		result.RunID, len(result.Context.Teacher), len(result.Context.Textbook))

	maxAttempts := r.cfg.RegenLimit + 1
	result.Status = StatusExhausted

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		started := r.now()
		out := r.gen.Generate(ctx, result.Context, profile, cons)

		rec := Attempt{Index: attempt, Questions: len(out.Questions)}
		if len(out.Questions) == 0 {
			rec.IssueCodes = []validator.Code{CodeGenEmpty}
			rec.Duration = r.now().Sub(started)
			result.Attempts = append(result.Attempts, rec)
			result.Questions = nil
			result.Report = validator.Report{
				Status: validator.StatusRevise,
				Issues: []validator.Issue{
					{Code: CodeGenEmpty, Message: "generation produced no questions"},
				},
				Confidence: validator.MinConfidence,
			}
			log.Printf("[FLOW] run %s attempt %d/%d: no questions generated", result.RunID, attempt, maxAttempts)
			continue
		}

		report := r.val.Validate(ctx, out.Questions, result.Context, cons.Grade)
		rec.IssueCodes = issueCodes(report.Issues)
		rec.Duration = r.now().Sub(started)
		result.Attempts = append(result.Attempts, rec)
		result.Questions = out.Questions
		result.Report = report

		if report.Status == validator.StatusApproved {
			result.Status = StatusApproved
			log.Printf("[FLOW] run %s approved on attempt %d/%d (confidence %.2f)",
				result.RunID, attempt, maxAttempts, report.Confidence)
			return result, nil
		}
		log.Printf("[FLOW] run %s attempt %d/%d revise: %v", result.RunID, attempt, maxAttempts, rec.IssueCodes)
	}

	log.Printf("[FLOW] run %s exhausted after %d attempts", result.RunID, maxAttempts)
	return result, nil
}

func issueCodes(issues []validator.Issue) []validator.Code {
	out := make([]validator.Code, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.Code)
	}
	return out
}

// #endregion
