package generator

// #region imports
import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/alq-agent/agent/internal/llm"
	"github.com/alq-agent/agent/internal/question"
	"github.com/alq-agent/agent/internal/retrieval"
)

// #endregion

// #region config

// Config controls batching, sampling, and the per-batch parse retry.
type Config struct {
	BatchSize        int     `yaml:"batch_size"`
	Temperature      float64 `yaml:"temperature"`
	MinTemperature   float64 `yaml:"min_temperature"`
	TemperatureStep  float64 `yaml:"temperature_step"`
	MaxTokens        int     `yaml:"max_tokens"`
	ParseRetries     int     `yaml:"retry_on_parse_error"`
	CompressAbove    int     `yaml:"compress_above_chars"`
	CompressTokens   int     `yaml:"compress_max_tokens"`
	CompressFallback int     `yaml:"compress_fallback_chars"`
}

// DefaultConfig returns the generation defaults used when no config file
// overrides them.
func DefaultConfig() Config {
	return Config{
		BatchSize:        4,
		Temperature:      0.3,
		MinTemperature:   0.0,
		TemperatureStep:  0.1,
		MaxTokens:        2048,
		ParseRetries:     1,
		CompressAbove:    1500,
		CompressTokens:   256,
		CompressFallback: 1200,
	}
}

// #endregion

// #region inputs

// Profile carries the student signals generation adapts to.
type Profile struct {
	Username string
	Accuracy float64 // percent, 0..100
	SkillID  string
}

// Constraints bounds one generation request.
type Constraints struct {
	Count     int
	Grade     int
	Skill     string
	SkillName string
}

// Caller is the slice of the provider hub the generator needs. Satisfied by
// *llm.Hub.
type Caller interface {
	Call(ctx context.Context, msgs []llm.Message, temperature float64, maxTokens int) (string, string, error)
}

// #endregion

// #region output

// Mix is the easy/medium/hard proportion for one request. Derived
// deterministically from accuracy, reproducible for the same input.
type Mix struct {
	Easy   float64
	Medium float64
	Hard   float64
}

// Metadata aggregates per-request generation facts.
type Metadata struct {
	TotalQuestions int
	NumBatches     int
	BatchDurations []time.Duration
	SuggestedType  string
	DifficultyMix  Mix
	HasImages      bool
	ImageRefs      int
	Compressed     bool // context summary came from a hub call, not truncation
}

// Output is the result of one Generate call. A failed batch contributes
// zero questions; callers detect shortfall by comparing counts.
type Output struct {
	Questions []question.Question
	Metadata  Metadata
}

// #endregion

// #region generator

// Generator produces structured questions in fixed-size batches through the
// provider hub.
type Generator struct {
	hub Caller
	cfg Config
	now func() time.Time
}

func New(hub Caller, cfg Config) *Generator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Generator{hub: hub, cfg: cfg, now: time.Now}
}

// Generate produces up to cons.Count questions. Partial failure is absorbed:
// a batch that never parses is dropped and the remaining batches still run.
func (g *Generator) Generate(ctx context.Context, res retrieval.Result, profile Profile, cons Constraints) Output {
	out := Output{}
	if cons.Count <= 0 {
		return out
	}

	sizes := partition(cons.Count, g.cfg.BatchSize)
	mix := DifficultyMix(profile.Accuracy)
	suggested := suggestType(res)
	refs := imageRefs(res.Textbook)

	// Context is compressed once, before any batch, so every batch shares
	// the same summary and the cost is paid a single time.
	teacherCtx, compressed := g.compressContext(ctx, res.Teacher)

	out.Metadata = Metadata{
		NumBatches:    len(sizes),
		SuggestedType: suggested,
		DifficultyMix: mix,
		HasImages:     len(refs) > 0,
		ImageRefs:     len(refs),
		Compressed:    compressed,
	}

	for batch, size := range sizes {
		started := g.now()
		qs, err := g.generateBatch(ctx, teacherCtx, res, profile, cons, batch, size, mix, suggested, refs)
		out.Metadata.BatchDurations = append(out.Metadata.BatchDurations, g.now().Sub(started))
		if err != nil {
			log.Printf("[GEN] batch %d abandoned after retries: %v", batch, err)
			continue
		}
		out.Questions = append(out.Questions, qs...)
	}
	out.Metadata.TotalQuestions = len(out.Questions)
	return out
}

// generateBatch runs one batch through the hub with the parse retry. Each
// retry lowers the temperature by one step, floored at the minimum.
func (g *Generator) generateBatch(ctx context.Context, teacherCtx string, res retrieval.Result, profile Profile, cons Constraints, batch, size int, mix Mix, suggested string, refs []string) ([]question.Question, error) {
	msgs := g.buildMessages(teacherCtx, res.Textbook, profile, cons, size, mix, suggested, refs)

	var lastErr error
	for attempt := 0; attempt <= g.cfg.ParseRetries; attempt++ {
		temp := g.cfg.Temperature - float64(attempt)*g.cfg.TemperatureStep
		if temp < g.cfg.MinTemperature {
			temp = g.cfg.MinTemperature
		}

		text, provider, err := g.hub.Call(ctx, msgs, temp, g.cfg.MaxTokens)
		if err != nil {
			lastErr = err
			log.Printf("[GEN] batch %d attempt %d hub call failed: %v", batch, attempt+1, err)
			continue
		}

		raw, err := parseResponse(text)
		if err == nil {
			err = checkSchema(raw)
		}
		if err != nil {
			lastErr = err
			log.Printf("[GEN] batch %d attempt %d rejected (temp %.2f): %v", batch, attempt+1, temp, err)
			continue
		}

		if len(raw) > size {
			raw = raw[:size]
		}
		return g.stamp(raw, res, provider, temp, batch), nil
	}
	return nil, lastErr
}

// stamp converts parsed questions into the output model with provenance and
// run-unique IDs. IDs combine wall time, batch index, and sequence so a
// collision within one run is structurally impossible.
func (g *Generator) stamp(raw []rawQuestion, res retrieval.Result, provider string, temp float64, batch int) []question.Question {
	stampedAt := g.now()
	teacherIDs := retrieval.IDs(res.Teacher)
	textbookIDs := retrieval.IDs(res.Textbook)

	qs := make([]question.Question, 0, len(raw))
	for seq, r := range raw {
		id := fmt.Sprintf("q_%d_%d_%d", stampedAt.UnixNano(), batch, seq)
		answers := make([]question.Answer, 0, len(r.Answers))
		for _, a := range r.Answers {
			answers = append(answers, question.Answer{Text: a.Text, Correct: a.Correct})
		}
		qs = append(qs, question.Question{
			ID:          id,
			Text:        r.Text,
			Type:        question.Type(r.Type),
			Answers:     answers,
			Explanation: r.Explanation,
			Difficulty:  defaultDifficulty(r.Difficulty),
			Provenance: question.Provenance{
				QuestionID:         id,
				TeacherContextIDs:  teacherIDs,
				TextbookContextIDs: textbookIDs,
				Provider:           provider,
				Temperature:        temp,
				BatchIndex:         batch,
				GeneratedAt:        stampedAt,
			},
		})
	}
	return qs
}

func defaultDifficulty(d string) string {
	switch d {
	case "easy", "medium", "hard":
		return d
	}
	return "medium"
}

// #endregion

// #region context

// compressContext produces the teacher-context summary shared by all
// batches. Long context goes through the hub with a terse instruction and a
// small token cap; if that call fails, plain truncation of the
// highest-scoring chunks stands in.
func (g *Generator) compressContext(ctx context.Context, teacher []retrieval.Chunk) (string, bool) {
	joined := joinChunks(teacher)
	if len(joined) <= g.cfg.CompressAbove {
		return joined, false
	}

	msgs := []llm.Message{
		llm.System("You condense teaching guidance. Reply with a short plain-text summary, nothing else."),
		llm.User("Summarize the key teaching points below in at most five sentences.\n\n" + joined),
	}
	summary, _, err := g.hub.Call(ctx, msgs, 0.1, g.cfg.CompressTokens)
	if err == nil && strings.TrimSpace(summary) != "" {
		return strings.TrimSpace(summary), true
	}
	log.Printf("[GEN] context compression failed, falling back to truncation: %v", err)

	top := joinChunks(retrieval.TopByScore(teacher, 3))
	if len(top) > g.cfg.CompressFallback {
		top = top[:g.cfg.CompressFallback]
	}
	return top, false
}

func joinChunks(chunks []retrieval.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, strings.TrimSpace(c.Text))
	}
	return strings.Join(parts, "\n")
}

// #endregion

// #region heuristics

// DifficultyMix maps a student's accuracy percentage to easy/medium/hard
// proportions. Lower accuracy means a gentler mix. Pure function.
func DifficultyMix(accuracy float64) Mix {
	switch {
	case accuracy < 40:
		return Mix{Easy: 0.6, Medium: 0.3, Hard: 0.1}
	case accuracy <= 70:
		return Mix{Easy: 0.4, Medium: 0.4, Hard: 0.2}
	default:
		return Mix{Easy: 0.2, Medium: 0.4, Hard: 0.4}
	}
}

var arithmeticExpr = regexp.MustCompile(`\d+\s*[+\-−]\s*\d+\s*=`)

// suggestType inspects the retrieved context for cues about which question
// format the source material leans toward. The result is a soft hint woven
// into the instruction, never enforced on the output.
func suggestType(res retrieval.Result) string {
	text := strings.ToLower(joinChunks(res.Teacher) + "\n" + joinChunks(res.Textbook))
	switch {
	case strings.Contains(text, "true or false") || strings.Contains(text, "right or wrong"):
		return string(question.TrueFalse)
	case arithmeticExpr.MatchString(text):
		return string(question.FillBlank)
	case strings.Contains(text, "how many") || strings.Contains(text, "which of"):
		return string(question.MultipleChoice)
	}
	return "mixed"
}

// imageRefs collects the image references attached to textbook chunks. The
// produced questions stay text-only; references are surfaced so the
// instruction can tell the model which source questions depend on a figure.
func imageRefs(textbook []retrieval.Chunk) []string {
	var refs []string
	for _, c := range textbook {
		if strings.TrimSpace(c.ImageRef) != "" {
			refs = append(refs, c.ImageRef)
		}
	}
	return refs
}

// partition splits count into batches of at most size; the last batch takes
// the remainder.
func partition(count, size int) []int {
	var sizes []int
	for count > 0 {
		n := size
		if count < n {
			n = count
		}
		sizes = append(sizes, n)
		count -= n
	}
	return sizes
}

// #endregion

// #region prompt

const outputSchema = `Return ONLY a JSON object of this exact shape:
{
  "questions": [
    {
      "question_text": "...",
      "question_type": "multiple_choice" | "true_false" | "fill_blank",
      "answers": [{"text": "...", "correct": true|false}, ...],
      "explanation": "...",
      "difficulty": "easy" | "medium" | "hard"
    }
  ]
}
Rules: true_false questions carry exactly 2 answers, all other types exactly
4; exactly one answer per question has "correct": true; answer texts within a
question must be distinct.`

// buildMessages assembles the conversation for one batch: a system message
// with the role and output schema, and a user message carrying the
// compressed guidance, the raw worked examples, and the task constraints.
func (g *Generator) buildMessages(teacherCtx string, textbook []retrieval.Chunk, profile Profile, cons Constraints, size int, mix Mix, suggested string, refs []string) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d questions for a grade %d student practicing %q (skill %s).\n", size, cons.Grade, cons.SkillName, cons.Skill)
	fmt.Fprintf(&b, "Target difficulty mix: %.0f%% easy, %.0f%% medium, %.0f%% hard.\n", mix.Easy*100, mix.Medium*100, mix.Hard*100)
	if suggested != "mixed" {
		fmt.Fprintf(&b, "The source material suggests %s questions; prefer that type where it fits.\n", suggested)
	}
	if profile.Username != "" {
		fmt.Fprintf(&b, "Student accuracy on this skill: %.0f%%.\n", profile.Accuracy)
	}

	if teacherCtx != "" {
		b.WriteString("\nTeaching guidance:\n")
		b.WriteString(teacherCtx)
		b.WriteString("\n")
	}
	if len(textbook) > 0 {
		b.WriteString("\nWorked examples:\n")
		for _, c := range textbook {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(c.Text))
			b.WriteString("\n")
		}
	}
	if len(refs) > 0 {
		fmt.Fprintf(&b, "\nSome source examples depend on figures (%d references). Write questions that stand alone as text; do not assume the student can see any figure.\n", len(refs))
	}

	return []llm.Message{
		llm.System("You write educational quiz questions. " + outputSchema),
		llm.User(b.String()),
	}
}

// #endregion
