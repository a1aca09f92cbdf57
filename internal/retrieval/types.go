package retrieval

// #region category

// Category names a context corpus. Teacher chunks carry pedagogical
// guidance; textbook chunks carry worked examples.
type Category string

const (
	CategoryTeacher  Category = "teacher"
	CategoryTextbook Category = "textbook"
)

// #endregion

// #region chunk

// Chunk is a single piece of retrieved supporting context. Read-only to the
// pipeline once produced by a Retriever.
type Chunk struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	SourceLabel string  `json:"source"`
	Score       float64 `json:"score"`
	ImageRef    string  `json:"image_question,omitempty"` // optional image reference on textbook chunks
}

// #endregion

// #region request-result

// Request describes one retrieval query. Issued once per workflow run.
type Request struct {
	Skill        string
	SkillName    string
	Grade        int
	TopKTeacher  int
	TopKTextbook int
}

// Result holds ranked chunks per category.
type Result struct {
	Teacher  []Chunk
	Textbook []Chunk
}

// Total returns the combined chunk count across categories.
func (r Result) Total() int { return len(r.Teacher) + len(r.Textbook) }

// #endregion

// #region config

// Config holds the relevance floor and per-category caps applied to raw
// retrieval results.
type Config struct {
	MinScore    float64 `yaml:"min_score"`        // drop chunks scoring below this
	MaxTeacher  int     `yaml:"max_teacher_ctx"`  // cap on teacher chunks after filtering
	MaxTextbook int     `yaml:"max_textbook_ctx"` // cap on textbook chunks after filtering
}

// DefaultConfig returns the caps used when no config file overrides them.
func DefaultConfig() Config {
	return Config{
		MinScore:    0.3,
		MaxTeacher:  3,
		MaxTextbook: 5,
	}
}

// #endregion
