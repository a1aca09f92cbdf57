package retrieval

// #region imports
import (
	"context"
	"sort"
	"strings"
)

// #endregion

// #region retriever

// Retriever is the external collaborator that turns a skill/topic query into
// ranked context chunks per category. Implementations must be idempotent for
// identical requests within a short window.
type Retriever interface {
	Query(ctx context.Context, req Request) (Result, error)
}

// #endregion

// #region filtering

// Filter drops chunks below the relevance floor, discards empty or duplicate
// entries, and applies the per-category caps. Input order is preserved for
// surviving chunks; ties are not re-ranked here.
func Filter(res Result, cfg Config) Result {
	return Result{
		Teacher:  filterChunks(res.Teacher, cfg.MinScore, cfg.MaxTeacher),
		Textbook: filterChunks(res.Textbook, cfg.MinScore, cfg.MaxTextbook),
	}
}

// filterChunks validates one category's chunks against basic constraints:
// non-empty text, score at or above the floor, no duplicate IDs.
func filterChunks(chunks []Chunk, minScore float64, cap int) []Chunk {
	seen := make(map[string]bool, len(chunks))
	var valid []Chunk
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		if c.Score < minScore {
			continue
		}
		if c.ID != "" && seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		valid = append(valid, c)
		if cap > 0 && len(valid) == cap {
			break
		}
	}
	return valid
}

// TopByScore returns up to n chunks ordered by descending relevance score.
// The input slice is not modified.
func TopByScore(chunks []Chunk, n int) []Chunk {
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// IDs collects the chunk IDs in order.
func IDs(chunks []Chunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	return ids
}

// #endregion
