package question

import "context"

// Question is a multiple-choice item. CorrectIndex never leaves the server
// before the answer is graded.
type Question struct {
	ID           string   `json:"id"`
	Difficulty   int      `json:"difficulty"`
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	Category     string   `json:"category"`
}

// Catalog provides questions by difficulty and by id.
type Catalog interface {
	// AtDifficulty returns every question at difficulty d, possibly none.
	AtDifficulty(ctx context.Context, d int) ([]Question, error)
	// ByID returns nil, nil for unknown ids.
	ByID(ctx context.Context, id string) (*Question, error)
}
