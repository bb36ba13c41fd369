package external

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/gokatarajesh/brainbolt/internal/question"
)

// Source fetches questions from a public trivia bank.
type Source interface {
	Name() string
	Fetch(ctx context.Context, amount int, level string) ([]question.Question, error)
}

// Levels maps the three upstream difficulty labels onto the 1..10 scale.
var Levels = map[string]int{
	"easy":   2,
	"medium": 5,
	"hard":   8,
}

// convert builds a multiple-choice question. The correct answer lands at a
// position derived from the prompt so re-imports produce identical rows.
func convert(source, category, level, prompt, correct string, incorrect []string) (question.Question, error) {
	difficulty, ok := Levels[strings.ToLower(level)]
	if !ok {
		return question.Question{}, fmt.Errorf("%s: unknown difficulty %q", source, level)
	}
	if len(incorrect) == 0 {
		return question.Question{}, fmt.Errorf("%s: question without distractors", source)
	}

	prompt = html.UnescapeString(prompt)
	id := question.StableID(prompt)
	pos := int(uuid.MustParse(id)[0]) % (len(incorrect) + 1)

	choices := make([]string, 0, len(incorrect)+1)
	for _, c := range incorrect {
		choices = append(choices, html.UnescapeString(c))
	}
	choices = append(choices[:pos], append([]string{html.UnescapeString(correct)}, choices[pos:]...)...)

	return question.Question{
		ID:           id,
		Difficulty:   difficulty,
		Prompt:       prompt,
		Choices:      choices,
		CorrectIndex: pos,
		Category:     strings.ToLower(html.UnescapeString(category)),
	}, nil
}
