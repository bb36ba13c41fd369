package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAward(t *testing.T) {
	engine := NewEngine(DefaultScoringConfig())

	cases := []struct {
		difficulty, streak, want int
	}{
		{1, 0, 10},
		{5, 0, 50},
		{5, 5, 75},
		{7, 5, 105},
		{10, 10, 200},
		{10, 20, 300},
		{10, 100, 300},
		{3, 3, 39},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, engine.Award(tc.difficulty, tc.streak), "award(%d,%d)", tc.difficulty, tc.streak)
	}
}

func TestScoreIncorrectIsZero(t *testing.T) {
	engine := NewEngine(DefaultScoringConfig())

	assert.Equal(t, 0, engine.Score(false, 10, 50))
	assert.Equal(t, 0, engine.Score(false, 1, 0))
	assert.Equal(t, 105, engine.Score(true, 7, 5))
}

func TestStreakMultiplierCapped(t *testing.T) {
	engine := NewEngine(DefaultScoringConfig())

	assert.InDelta(t, 1.0, engine.StreakMultiplier(0), 1e-9)
	assert.InDelta(t, 1.5, engine.StreakMultiplier(5), 1e-9)
	assert.Equal(t, 3.0, engine.StreakMultiplier(1000))
	assert.InDelta(t, 1.0, engine.StreakMultiplier(-3), 1e-9)
}
