package scoring

import "math"

// ScoringConfig holds configurable scoring constants (defaults match requirements).
type ScoringConfig struct {
	BaseMultiplier      int     // default: 10 (points per difficulty level)
	StreakRate          float64 // default: 0.1 (10% per prior consecutive correct)
	MaxStreakMultiplier float64 // default: 3.0 cap
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BaseMultiplier:      10,
		StreakRate:          0.1,
		MaxStreakMultiplier: 3.0,
	}
}

// Engine computes server-side scores with configurable constants.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config ScoringConfig) *Engine {
	if config.BaseMultiplier <= 0 {
		config.BaseMultiplier = 10
	}
	if config.MaxStreakMultiplier < 1 {
		config.MaxStreakMultiplier = 1
	}
	return &Engine{config: config}
}

// StreakMultiplier returns min(1 + streak*rate, cap).
func (e *Engine) StreakMultiplier(priorStreak int) float64 {
	if priorStreak < 0 {
		priorStreak = 0
	}
	return math.Min(1+float64(priorStreak)*e.config.StreakRate, e.config.MaxStreakMultiplier)
}

// Award computes points for a correct answer at the given difficulty, using the
// streak held before this answer.
// Formula: floor(difficulty * base * multiplier)
func (e *Engine) Award(difficulty, priorStreak int) int {
	base := float64(difficulty * e.config.BaseMultiplier)
	// Round away representation noise (30 * 1.3000000000000003) before flooring.
	points := math.Round(base*e.StreakMultiplier(priorStreak)*1e6) / 1e6
	return int(math.Floor(points))
}

// Score is Award for correct answers and zero otherwise.
func (e *Engine) Score(correct bool, difficulty, priorStreak int) int {
	if !correct {
		return 0
	}
	return e.Award(difficulty, priorStreak)
}
