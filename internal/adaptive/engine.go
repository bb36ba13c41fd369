package adaptive

import (
	"fmt"
	"math"
)

// Config holds the momentum/hysteresis constants.
type Config struct {
	MinDifficulty     int
	MaxDifficulty     int
	DefaultDifficulty int
	CorrectGain       float64 // added to momentum on a correct answer
	WrongPenalty      float64 // added to momentum on a wrong answer (negative)
	Decay             float64 // applied to momentum before every answer
	Threshold         float64 // |momentum| beyond this changes difficulty
	Precision         int     // decimal places momentum is rounded to
}

// DefaultConfig returns production defaults.
//
// The penalty outweighs the gain so struggling users shift down sooner. The
// threshold sits above AlternatingBound (0.684 for these values) and below the
// momentum reached after three straight correct answers (0.813).
func DefaultConfig() Config {
	return Config{
		MinDifficulty:     1,
		MaxDifficulty:     10,
		DefaultDifficulty: 5,
		CorrectGain:       0.3,
		WrongPenalty:      -0.4,
		Decay:             0.9,
		Threshold:         0.7,
		Precision:         3,
	}
}

// AlternatingBound returns the largest momentum magnitude reachable by a
// strictly alternating correct/incorrect sequence that starts at zero.
//
// Post-answer momentum of such a sequence follows m' = d²m + (d·a + b) for the
// two orderings of (a, b), so it moves monotonically from its first value towards
// the fixed point (d·a + b)/(1 - d²).
func (c Config) AlternatingBound() float64 {
	d, g, p := c.Decay, c.CorrectGain, c.WrongPenalty
	denom := 1 - d*d
	candidates := []float64{
		g, p,
		d*g + p, d*p + g,
		(d*g + p) / denom, (d*p + g) / denom,
	}
	bound := 0.0
	for _, v := range candidates {
		bound = math.Max(bound, math.Abs(v))
	}
	return math.Min(bound, 1)
}

// Validate rejects constants that would let a user oscillate between two levels.
func (c Config) Validate() error {
	if c.MinDifficulty < 1 || c.MinDifficulty > c.MaxDifficulty {
		return fmt.Errorf("adaptive: invalid difficulty range [%d,%d]", c.MinDifficulty, c.MaxDifficulty)
	}
	if c.DefaultDifficulty < c.MinDifficulty || c.DefaultDifficulty > c.MaxDifficulty {
		return fmt.Errorf("adaptive: default difficulty %d outside range", c.DefaultDifficulty)
	}
	if c.Decay <= 0 || c.Decay >= 1 {
		return fmt.Errorf("adaptive: decay %.3f must be in (0,1)", c.Decay)
	}
	if c.CorrectGain <= 0 || c.WrongPenalty >= 0 {
		return fmt.Errorf("adaptive: gain must be positive and penalty negative")
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("adaptive: threshold %.3f must be in (0,1)", c.Threshold)
	}
	if bound := c.AlternatingBound(); bound >= c.Threshold {
		return fmt.Errorf("adaptive: threshold %.3f does not exceed alternating bound %.3f", c.Threshold, bound)
	}
	return nil
}

// Engine maps (difficulty, momentum, correctness) to the next difficulty and momentum.
type Engine struct {
	cfg   Config
	scale float64
}

// NewEngine validates cfg and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Precision <= 0 {
		cfg.Precision = 3
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, scale: math.Pow(10, float64(cfg.Precision))}, nil
}

// Config returns the engine constants.
func (e *Engine) Config() Config {
	return e.cfg
}

// Next applies one answer. Difficulty changes clamp at the configured bounds and
// reset momentum to zero.
func (e *Engine) Next(difficulty int, momentum float64, correct bool) (int, float64) {
	m := momentum * e.cfg.Decay
	if correct {
		m = math.Min(1.0, m+e.cfg.CorrectGain)
	} else {
		m = math.Max(-1.0, m+e.cfg.WrongPenalty)
	}

	switch {
	case m > e.cfg.Threshold:
		return e.clamp(difficulty + 1), 0
	case m < -e.cfg.Threshold:
		return e.clamp(difficulty - 1), 0
	default:
		return e.clamp(difficulty), math.Round(m*e.scale) / e.scale
	}
}

func (e *Engine) clamp(d int) int {
	if d < e.cfg.MinDifficulty {
		return e.cfg.MinDifficulty
	}
	if d > e.cfg.MaxDifficulty {
		return e.cfg.MaxDifficulty
	}
	return d
}
