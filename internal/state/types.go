package state

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// UserState is the per-user quiz record. It is only ever changed through
// CompareAndUpdate, which bumps StateVersion by exactly one.
type UserState struct {
	UserID            uuid.UUID `json:"userId"`
	CurrentDifficulty int       `json:"currentDifficulty"`
	Momentum          float64   `json:"momentum"`
	Streak            int       `json:"streak"`
	MaxStreak         int       `json:"maxStreak"`
	TotalScore        int       `json:"totalScore"`
	TotalAnswers      int       `json:"totalAnswers"`
	CorrectAnswers    int       `json:"correctAnswers"`
	LastQuestionID    string    `json:"lastQuestionId,omitempty"` // empty when no question is outstanding
	StateVersion      int64     `json:"stateVersion"`
}

// New returns the initial state for a user.
func New(userID uuid.UUID, defaultDifficulty int) UserState {
	return UserState{
		UserID:            userID,
		CurrentDifficulty: defaultDifficulty,
	}
}

// Accuracy returns correct/total rounded to three decimals, 0 with no answers.
func (s UserState) Accuracy() float64 {
	if s.TotalAnswers == 0 {
		return 0
	}
	ratio := float64(s.CorrectAnswers) / float64(s.TotalAnswers)
	return math.Round(ratio*1000) / 1000
}

// Mutator derives the next state from the committed one. It must not change
// UserID or StateVersion; the store owns both.
type Mutator func(current UserState) UserState

// UpdateResult reports the outcome of a compare-and-swap.
type UpdateResult struct {
	Applied bool
	State   *UserState
}

// Store is the optimistic-concurrency contract every backend satisfies.
type Store interface {
	// Get returns nil, nil when the user has no state yet.
	Get(ctx context.Context, userID uuid.UUID) (*UserState, error)
	// GetOrInit returns the stored state, creating the default record if absent.
	GetOrInit(ctx context.Context, userID uuid.UUID) (*UserState, error)
	// CompareAndUpdate applies mutate only if the stored version still equals
	// expectedVersion at commit time. A lost race yields Applied=false and no write.
	CompareAndUpdate(ctx context.Context, userID uuid.UUID, expectedVersion int64, mutate Mutator) (UpdateResult, error)
}

// apply runs mutate and re-pins the fields the store controls.
func apply(current UserState, mutate Mutator) UserState {
	next := mutate(current)
	next.UserID = current.UserID
	next.StateVersion = current.StateVersion + 1
	return next
}
