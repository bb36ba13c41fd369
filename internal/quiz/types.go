package quiz

// AnswerRequest is the body of POST /v1/quiz/answer. Pointer fields tell an
// explicit zero apart from an absent field.
type AnswerRequest struct {
	QuestionID     string `json:"questionId" validate:"required"`
	AnswerIndex    *int   `json:"answerIndex" validate:"required"`
	StateVersion   *int64 `json:"stateVersion" validate:"required,gte=0"`
	IdempotencyKey string `json:"idempotencyKey" validate:"required,max=128"`
}

type AnswerResponse struct {
	Correct               bool  `json:"correct"`
	CorrectIndex          int   `json:"correctIndex"`
	ScoreDelta            int   `json:"scoreDelta"`
	NewDifficulty         int   `json:"newDifficulty"`
	NewStreak             int   `json:"newStreak"`
	TotalScore            int   `json:"totalScore"`
	StateVersion          int64 `json:"stateVersion"`
	LeaderboardRankScore  int   `json:"leaderboardRankScore"`
	LeaderboardRankStreak int   `json:"leaderboardRankStreak"`
}

// AnswerOutcome wraps the response with its serialized form. Replays return
// the stored bytes unchanged.
type AnswerOutcome struct {
	Response AnswerResponse
	Body     []byte
	Replayed bool
}

type NextQuestionResponse struct {
	QuestionID    string   `json:"questionId"`
	Difficulty    int      `json:"difficulty"`
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices"`
	StateVersion  int64    `json:"stateVersion"`
	CurrentScore  int      `json:"currentScore"`
	CurrentStreak int      `json:"currentStreak"`
	MaxStreak     int      `json:"maxStreak"`
}

type MetricsResponse struct {
	CurrentDifficulty int     `json:"currentDifficulty"`
	Momentum          float64 `json:"momentum"`
	Streak            int     `json:"streak"`
	MaxStreak         int     `json:"maxStreak"`
	TotalScore        int     `json:"totalScore"`
	Accuracy          float64 `json:"accuracy"`
	TotalAnswers      int     `json:"totalAnswers"`
}
