package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/brainbolt/internal/adaptive"
	"github.com/gokatarajesh/brainbolt/internal/audit"
	"github.com/gokatarajesh/brainbolt/internal/leaderboard"
	"github.com/gokatarajesh/brainbolt/internal/question"
	"github.com/gokatarajesh/brainbolt/internal/scoring"
	"github.com/gokatarajesh/brainbolt/internal/state"
	"github.com/gokatarajesh/brainbolt/pkg/http/request"
)

// RateLimiter admits at most one answer per user per window.
type RateLimiter interface {
	TryAdmit(ctx context.Context, userID uuid.UUID) (bool, error)
}

// IdempotencyCache stores serialized answer responses per (user, key).
type IdempotencyCache interface {
	Lookup(ctx context.Context, userID uuid.UUID, key string) ([]byte, bool, error)
	Store(ctx context.Context, userID uuid.UUID, key string, response []byte) error
	Reserve(ctx context.Context, userID uuid.UUID, key string) (bool, error)
	Release(ctx context.Context, userID uuid.UUID, key string) error
	Await(ctx context.Context, userID uuid.UUID, key string, budget time.Duration) ([]byte, bool, error)
}

// Rankings is the slice of the leaderboard service used after a commit.
type Rankings interface {
	Record(ctx context.Context, userID uuid.UUID, totalScore, maxStreak int) error
	RankOf(ctx context.Context, metric string, userID uuid.UUID) (int, bool, error)
	Publish(ctx context.Context) error
}

// AuditLog accepts answer records without blocking.
type AuditLog interface {
	Append(entry audit.Entry) bool
}

// ServiceOptions configures the quiz service.
type ServiceOptions struct {
	DefaultDifficulty int
	// WaitBudget bounds how long a duplicate waits for an in-flight original.
	WaitBudget time.Duration
	// PostCommitTimeout bounds ranking and publish work after a commit.
	PostCommitTimeout time.Duration
}

// Service issues questions and applies answers to per-user state.
type Service struct {
	states   state.Store
	catalog  question.Catalog
	adaptive *adaptive.Engine
	scoring  *scoring.Engine
	limiter  RateLimiter
	idem     IdempotencyCache
	rankings Rankings
	audit    AuditLog
	opts     ServiceOptions
	pick     func(n int) int
	logger   zerolog.Logger
}

// NewService creates a quiz service with all dependencies.
func NewService(
	states state.Store,
	catalog question.Catalog,
	adaptiveEngine *adaptive.Engine,
	scoringEngine *scoring.Engine,
	limiter RateLimiter,
	idem IdempotencyCache,
	rankings Rankings,
	auditLog AuditLog,
	opts ServiceOptions,
	logger zerolog.Logger,
) *Service {
	if opts.DefaultDifficulty == 0 {
		opts.DefaultDifficulty = adaptiveEngine.Config().DefaultDifficulty
	}
	if opts.WaitBudget <= 0 {
		opts.WaitBudget = 2 * time.Second
	}
	if opts.PostCommitTimeout <= 0 {
		opts.PostCommitTimeout = 3 * time.Second
	}
	return &Service{
		states:   states,
		catalog:  catalog,
		adaptive: adaptiveEngine,
		scoring:  scoringEngine,
		limiter:  limiter,
		idem:     idem,
		rankings: rankings,
		audit:    auditLog,
		opts:     opts,
		pick:     rand.IntN,
		logger:   logger.With().Str("component", "quiz_service").Logger(),
	}
}

// Next picks a question at the user's current difficulty and records it as
// the outstanding question.
func (s *Service) Next(ctx context.Context, userID uuid.UUID) (*NextQuestionResponse, error) {
	st, err := s.states.GetOrInit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	pool, err := s.poolFor(ctx, st.CurrentDifficulty)
	if err != nil {
		return nil, err
	}
	q := s.choose(pool, st.LastQuestionID)

	res, err := s.states.CompareAndUpdate(ctx, userID, st.StateVersion, func(cur state.UserState) state.UserState {
		cur.LastQuestionID = q.ID
		return cur
	})
	if err != nil {
		return nil, fmt.Errorf("record issued question: %w", err)
	}
	if !res.Applied {
		return nil, ErrConcurrentModification
	}
	questionsIssued.Inc()

	next := res.State
	return &NextQuestionResponse{
		QuestionID:    q.ID,
		Difficulty:    q.Difficulty,
		Prompt:        q.Prompt,
		Choices:       q.Choices,
		StateVersion:  next.StateVersion,
		CurrentScore:  next.TotalScore,
		CurrentStreak: next.Streak,
		MaxStreak:     next.MaxStreak,
	}, nil
}

func (s *Service) poolFor(ctx context.Context, difficulty int) ([]question.Question, error) {
	pool, err := s.catalog.AtDifficulty(ctx, difficulty)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(pool) > 0 {
		return pool, nil
	}
	if difficulty != s.opts.DefaultDifficulty {
		s.logger.Warn().Int("difficulty", difficulty).Msg("no questions at difficulty, falling back to default")
		pool, err = s.catalog.AtDifficulty(ctx, s.opts.DefaultDifficulty)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
	}
	if len(pool) == 0 {
		return nil, ErrQuestionPoolExhausted
	}
	return pool, nil
}

// choose returns a random question, skipping lastID when another exists.
func (s *Service) choose(pool []question.Question, lastID string) question.Question {
	candidates := pool
	if lastID != "" && len(pool) > 1 {
		candidates = make([]question.Question, 0, len(pool))
		for _, q := range pool {
			if q.ID != lastID {
				candidates = append(candidates, q)
			}
		}
		if len(candidates) == 0 {
			candidates = pool
		}
	}
	return candidates[s.pick(len(candidates))]
}

// SubmitAnswer grades an answer and commits the resulting state exactly once
// per idempotency key.
func (s *Service) SubmitAnswer(ctx context.Context, userID uuid.UUID, req AnswerRequest) (out *AnswerOutcome, err error) {
	start := time.Now()
	defer func() {
		answerOutcomes.WithLabelValues(outcomeLabel(err, out != nil && out.Replayed)).Inc()
		answerLatency.Observe(time.Since(start).Seconds())
	}()

	if err := request.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if out, claimed, err := s.claim(ctx, userID, req.IdempotencyKey); err != nil || !claimed {
		return out, err
	}
	stored := false
	defer func() {
		if stored {
			return
		}
		if rerr := s.idem.Release(context.WithoutCancel(ctx), userID, req.IdempotencyKey); rerr != nil {
			s.logger.Warn().Err(rerr).Str("user_id", userID.String()).Msg("failed to release idempotency reservation")
		}
	}()

	admitted, err := s.limiter.TryAdmit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	if !admitted {
		return nil, ErrRateLimited
	}

	current, err := s.states.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if current == nil {
		s.logger.Error().Str("user_id", userID.String()).Msg("authenticated user has no quiz state")
		return nil, ErrStateNotFound
	}
	if current.LastQuestionID != req.QuestionID {
		return nil, ErrInvalidQuestion
	}
	q, err := s.catalog.ByID(ctx, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if q == nil {
		return nil, ErrInvalidQuestion
	}

	if current.StateVersion != *req.StateVersion {
		return nil, &VersionConflictError{Current: current.StateVersion}
	}

	correct := *req.AnswerIndex == q.CorrectIndex
	var delta, priorStreak int
	res, err := s.states.CompareAndUpdate(ctx, userID, *req.StateVersion, func(cur state.UserState) state.UserState {
		priorStreak = cur.Streak
		delta = s.scoring.Score(correct, q.Difficulty, priorStreak)
		cur.CurrentDifficulty, cur.Momentum = s.adaptive.Next(cur.CurrentDifficulty, cur.Momentum, correct)
		cur.TotalScore += delta
		cur.TotalAnswers++
		if correct {
			cur.CorrectAnswers++
			cur.Streak = priorStreak + 1
			cur.MaxStreak = max(cur.MaxStreak, cur.Streak)
		} else {
			cur.Streak = 0
		}
		cur.LastQuestionID = ""
		return cur
	})
	if err != nil {
		return nil, fmt.Errorf("commit answer: %w", err)
	}
	if !res.Applied {
		return nil, ErrConcurrentModification
	}
	next := res.State

	// The commit stands even if the caller has gone away.
	postCtx := context.WithoutCancel(ctx)
	scoreRank, streakRank := s.afterCommit(postCtx, userID, *next)
	s.audit.Append(audit.Entry{
		UserID:             userID,
		QuestionID:         q.ID,
		DifficultyAtAnswer: q.Difficulty,
		AnswerIndex:        *req.AnswerIndex,
		Correct:            correct,
		ScoreDelta:         delta,
		StreakAtAnswer:     priorStreak,
	})

	resp := AnswerResponse{
		Correct:               correct,
		CorrectIndex:          q.CorrectIndex,
		ScoreDelta:            delta,
		NewDifficulty:         next.CurrentDifficulty,
		NewStreak:             next.Streak,
		TotalScore:            next.TotalScore,
		StateVersion:          next.StateVersion,
		LeaderboardRankScore:  scoreRank,
		LeaderboardRankStreak: streakRank,
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode answer response: %w", err)
	}
	if err := s.idem.Store(postCtx, userID, req.IdempotencyKey, body); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to store idempotent response")
	} else {
		stored = true
	}

	s.logger.Debug().
		Str("user_id", userID.String()).
		Str("question_id", q.ID).
		Bool("correct", correct).
		Int("score_delta", delta).
		Int64("state_version", next.StateVersion).
		Msg("answer committed")

	return &AnswerOutcome{Response: resp, Body: body}, nil
}

// claim reserves the idempotency key for this request. When another request
// holds it, claim waits for that response; if the holder gives up without one,
// claim tries to reserve once more so the duplicate is processed on its own.
// The bool is false when the returned outcome or error is final.
func (s *Service) claim(ctx context.Context, userID uuid.UUID, key string) (*AnswerOutcome, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if body, ok, err := s.idem.Lookup(ctx, userID, key); err != nil {
			return nil, false, err
		} else if ok {
			out, err := replay(body)
			return out, false, err
		}

		reserved, err := s.idem.Reserve(ctx, userID, key)
		if err != nil {
			return nil, false, err
		}
		if reserved {
			// The original may have finished between Lookup and Reserve.
			body, ok, err := s.idem.Lookup(ctx, userID, key)
			if err != nil || ok {
				_ = s.idem.Release(context.WithoutCancel(ctx), userID, key)
			}
			if err != nil {
				return nil, false, err
			}
			if ok {
				out, err := replay(body)
				return out, false, err
			}
			return nil, true, nil
		}
		if attempt > 0 {
			break
		}

		body, ok, err := s.idem.Await(ctx, userID, key, s.opts.WaitBudget)
		if err != nil {
			return nil, false, err
		}
		if ok {
			out, err := replay(body)
			return out, false, err
		}
	}
	return nil, false, ErrRequestInFlight
}

func replay(body []byte) (*AnswerOutcome, error) {
	var resp AnswerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode cached response: %w", err)
	}
	return &AnswerOutcome{Response: resp, Body: body, Replayed: true}, nil
}

// afterCommit updates rankings and reads both ranks back. Failures are logged
// and reported as rank 0.
func (s *Service) afterCommit(ctx context.Context, userID uuid.UUID, st state.UserState) (scoreRank, streakRank int) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PostCommitTimeout)
	defer cancel()

	if err := s.rankings.Record(ctx, userID, st.TotalScore, st.MaxStreak); err != nil {
		postCommitFailures.WithLabelValues("record").Inc()
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to update leaderboards")
		return 0, 0
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scoreRank = s.rank(gctx, leaderboard.MetricScore, userID)
		return nil
	})
	g.Go(func() error {
		streakRank = s.rank(gctx, leaderboard.MetricStreak, userID)
		return nil
	})
	_ = g.Wait()

	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PostCommitTimeout)
		defer cancel()
		if err := s.rankings.Publish(pubCtx); err != nil {
			postCommitFailures.WithLabelValues("publish").Inc()
			s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
		}
	}()
	return scoreRank, streakRank
}

func (s *Service) rank(ctx context.Context, metric string, userID uuid.UUID) int {
	r, ok, err := s.rankings.RankOf(ctx, metric, userID)
	if err != nil {
		postCommitFailures.WithLabelValues("rank").Inc()
		s.logger.Warn().Err(err).Str("metric", metric).Msg("failed to read rank")
		return 0
	}
	if !ok {
		return 0
	}
	return r
}

// Metrics summarizes the user's state.
func (s *Service) Metrics(ctx context.Context, userID uuid.UUID) (*MetricsResponse, error) {
	st, err := s.states.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if st == nil {
		return nil, ErrStateNotFound
	}
	return &MetricsResponse{
		CurrentDifficulty: st.CurrentDifficulty,
		Momentum:          st.Momentum,
		Streak:            st.Streak,
		MaxStreak:         st.MaxStreak,
		TotalScore:        st.TotalScore,
		Accuracy:          st.Accuracy(),
		TotalAnswers:      st.TotalAnswers,
	}, nil
}
