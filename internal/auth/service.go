package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/brainbolt/internal/auth/jwt"
	"github.com/gokatarajesh/brainbolt/internal/state"
)

// StateInitializer creates the quiz record for a new account.
type StateInitializer interface {
	GetOrInit(ctx context.Context, userID uuid.UUID) (*state.UserState, error)
}

// BoardInitializer seeds leaderboard entries and the username mapping.
type BoardInitializer interface {
	InitUser(ctx context.Context, userID uuid.UUID, username string) error
	SetUsername(ctx context.Context, userID uuid.UUID, username string) error
}

// Service handles registration, login and token validation.
type Service struct {
	users    UserRepository
	tokenMgr *jwt.Manager
	states   StateInitializer
	boards   BoardInitializer
	logger   zerolog.Logger
}

// NewService creates an authentication service.
func NewService(users UserRepository, tokenMgr *jwt.Manager, states StateInitializer, boards BoardInitializer, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		tokenMgr: tokenMgr,
		states:   states,
		boards:   boards,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates an account, initializes its quiz state and board entries,
// and returns a bearer token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	username := strings.TrimSpace(req.Username)
	if n := utf8.RuneCountInString(username); n < 3 || n > 20 {
		return nil, ErrInvalidUsername
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.states.GetOrInit(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("init quiz state: %w", err)
	}
	if err := s.boards.InitUser(ctx, user.ID, user.Username); err != nil {
		return nil, fmt.Errorf("init leaderboard: %w", err)
	}

	token, err := s.tokenMgr.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("username", user.Username).Msg("user registered")

	return &AuthResult{Token: token, User: UserSummary{ID: user.ID, Username: user.Username}}, nil
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenMgr.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	// The mapping may be missing if Redis was flushed since registration.
	if err := s.boards.SetUsername(ctx, user.ID, user.Username); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to refresh username mapping")
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")

	return &AuthResult{Token: token, User: UserSummary{ID: user.ID, Username: user.Username}}, nil
}

// ValidateToken validates a bearer token.
func (s *Service) ValidateToken(token string) (*jwt.Claims, error) {
	return s.tokenMgr.ValidateToken(token)
}
