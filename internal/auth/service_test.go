package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/brainbolt/internal/auth/jwt"
	"github.com/gokatarajesh/brainbolt/internal/state"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user User) (User, error) {
	args := m.Called(ctx, user)
	if fn, ok := args.Get(0).(func(context.Context, User) User); ok {
		return fn(ctx, user), args.Error(1)
	}
	return args.Get(0).(User), args.Error(1)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(User), args.Error(1)
}

type mockStates struct {
	mock.Mock
}

func (m *mockStates) GetOrInit(ctx context.Context, userID uuid.UUID) (*state.UserState, error) {
	args := m.Called(ctx, userID)
	st, _ := args.Get(0).(*state.UserState)
	return st, args.Error(1)
}

type mockBoards struct {
	mock.Mock
}

func (m *mockBoards) InitUser(ctx context.Context, userID uuid.UUID, username string) error {
	return m.Called(ctx, userID, username).Error(0)
}

func (m *mockBoards) SetUsername(ctx context.Context, userID uuid.UUID, username string) error {
	return m.Called(ctx, userID, username).Error(0)
}

func newTestService(repo *mockUserRepo, states *mockStates, boards *mockBoards) (*Service, *jwt.Manager) {
	mgr := jwt.NewManager(jwt.TokenConfig{Secret: []byte("test-secret")})
	return NewService(repo, mgr, states, boards, zerolog.Nop()), mgr
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("testpassword123")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.True(t, len(hash) > 20) // bcrypt hashes are long
}

func TestVerifyPassword(t *testing.T) {
	hash, _ := HashPassword("testpassword123")

	err := VerifyPassword(hash, "testpassword123")
	assert.NoError(t, err)

	err = VerifyPassword(hash, "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestPasswordTooShort(t *testing.T) {
	_, err := HashPassword("abc")
	assert.Equal(t, ErrPasswordTooShort, err)
}

func TestService_Register(t *testing.T) {
	repo := new(mockUserRepo)
	states := new(mockStates)
	boards := new(mockBoards)
	svc, mgr := newTestService(repo, states, boards)

	repo.On("GetByUsername", mock.Anything, "alice").Return(User{}, ErrUserNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u User) bool {
		return u.Username == "alice" && u.ID != uuid.Nil && VerifyPassword(u.PasswordHash, "pass") == nil
	})).Return(func(_ context.Context, u User) User { return u }, nil)
	states.On("GetOrInit", mock.Anything, mock.Anything).Return(&state.UserState{CurrentDifficulty: 5}, nil)
	boards.On("InitUser", mock.Anything, mock.Anything, "alice").Return(nil)

	result, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Password: "pass"})
	require.NoError(t, err)
	assert.Equal(t, "alice", result.User.Username)

	claims, err := mgr.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)

	repo.AssertExpectations(t)
	states.AssertCalled(t, "GetOrInit", mock.Anything, result.User.ID)
	boards.AssertCalled(t, "InitUser", mock.Anything, result.User.ID, "alice")
}

func TestService_RegisterRejectsTakenUsername(t *testing.T) {
	repo := new(mockUserRepo)
	svc, _ := newTestService(repo, new(mockStates), new(mockBoards))
	repo.On("GetByUsername", mock.Anything, "alice").Return(User{ID: uuid.New(), Username: "alice"}, nil)

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Password: "pass"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_RegisterRejectsBadUsername(t *testing.T) {
	svc, _ := newTestService(new(mockUserRepo), new(mockStates), new(mockBoards))

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "  ab ", Password: "pass"})
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = svc.Register(context.Background(), RegisterRequest{Username: strings.Repeat("x", 21), Password: "pass"})
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestService_Login(t *testing.T) {
	repo := new(mockUserRepo)
	boards := new(mockBoards)
	svc, _ := newTestService(repo, new(mockStates), boards)

	hash, err := HashPassword("secret")
	require.NoError(t, err)
	user := User{ID: uuid.New(), Username: "bob", PasswordHash: hash}
	repo.On("GetByUsername", mock.Anything, "bob").Return(user, nil)
	boards.On("SetUsername", mock.Anything, user.ID, "bob").Return(nil)

	result, err := svc.Login(context.Background(), LoginRequest{Username: "bob", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	boards.AssertExpectations(t)

	_, err = svc.Login(context.Background(), LoginRequest{Username: "bob", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LoginUnknownUser(t *testing.T) {
	repo := new(mockUserRepo)
	svc, _ := newTestService(repo, new(mockStates), new(mockBoards))
	repo.On("GetByUsername", mock.Anything, "ghost").Return(User{}, ErrUserNotFound)

	_, err := svc.Login(context.Background(), LoginRequest{Username: "ghost", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRequireAuth(t *testing.T) {
	mgr := jwt.NewManager(jwt.TokenConfig{Secret: []byte("test-secret")})
	userID := uuid.New()
	token, err := mgr.GenerateToken(userID, "dave")
	require.NoError(t, err)

	var seen uuid.UUID
	handler := AuthMiddleware(mgr, zerolog.Nop())(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID, seen)
}

func TestRegisterHandlerValidation(t *testing.T) {
	svc, _ := newTestService(new(mockUserRepo), new(mockStates), new(mockBoards))
	h := NewHTTPHandlers(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(`{"username":"alice"}`))
	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"missing_field"`)
	assert.Contains(t, rec.Body.String(), `"field":"password"`)
}
