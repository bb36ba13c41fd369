package auth

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/brainbolt/pkg/http/errors"
	"github.com/gokatarajesh/brainbolt/pkg/http/request"
)

// HTTPHandlers provides REST endpoints for authentication.
type HTTPHandlers struct {
	authSvc *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints.
func NewHTTPHandlers(authSvc *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		authSvc: authSvc,
		logger:  logger.With().Str("component", "auth_http").Logger(),
	}
}

// Register handles POST /v1/auth/register
func (h *HTTPHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.authSvc.Register(r.Context(), req)
	switch {
	case err == nil:
		httperrors.RespondJSON(w, http.StatusCreated, result)
	case errors.Is(err, ErrUsernameTaken):
		httperrors.RespondError(w, http.StatusConflict, httperrors.ErrCodeUsernameTaken, err.Error())
	case errors.Is(err, ErrInvalidUsername):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "username")
	case errors.Is(err, ErrPasswordTooShort):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "password")
	default:
		h.logger.Error().Err(err).Msg("registration failed")
		httperrors.RespondInternalError(w, "Registration failed")
	}
}

// Login handles POST /v1/auth/login
func (h *HTTPHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.authSvc.Login(r.Context(), req)
	switch {
	case err == nil:
		httperrors.RespondJSON(w, http.StatusOK, result)
	case errors.Is(err, ErrInvalidCredentials):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidCredentials, "Invalid credentials")
	default:
		h.logger.Error().Err(err).Msg("login failed")
		httperrors.RespondInternalError(w, "Login failed")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := request.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}
	var fe *request.FieldError
	if errors.As(err, &fe) {
		code := httperrors.ErrCodeValidationFailed
		if fe.Missing() {
			code = httperrors.ErrCodeMissingField
		}
		httperrors.RespondValidationError(w, code, fe.Error(), fe.Field)
		return false
	}
	httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
	return false
}
