package quiz

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/brainbolt/internal/auth"
	httperrors "github.com/gokatarajesh/brainbolt/pkg/http/errors"
	"github.com/gokatarajesh/brainbolt/pkg/http/request"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

func (m errorMapping) matches(err error) bool {
	return errors.Is(err, m.err)
}

// errorCodes maps domain errors to responses. Order matters only for
// wrapped chains, which never carry two of these.
var errorCodes = []errorMapping{
	{ErrInvalidInput, http.StatusBadRequest, httperrors.ErrCodeInvalidRequest},
	{ErrRateLimited, http.StatusTooManyRequests, httperrors.ErrCodeRateLimited},
	{ErrInvalidQuestion, http.StatusBadRequest, httperrors.ErrCodeInvalidQuestion},
	{ErrVersionConflict, http.StatusConflict, httperrors.ErrCodeVersionConflict},
	{ErrConcurrentModification, http.StatusConflict, httperrors.ErrCodeConcurrentModification},
	{ErrRequestInFlight, http.StatusConflict, httperrors.ErrCodeRequestInFlight},
	{ErrStateNotFound, http.StatusNotFound, httperrors.ErrCodeStateNotFound},
	{ErrQuestionPoolExhausted, http.StatusServiceUnavailable, httperrors.ErrCodeQuestionPoolExhausted},
}

// HTTPHandler exposes the quiz endpoints. All routes require authentication.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler creates quiz HTTP handlers.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "quiz_http").Logger(),
	}
}

// HandleNext handles GET /v1/quiz/next
func (h *HTTPHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	resp, err := h.svc.Next(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, resp)
}

// HandleAnswer handles POST /v1/quiz/answer
func (h *HTTPHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	var req AnswerRequest
	if err := request.DecodeAndValidate(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	out, err := h.svc.SubmitAnswer(r.Context(), userID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	// Replays must be byte-identical to the original response.
	w.Header().Set("Content-Type", "application/json")
	if out.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

// HandleMetrics handles GET /v1/quiz/metrics
func (h *HTTPHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	resp, err := h.svc.Metrics(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, err error) {
	var fe *request.FieldError
	if errors.As(err, &fe) {
		code := httperrors.ErrCodeValidationFailed
		if fe.Missing() {
			code = httperrors.ErrCodeMissingField
		}
		httperrors.RespondValidationError(w, code, fe.Error(), fe.Field)
		return
	}
	if errors.Is(err, request.ErrMalformed) {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	var conflict *VersionConflictError
	if errors.As(err, &conflict) {
		httperrors.RespondConflict(w, httperrors.ErrCodeVersionConflict, ErrVersionConflict.Error(), map[string]interface{}{
			"currentVersion": conflict.Current,
		})
		return
	}

	for _, m := range errorCodes {
		if m.matches(err) {
			httperrors.RespondError(w, m.status, m.code, m.err.Error())
			return
		}
	}

	h.logger.Error().Err(err).Msg("quiz request failed")
	httperrors.RespondInternalError(w, "Internal server error")
}
