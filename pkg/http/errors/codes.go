package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"
	ErrCodeInvalidCredentials     = "invalid_credentials"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeUsernameTaken = "username_taken"

	// Quiz errors
	ErrCodeRateLimited            = "rate_limited"
	ErrCodeInvalidQuestion        = "invalid_question"
	ErrCodeVersionConflict        = "version_conflict"
	ErrCodeConcurrentModification = "concurrent_modification"
	ErrCodeRequestInFlight        = "request_in_flight"
	ErrCodeStateNotFound          = "state_not_found"
	ErrCodeQuestionPoolExhausted  = "question_pool_exhausted"

	// Business logic errors
	ErrCodeRegistrationFailed = "registration_failed"
	ErrCodeLoginFailed        = "login_failed"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeUnknownMetric          = "unknown_leaderboard_metric"

	// WebSocket errors
	ErrCodeConnectionError = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
