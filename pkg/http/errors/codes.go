package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound = "not_found"
	ErrCodeConflict = "conflict"

	// Session lifecycle errors
	ErrCodeSessionNotFound     = "session_not_found"
	ErrCodeSessionCreateFailed = "session_create_failed"
	ErrCodeJoinFailed          = "join_failed"
	ErrCodeNotHost             = "not_host"
	ErrCodeInsufficientPlayers = "insufficient_players"
	ErrCodeNoDeckAssigned      = "no_deck_assigned"
	ErrCodeStartFailed         = "start_failed"

	// Answer errors
	ErrCodeCardExpired     = "card_expired"
	ErrCodeTimeExpired     = "time_expired"
	ErrCodeAlreadyAnswered = "already_answered"
	ErrCodeSubmitFailed    = "submit_failed"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
