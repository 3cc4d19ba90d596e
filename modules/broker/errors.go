package broker

import "errors"

// Error taxonomy for broker operations. Authentication errors are fatal
// to the connection attempt; everything else is reported to the
// originating session only and the connection stays alive.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("not authorized for this room")
	ErrValidation     = errors.New("invalid request")
	ErrPersistence    = errors.New("failed to persist message")
	ErrNotFound       = errors.New("room not found")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

// Wire codes carried on error events so clients can branch on the
// failure class instead of parsing text.
const (
	CodeAuthentication = "authentication_error"
	CodeAuthorization  = "authorization_error"
	CodeValidation     = "validation_error"
	CodePersistence    = "persistence_error"
	CodeNotFound       = "not_found"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal_error"
)

// errorCode maps a broker error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return CodeAuthentication
	case errors.Is(err, ErrAuthorization):
		return CodeAuthorization
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}
