package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAuctionNotFound      = errors.New("auction_not_found")
	ErrTerritoryNotFound    = errors.New("territory_not_found")
	ErrAuctionNotActive     = errors.New("auction_not_active")
	ErrAuctionAlreadyActive = errors.New("auction_already_active")
	ErrIllegalTransition    = errors.New("illegal_sovereignty_transition")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrTransientIO          = errors.New("transient_io")
	ErrWebhookNotFound      = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrorKind is the coarse failure category callers branch on.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindInvalidState
	KindValidationFailed
	KindUnauthorized
	KindTransientIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindValidationFailed:
		return "validation_failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindTransientIO:
		return "transient_io"
	}
	return "unknown"
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return KindValidationFailed
	}
	switch {
	case errors.Is(err, ErrAuctionNotFound),
		errors.Is(err, ErrTerritoryNotFound),
		errors.Is(err, ErrWebhookNotFound):
		return KindNotFound
	case errors.Is(err, ErrAuctionNotActive),
		errors.Is(err, ErrAuctionAlreadyActive),
		errors.Is(err, ErrIllegalTransition):
		return KindInvalidState
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrTransientIO):
		return KindTransientIO
	}
	return KindUnknown
}

// Message returns the user-facing reason for err.
func Message(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	switch {
	case errors.Is(err, ErrAuctionAlreadyActive):
		return "Auction already in progress"
	case errors.Is(err, ErrAuctionNotActive):
		return "Auction is not active"
	case errors.Is(err, ErrAuctionNotFound):
		return "Auction not found"
	case errors.Is(err, ErrTerritoryNotFound):
		return "Territory not found"
	case errors.Is(err, ErrIllegalTransition):
		return "Territory cannot change state right now"
	case errors.Is(err, ErrUnauthorized):
		return "Authentication required"
	case errors.Is(err, ErrTransientIO):
		return "Storage is temporarily unavailable, please retry"
	case errors.Is(err, ErrWebhookNotFound):
		return "Webhook not found"
	}
	return "An unexpected error occurred"
}
