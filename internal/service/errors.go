package service

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited      = errors.New("daily token limit reached")
	ErrBadBearer        = errors.New("bearer credential invalid or expired")
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenAlreadyUsed = errors.New("token already used")
	ErrTokenExpired     = errors.New("token expired")
	ErrAccountNotFound  = errors.New("account not found")
	ErrNotAdmin         = errors.New("not an admin")
	ErrNoActiveSession  = errors.New("no active admin session")
	ErrUnknownAction    = errors.New("unknown admin action")
	ErrInvalidAccountID = errors.New("invalid account id")
	ErrEmptyMessage     = errors.New("message is empty")
)

// Redemption failure reasons, in check order.
const (
	ReasonBadBearer   = "bad_bearer"
	ReasonNotFound    = "not_found"
	ReasonAlreadyUsed = "already_used"
	ReasonExpired     = "expired"
)

// RateLimitError is returned when an account has used its daily quota.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	Limit int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (%d per 24h)", ErrRateLimited, e.Limit)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// FailureReason maps a redemption error to its reason code. It returns ""
// for errors that are not redemption failures.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrBadBearer):
		return ReasonBadBearer
	case errors.Is(err, ErrTokenNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrTokenAlreadyUsed):
		return ReasonAlreadyUsed
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired
	}
	return ""
}
