package services

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrExchangeInProgress = errors.New("another message is still being answered")
	ErrInsufficientFuel   = errors.New("not enough fuel")
	ErrInferenceFailed    = errors.New("companion could not reply")
	ErrAlreadyCheckedIn   = errors.New("already checked in today")
	ErrEmptyAnswer        = errors.New("answer is required")
	ErrPlanNotAvailable   = errors.New("package not available on current plan")
	ErrPaymentsDisabled   = errors.New("payments are not configured")
	ErrInvalidProfile     = errors.New("invalid profile")
)
