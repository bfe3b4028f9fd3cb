package apperrors

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrBalanceInsufficient = errors.New("insufficient balance")

	ErrBetInvalid = errors.New("bet is not a valid wager amount")

	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrWithdrawalNotPending = errors.New("withdrawal is not pending")
	ErrWithdrawalNotAllowed = errors.New("withdrawal action not allowed")
	ErrWithdrawalTooSmall   = errors.New("withdrawal amount is below the minimum")

	ErrNothingToConvert = errors.New("nothing to convert")
	ErrAmountTooSmall   = errors.New("amount too small to convert")
)

// SpinsDisabledError is returned while the global spin kill-switch is
// engaged. Reason is the admin-provided text.
type SpinsDisabledError struct {
	Reason string
}

func (e *SpinsDisabledError) Error() string {
	if e.Reason == "" {
		return "spins are disabled"
	}
	return fmt.Sprintf("spins are disabled: %s", e.Reason)
}

// SpinQuotaError is returned when the daily spin limit is reached.
// ResetsAt is the next UTC midnight, when the quota resets.
type SpinQuotaError struct {
	Limit      int
	SpinsToday int
	ResetsAt   time.Time
}

func (e *SpinQuotaError) Error() string {
	return fmt.Sprintf("daily spin limit of %d reached", e.Limit)
}

// WithdrawalCapError is returned when a request or verification would
// push the rolling 24-hour total over the cap. Remaining is the current
// headroom, NextAllowedAt the earliest moment headroom grows back.
type WithdrawalCapError struct {
	Cap           decimal.Decimal
	Remaining     decimal.Decimal
	NextAllowedAt *time.Time
}

func (e *WithdrawalCapError) Error() string {
	return fmt.Sprintf("withdrawal cap of %s reached, remaining %s", e.Cap.String(), e.Remaining.String())
}
