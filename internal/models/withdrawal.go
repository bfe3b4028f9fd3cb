package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending  = "pending"
	WithdrawalStatusVerified = "verified"
	WithdrawalStatusRejected = "rejected"
)

// Withdrawal is a request to pay out currency balance.
// Created pending; transitions exactly once to verified (with timestamp
// and verifying admin) or rejected (with note). Funds are not moved at
// request time: a pending amount only reserves headroom under the
// rolling cap, the debit happens at verification.
type Withdrawal struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Contact     string
	Status      string
	RequestedAt time.Time
	VerifiedAt  *time.Time
	VerifiedBy  *uuid.UUID
	Note        *string
}

func (w Withdrawal) IsPending() bool {
	return w.Status == WithdrawalStatusPending
}

// WithdrawalSummary describes a user's position against the rolling
// 24-hour withdrawal cap at the moment it was computed.
type WithdrawalSummary struct {
	Verified24h               decimal.Decimal
	Pending24h                decimal.Decimal
	RemainingVerified         decimal.Decimal
	RemainingIncludingPending decimal.Decimal
	Cap                       decimal.Decimal
	NextAllowedAt             *time.Time
}
