package models

import (
	"time"

	"github.com/google/uuid"
)

// Spin is an immutable log entry of one completed wheel spin.
// Records are only ever appended; the daily quota is counted from them.
type Spin struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	Bet       int64
	Outcome   int64
}

func (s Spin) Delta() int64 {
	return s.Outcome - s.Bet
}

// SpinControl is the global spin kill-switch.
// Stored as a true single-row record, so the most recent write is
// the only authoritative state.
type SpinControl struct {
	Disabled  bool
	Reason    string
	UpdatedAt time.Time
	UpdatedBy *uuid.UUID
}

// SpinResult is everything returned to the caller after a completed spin.
// Tiers, weights and percents expose the full distribution the outcome
// was drawn from, so a client can render it honestly.
type SpinResult struct {
	SpinID   uuid.UUID
	Bet      int64
	Outcome  int64
	Delta    int64
	Points   int64
	Tiers    []int64
	Weights  []float64
	Percents []float64
}

// SpinStatus reports quota usage for the current UTC day.
type SpinStatus struct {
	SpinsToday     int
	SpinsRemaining int
	DailyLimit     int
}
