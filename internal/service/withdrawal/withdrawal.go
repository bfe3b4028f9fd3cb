// Package withdrawal implements the rolling-cap accounting around
// paying out currency balance. Funds are soft-reserved while a request
// is pending (counted against the cap, not moved) and debited only when
// an admin verifies the request.
package withdrawal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/notify"
	"github.com/almaz-dev/eduspin/internal/repository"
)

// Defaults, in currency units
var (
	DefaultCap       = decimal.NewFromInt(100)
	DefaultMinAmount = decimal.NewFromInt(30)
)

const DefaultWindow = 24 * time.Hour

type Config struct {
	// Combined pending+verified amount allowed per rolling window
	Cap decimal.Decimal

	// Smallest withdrawal a user may request
	MinAmount decimal.Decimal

	// Rolling window measured backwards from now
	Window time.Duration

	// Clock override for tests
	Now func() time.Time
}

type Service struct {
	cfg      Config
	storage  repository.Storage
	notifier notify.Broadcaster
}

func NewService(cfg Config, storage repository.Storage, notifier notify.Broadcaster) *Service {
	if cfg.Cap.IsZero() {
		cfg.Cap = DefaultCap
	}
	if cfg.MinAmount.IsZero() {
		cfg.MinAmount = DefaultMinAmount
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		cfg:      cfg,
		storage:  storage,
		notifier: notifier,
	}
}

// Summary computes the user's position against the cap. The window is
// recomputed from "now" on every call; nothing is cached or bucketed.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (models.WithdrawalSummary, error) {
	return s.summary(ctx, s.storage, userID)
}

func (s *Service) summary(ctx context.Context, store repository.Storage, userID uuid.UUID) (models.WithdrawalSummary, error) {
	var sum models.WithdrawalSummary

	now := s.cfg.Now()
	since := now.Add(-s.cfg.Window)

	verified, err := store.Withdrawal().SumVerifiedSince(ctx, userID, since)
	if err != nil {
		return sum, fmt.Errorf("can't sum verified withdrawals. Err: %w", err)
	}
	pending, err := store.Withdrawal().SumPendingSince(ctx, userID, since)
	if err != nil {
		return sum, fmt.Errorf("can't sum pending withdrawals. Err: %w", err)
	}

	sum = models.WithdrawalSummary{
		Verified24h:               verified,
		Pending24h:                pending,
		RemainingVerified:         clampZero(s.cfg.Cap.Sub(verified)),
		RemainingIncludingPending: clampZero(s.cfg.Cap.Sub(verified.Add(pending))),
		Cap:                       s.cfg.Cap,
	}

	if verified.Add(pending).GreaterThanOrEqual(s.cfg.Cap) {
		earliest, err := store.Withdrawal().EarliestContributing(ctx, userID, since)
		if err != nil {
			return sum, fmt.Errorf("can't find earliest withdrawal. Err: %w", err)
		}
		if earliest != nil {
			next := earliest.Add(s.cfg.Window)
			sum.NextAllowedAt = &next
		}
	}

	return sum, nil
}

// Request creates a pending withdrawal. No amount means "everything",
// and an explicit amount may not exceed the currency balance. Admins
// skip the cap check here; verification enforces it for everyone.
func (s *Service) Request(ctx context.Context, user models.User, amount *decimal.Decimal, contact string) (models.Withdrawal, models.WithdrawalSummary, error) {
	var w models.Withdrawal
	var sum models.WithdrawalSummary

	if amount != nil && (amount.IsNegative() || amount.IsZero()) {
		return w, sum, apperrors.ErrWithdrawalTooSmall
	}

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		// Lock the balance row so two concurrent requests of the same
		// user agree on what "full balance" means
		balance, err := store.Balance().GetBalance(ctx, user.ID, true)
		if err != nil {
			return err
		}

		requested := balance.Currency
		if amount != nil {
			if amount.GreaterThan(balance.Currency) {
				return apperrors.ErrBalanceInsufficient
			}
			requested = *amount
		}

		if requested.LessThan(s.cfg.MinAmount) {
			return apperrors.ErrWithdrawalTooSmall
		}

		current, err := s.summary(ctx, store, user.ID)
		if err != nil {
			return err
		}
		if !user.IsAdmin() && requested.GreaterThan(current.RemainingIncludingPending) {
			return &apperrors.WithdrawalCapError{
				Cap:           s.cfg.Cap,
				Remaining:     current.RemainingIncludingPending,
				NextAllowedAt: current.NextAllowedAt,
			}
		}

		w, err = store.Withdrawal().CreateWithdrawal(ctx, models.Withdrawal{
			ID:          uuid.New(),
			UserID:      user.ID,
			Amount:      requested,
			Contact:     contact,
			Status:      models.WithdrawalStatusPending,
			RequestedAt: s.cfg.Now(),
		})
		if err != nil {
			return err
		}

		sum, err = s.summary(ctx, store, user.ID)
		return err
	})
	if err != nil {
		return models.Withdrawal{}, models.WithdrawalSummary{}, err
	}

	s.notifier.Broadcast(ctx, notify.EventWithdrawalRequested, map[string]any{
		"withdrawalId": w.ID,
		"userId":       w.UserID,
		"amount":       w.Amount,
	})

	return w, sum, nil
}

// Verify transitions a pending withdrawal to verified and debits the
// owner's currency balance. The cap is re-checked against the verified
// ledger, and the status transition plus the debit commit together.
func (s *Service) Verify(ctx context.Context, admin models.User, withdrawalID uuid.UUID) (models.Withdrawal, models.Balance, error) {
	var w models.Withdrawal
	var balance models.Balance

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		w, err = store.Withdrawal().GetWithdrawal(ctx, withdrawalID, true)
		if err != nil {
			return err
		}
		if !w.IsPending() {
			return apperrors.ErrWithdrawalNotPending
		}

		// The balance lock serializes same-user verifications: the
		// verified sum below is only valid while this lock is held
		balance, err = store.Balance().GetBalance(ctx, w.UserID, true)
		if err != nil {
			return err
		}

		now := s.cfg.Now()
		since := now.Add(-s.cfg.Window)

		// The record under verification is still pending, so it is not
		// part of this sum
		verified, err := store.Withdrawal().SumVerifiedSince(ctx, w.UserID, since)
		if err != nil {
			return err
		}
		if verified.Add(w.Amount).GreaterThan(s.cfg.Cap) {
			// Only the verified ledger blocks here, so the retry hint
			// comes from it directly. The pending reservation of this
			// record may already be outside the window.
			var nextAllowedAt *time.Time
			earliest, err := store.Withdrawal().EarliestVerifiedSince(ctx, w.UserID, since)
			if err != nil {
				return err
			}
			if earliest != nil {
				next := earliest.Add(s.cfg.Window)
				nextAllowedAt = &next
			}
			return &apperrors.WithdrawalCapError{
				Cap:           s.cfg.Cap,
				Remaining:     clampZero(s.cfg.Cap.Sub(verified)),
				NextAllowedAt: nextAllowedAt,
			}
		}

		debit := decimal.Min(balance.Currency, w.Amount)
		if debit.IsPositive() {
			balance, err = store.Balance().AddCurrency(ctx, w.UserID, debit.Neg())
			if err != nil {
				return err
			}
		}

		w, err = store.Withdrawal().SetVerified(ctx, withdrawalID, now, admin.ID)
		return err
	})
	if err != nil {
		return models.Withdrawal{}, models.Balance{}, err
	}

	s.notifier.Broadcast(ctx, notify.EventWithdrawalVerified, map[string]any{
		"withdrawalId": w.ID,
		"userId":       w.UserID,
		"amount":       w.Amount,
	})

	return w, balance, nil
}

// Reject transitions a pending withdrawal to rejected. Funds were never
// moved, so there is no balance effect.
func (s *Service) Reject(ctx context.Context, admin models.User, withdrawalID uuid.UUID, note string) (models.Withdrawal, error) {
	var w models.Withdrawal

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		w, err = store.Withdrawal().GetWithdrawal(ctx, withdrawalID, true)
		if err != nil {
			return err
		}
		if !w.IsPending() {
			return apperrors.ErrWithdrawalNotPending
		}

		w, err = store.Withdrawal().SetRejected(ctx, withdrawalID, note)
		return err
	})
	if err != nil {
		return models.Withdrawal{}, err
	}

	s.notifier.Broadcast(ctx, notify.EventWithdrawalRejected, map[string]any{
		"withdrawalId": w.ID,
		"userId":       w.UserID,
		"note":         note,
	})

	return w, nil
}

// Delete removes a withdrawal record: owners may delete their own while
// still pending, admins may delete anything.
func (s *Service) Delete(ctx context.Context, actor models.User, withdrawalID uuid.UUID) (models.WithdrawalSummary, error) {
	var sum models.WithdrawalSummary

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		w, err := store.Withdrawal().GetWithdrawal(ctx, withdrawalID, true)
		if err != nil {
			return err
		}

		if !actor.IsAdmin() {
			if w.UserID != actor.ID {
				return apperrors.ErrWithdrawalNotAllowed
			}
			if !w.IsPending() {
				return apperrors.ErrWithdrawalNotPending
			}
		}

		if err := store.Withdrawal().DeleteWithdrawal(ctx, withdrawalID); err != nil {
			return err
		}

		sum, err = s.summary(ctx, store, w.UserID)
		return err
	})
	if err != nil {
		return models.WithdrawalSummary{}, err
	}

	return sum, nil
}

// List returns the actor's own withdrawals.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	return s.storage.Withdrawal().ListForUser(ctx, userID)
}

// AdminItem is a withdrawal together with the owner's rolling-window
// usage, so the admin UI can judge a verification at a glance.
type AdminItem struct {
	Withdrawal  models.Withdrawal
	Verified24h decimal.Decimal
	Pending24h  decimal.Decimal
}

// ListAll returns every withdrawal with per-user window stats. Admin only.
func (s *Service) ListAll(ctx context.Context) ([]AdminItem, error) {
	ws, err := s.storage.Withdrawal().ListAll(ctx)
	if err != nil {
		return nil, err
	}

	since := s.cfg.Now().Add(-s.cfg.Window)

	type stats struct {
		verified decimal.Decimal
		pending  decimal.Decimal
	}
	perUser := make(map[uuid.UUID]stats)

	items := make([]AdminItem, 0, len(ws))
	for _, w := range ws {
		st, ok := perUser[w.UserID]
		if !ok {
			verified, err := s.storage.Withdrawal().SumVerifiedSince(ctx, w.UserID, since)
			if err != nil {
				return nil, err
			}
			pending, err := s.storage.Withdrawal().SumPendingSince(ctx, w.UserID, since)
			if err != nil {
				return nil, err
			}
			st = stats{verified: verified, pending: pending}
			perUser[w.UserID] = st
		}

		items = append(items, AdminItem{
			Withdrawal:  w,
			Verified24h: st.verified,
			Pending24h:  st.pending,
		})
	}

	return items, nil
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
