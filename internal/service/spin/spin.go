package spin

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/notify"
	"github.com/almaz-dev/eduspin/internal/repository"
)

const (
	DefaultDailyLimit      = 5
	DefaultBigWinThreshold = 1000
)

type Config struct {
	// Wager bounds, inclusive. Defaults 10 and 100.
	MinBet int64
	MaxBet int64

	// Completed spins allowed per UTC calendar day. Default 5.
	DailyLimit int

	// A result counts as a big win when outcome >= max(BigWinThreshold, bet*5)
	BigWinThreshold int64

	// Randomness source. Defaults to a time-seeded one; tests inject a
	// fixed seed.
	Rand *rand.Rand
}

type Service struct {
	cfg      Config
	storage  repository.Storage
	notifier notify.Broadcaster

	// rand.Rand is not safe for concurrent use
	mu  sync.Mutex
	rng *rand.Rand
}

func NewService(cfg Config, storage repository.Storage, notifier notify.Broadcaster) *Service {
	if cfg.MinBet == 0 {
		cfg.MinBet = DefaultMinBet
	}
	if cfg.MaxBet == 0 {
		cfg.MaxBet = DefaultMaxBet
	}
	if cfg.DailyLimit == 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}
	if cfg.BigWinThreshold == 0 {
		cfg.BigWinThreshold = DefaultBigWinThreshold
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Service{
		cfg:      cfg,
		storage:  storage,
		notifier: notifier,
		rng:      rng,
	}
}

// Spin runs one wager for the user: kill-switch, wager validation,
// daily quota and balance checks, then the weighted draw. The balance
// delta and the spin record are committed as one transaction; the
// balance row is locked first, so concurrent spins of the same user
// serialize instead of losing updates.
//
// rawBet arrives unvalidated from the transport layer.
func (s *Service) Spin(ctx context.Context, user models.User, rawBet float64) (models.SpinResult, error) {
	var result models.SpinResult

	control, err := s.storage.Spin().GetControl(ctx)
	if err != nil {
		return result, fmt.Errorf("can't read spin control. Err: %w", err)
	}
	if control.Disabled {
		return result, &apperrors.SpinsDisabledError{Reason: control.Reason}
	}

	bet, err := s.validateBet(rawBet)
	if err != nil {
		return result, err
	}

	dist := NewDistribution(bet)
	outcome := s.draw(dist)

	now := time.Now().UTC()

	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		// Lock the balance row first: it is the contention point for
		// everything that moves this user's points.
		balance, err := store.Balance().GetBalance(ctx, user.ID, true)
		if err != nil {
			return err
		}

		spinsToday, err := store.Spin().CountSince(ctx, user.ID, startOfDay(now))
		if err != nil {
			return err
		}
		if spinsToday >= s.cfg.DailyLimit {
			return &apperrors.SpinQuotaError{
				Limit:      s.cfg.DailyLimit,
				SpinsToday: spinsToday,
				ResetsAt:   startOfDay(now).Add(24 * time.Hour),
			}
		}

		if balance.Points < bet {
			return apperrors.ErrBalanceInsufficient
		}

		delta := outcome - bet
		balance, err = store.Balance().AddPoints(ctx, user.ID, delta)
		if err != nil {
			return err
		}

		spin, err := store.Spin().CreateSpin(ctx, models.Spin{
			ID:        uuid.New(),
			UserID:    user.ID,
			CreatedAt: now,
			Bet:       bet,
			Outcome:   outcome,
		})
		if err != nil {
			return err
		}

		result = models.SpinResult{
			SpinID:   spin.ID,
			Bet:      bet,
			Outcome:  outcome,
			Delta:    delta,
			Points:   balance.Points,
			Tiers:    dist.Tiers,
			Weights:  dist.Weights,
			Percents: dist.Percents,
		}
		return nil
	})
	if err != nil {
		return models.SpinResult{}, err
	}

	s.broadcast(ctx, user, result)

	return result, nil
}

// Status reports quota usage for the current UTC day.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (models.SpinStatus, error) {
	spinsToday, err := s.storage.Spin().CountSince(ctx, userID, startOfDay(time.Now().UTC()))
	if err != nil {
		return models.SpinStatus{}, fmt.Errorf("can't count today spins. Err: %w", err)
	}

	return models.SpinStatus{
		SpinsToday:     spinsToday,
		SpinsRemaining: max(0, s.cfg.DailyLimit-spinsToday),
		DailyLimit:     s.cfg.DailyLimit,
	}, nil
}

// History returns the user's most recent spins.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.Spin, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.storage.Spin().ListSpins(ctx, userID, limit)
}

// Control returns the current kill-switch state.
func (s *Service) Control(ctx context.Context) (models.SpinControl, error) {
	return s.storage.Spin().GetControl(ctx)
}

// SetControl engages or releases the kill-switch. Admin only; the
// caller is recorded on the control row.
func (s *Service) SetControl(ctx context.Context, admin models.User, disabled bool, reason string) (models.SpinControl, error) {
	control, err := s.storage.Spin().SetControl(ctx, models.SpinControl{
		Disabled:  disabled,
		Reason:    reason,
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: &admin.ID,
	})
	if err != nil {
		return control, fmt.Errorf("can't update spin control. Err: %w", err)
	}

	s.notifier.Broadcast(ctx, notify.EventSpinControlChanged, map[string]any{
		"disabled": control.Disabled,
		"reason":   control.Reason,
	})

	return control, nil
}

// Wagers must be finite integers within bounds; everything else is the
// caller's typo or mischief.
func (s *Service) validateBet(rawBet float64) (int64, error) {
	if math.IsNaN(rawBet) || math.IsInf(rawBet, 0) || rawBet != math.Trunc(rawBet) {
		return 0, apperrors.ErrBetInvalid
	}

	bet := int64(rawBet)
	if bet < s.cfg.MinBet || bet > s.cfg.MaxBet {
		return 0, apperrors.ErrBetInvalid
	}

	return bet, nil
}

func (s *Service) draw(dist Distribution) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, ok := Draw(s.rng, dist.Tiers, dist.Weights)
	if !ok {
		// Tier sets are never empty for a validated bet
		return 0
	}
	return outcome
}

func (s *Service) broadcast(ctx context.Context, user models.User, result models.SpinResult) {
	payload := map[string]any{
		"userId":  user.ID,
		"bet":     result.Bet,
		"outcome": result.Outcome,
		"delta":   result.Delta,
	}

	s.notifier.Broadcast(ctx, notify.EventSpinResult, payload)

	if result.Outcome >= max(s.cfg.BigWinThreshold, result.Bet*5) {
		s.notifier.Broadcast(ctx, notify.EventSpinBigWin, payload)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
