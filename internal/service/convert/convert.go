// Package convert moves value between the points and currency sides of
// a balance at a fixed exchange rate. Both directions write the balance
// mutation atomically, so no partial exchange can be observed.
package convert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/repository"
)

// DefaultRate is the currency value of a single point.
var DefaultRate = decimal.RequireFromString("0.003")

// currencyPlaces is the scale currency amounts are rounded to.
const currencyPlaces = 6

type Config struct {
	// Rate is currency per point. Zero means DefaultRate.
	Rate decimal.Decimal
}

type Service struct {
	rate    decimal.Decimal
	storage repository.Storage
}

func NewService(cfg Config, storage repository.Storage) *Service {
	rate := cfg.Rate
	if rate.IsZero() {
		rate = DefaultRate
	}

	return &Service{
		rate:    rate,
		storage: storage,
	}
}

func (s *Service) Rate() decimal.Decimal {
	return s.rate
}

// PointsToCurrency converts points into currency. No amount means the
// whole points balance; an explicit amount is clamped to it.
func (s *Service) PointsToCurrency(ctx context.Context, userID uuid.UUID, points *int64) (models.Balance, decimal.Decimal, error) {
	var balance models.Balance
	var credited decimal.Decimal

	if points != nil && *points <= 0 {
		return balance, credited, apperrors.ErrNothingToConvert
	}

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		current, err := store.Balance().GetBalance(ctx, userID, true)
		if err != nil {
			return err
		}

		amount := current.Points
		if points != nil && *points < amount {
			amount = *points
		}
		if amount <= 0 {
			return apperrors.ErrNothingToConvert
		}

		credited = decimal.NewFromInt(amount).Mul(s.rate).Round(currencyPlaces)

		balance, err = store.Balance().Exchange(ctx, userID, -amount, credited)
		if err != nil {
			return fmt.Errorf("can't exchange points to currency. Err: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Balance{}, decimal.Decimal{}, err
	}

	return balance, credited, nil
}

// CurrencyToPoints converts currency into whole points. The point count
// is floored, and exactly points*rate currency is debited, so a
// round trip never loses more than one point's worth.
func (s *Service) CurrencyToPoints(ctx context.Context, userID uuid.UUID, amount *decimal.Decimal) (models.Balance, int64, decimal.Decimal, error) {
	var balance models.Balance
	var points int64
	var debited decimal.Decimal

	if amount != nil && !amount.IsPositive() {
		return balance, 0, debited, apperrors.ErrAmountTooSmall
	}

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		current, err := store.Balance().GetBalance(ctx, userID, true)
		if err != nil {
			return err
		}

		spend := current.Currency
		if amount != nil {
			spend = decimal.Min(*amount, current.Currency)
		}
		if !spend.IsPositive() {
			return apperrors.ErrAmountTooSmall
		}

		points = spend.Div(s.rate).IntPart()
		if points <= 0 {
			return apperrors.ErrAmountTooSmall
		}

		// Debit the exact cost of the points granted, not the raw
		// requested amount
		debited = decimal.NewFromInt(points).Mul(s.rate).Round(currencyPlaces)

		balance, err = store.Balance().Exchange(ctx, userID, points, debited.Neg())
		if err != nil {
			return fmt.Errorf("can't exchange currency to points. Err: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Balance{}, 0, decimal.Decimal{}, err
	}

	return balance, points, debited, nil
}
