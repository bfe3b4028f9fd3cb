package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/handlers/render"
	"github.com/almaz-dev/eduspin/internal/handlers/userctx"
	"github.com/almaz-dev/eduspin/internal/logger"
)

func handleConvertPoints(convertService convertService, l logger.Logger) http.Handler {
	type request struct {
		// nil means "convert everything"
		Points *int64 `json:"points"`
	}
	type response struct {
		Points    int64   `json:"points"`
		Currency  float64 `json:"currency"`
		Converted float64 `json:"converted"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		balance, credited, err := convertService.PointsToCurrency(r.Context(), user.ID, data.Points)

		switch {
		case err == nil:
			currency, _ := balance.Currency.Float64()
			converted, _ := credited.Float64()
			render.JSON(w, response{
				Points:    balance.Points,
				Currency:  currency,
				Converted: converted,
			})
		case errors.Is(err, apperrors.ErrNothingToConvert):
			render.ServiceError(w, "No points to convert", http.StatusBadRequest)
		default:
			l.Error("Failed to convert points", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleConvertCurrency(convertService convertService, l logger.Logger) http.Handler {
	type request struct {
		// nil means "convert everything"
		Amount *decimal.Decimal `json:"amount"`
	}
	type response struct {
		Points    int64   `json:"points"`
		Currency  float64 `json:"currency"`
		Converted int64   `json:"converted"`
		Debited   float64 `json:"debited"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		balance, points, debited, err := convertService.CurrencyToPoints(r.Context(), user.ID, data.Amount)

		switch {
		case err == nil:
			currency, _ := balance.Currency.Float64()
			debitedF, _ := debited.Float64()
			render.JSON(w, response{
				Points:    balance.Points,
				Currency:  currency,
				Converted: points,
				Debited:   debitedF,
			})
		case errors.Is(err, apperrors.ErrAmountTooSmall):
			render.ServiceError(w, "Amount too small to convert", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrBalanceInsufficient):
			render.ServiceError(w, "Insufficient balance", http.StatusBadRequest)
		default:
			l.Error("Failed to convert currency", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
