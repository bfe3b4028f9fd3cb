package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/handlers/render"
	"github.com/almaz-dev/eduspin/internal/handlers/userctx"
	"github.com/almaz-dev/eduspin/internal/logger"
)

func handleSpinControl(spinService spinService, l logger.Logger) http.Handler {
	type response struct {
		Disabled bool   `json:"disabled"`
		Reason   string `json:"reason"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		control, err := spinService.Control(r.Context())
		if err != nil {
			l.Error("Failed to get spin control", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Disabled: control.Disabled, Reason: control.Reason})
	})
}

func handleSetSpinControl(spinService spinService, l logger.Logger) http.Handler {
	type request struct {
		Disabled *bool  `json:"disabled" validate:"required"`
		Reason   string `json:"reason" validate:"max=200"`
	}
	type response struct {
		Disabled  bool      `json:"disabled"`
		Reason    string    `json:"reason"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		control, err := spinService.SetControl(r.Context(), admin, *data.Disabled, data.Reason)
		if err != nil {
			l.Error("Failed to set spin control", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			Disabled:  control.Disabled,
			Reason:    control.Reason,
			UpdatedAt: control.UpdatedAt,
		})
	})
}

func handleSpinStatus(spinService spinService, l logger.Logger) http.Handler {
	type response struct {
		SpinsToday     int `json:"spinsToday"`
		SpinsRemaining int `json:"spinsRemaining"`
		DailyLimit     int `json:"dailyLimit"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		status, err := spinService.Status(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to get spin status", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			SpinsToday:     status.SpinsToday,
			SpinsRemaining: status.SpinsRemaining,
			DailyLimit:     status.DailyLimit,
		})
	})
}

func handleSpin(spinService spinService, l logger.Logger) http.Handler {
	type request struct {
		Bet float64 `json:"bet" validate:"required"`
	}
	type response struct {
		SpinID    uuid.UUID `json:"spinId"`
		Bet       int64     `json:"bet"`
		Outcome   int64     `json:"outcome"`
		Delta     int64     `json:"delta"`
		NewPoints int64     `json:"newPoints"`
		Tiers     []int64   `json:"tiers"`
		Weights   []float64 `json:"weights"`
		Percents  []float64 `json:"percents"`
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

		result, err := spinService.Spin(r.Context(), user, data.Bet)

		var disabledErr *apperrors.SpinsDisabledError
		var quotaErr *apperrors.SpinQuotaError

		switch {
		case err == nil:
			render.JSON(w, response{
				SpinID:    result.SpinID,
				Bet:       result.Bet,
				Outcome:   result.Outcome,
				Delta:     result.Delta,
				NewPoints: result.Points,
				Tiers:     result.Tiers,
				Weights:   result.Weights,
				Percents:  result.Percents,
			})
		case errors.As(err, &disabledErr):
			render.ServiceError(w, disabledErr.Error(), http.StatusForbidden)
		case errors.As(err, &quotaErr):
			render.JSONWithStatus(w, quotaResponse(quotaErr), http.StatusTooManyRequests)
		case errors.Is(err, apperrors.ErrBetInvalid):
			render.ServiceError(w, "Invalid bet", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrBalanceInsufficient):
			render.ServiceError(w, "Insufficient points", http.StatusBadRequest)
		default:
			l.Error("Failed to process spin", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// quotaResponse carries the concrete numbers needed to render a retry hint
func quotaResponse(e *apperrors.SpinQuotaError) render.ErrorResponse {
	return render.ErrorResponse{
		Error:   render.ServiceErrorType,
		Message: e.Error(),
		Fields: map[string]string{
			"dailyLimit": strconv.Itoa(e.Limit),
			"spinsToday": strconv.Itoa(e.SpinsToday),
			"resetsAt":   e.ResetsAt.Format(time.RFC3339),
		},
	}
}

func handleSpinHistory(spinService spinService, l logger.Logger) http.Handler {
	type spin struct {
		ID        uuid.UUID `json:"id"`
		Bet       int64     `json:"bet"`
		Outcome   int64     `json:"outcome"`
		Delta     int64     `json:"delta"`
		CreatedAt time.Time `json:"createdAt"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}

		spins, err := spinService.History(r.Context(), user.ID, limit)
		if err != nil {
			l.Error("Failed to get spin history", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		history := make([]spin, 0, len(spins))
		for _, s := range spins {
			history = append(history, spin{
				ID:        s.ID,
				Bet:       s.Bet,
				Outcome:   s.Outcome,
				Delta:     s.Delta(),
				CreatedAt: s.CreatedAt,
			})
		}
		render.JSON(w, history)
	})
}
