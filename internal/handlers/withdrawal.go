package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/handlers/render"
	"github.com/almaz-dev/eduspin/internal/handlers/userctx"
	"github.com/almaz-dev/eduspin/internal/logger"
	"github.com/almaz-dev/eduspin/internal/models"
)

type withdrawalResponse struct {
	ID          uuid.UUID  `json:"id"`
	Amount      float64    `json:"amount"`
	Contact     string     `json:"contact"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requestedAt"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
	Note        *string    `json:"note,omitempty"`
}

type summaryResponse struct {
	Spent24                   float64    `json:"spent24"`
	Pending24                 float64    `json:"pending24"`
	RemainingVerified         float64    `json:"remainingVerified"`
	RemainingIncludingPending float64    `json:"remainingIncludingPending"`
	Cap                       float64    `json:"cap"`
	NextAllowedAt             *time.Time `json:"nextAllowedAt"`
}

func toWithdrawalResponse(w models.Withdrawal) withdrawalResponse {
	amount, _ := w.Amount.Float64()
	return withdrawalResponse{
		ID:          w.ID,
		Amount:      amount,
		Contact:     w.Contact,
		Status:      w.Status,
		RequestedAt: w.RequestedAt,
		VerifiedAt:  w.VerifiedAt,
		Note:        w.Note,
	}
}

func toSummaryResponse(s models.WithdrawalSummary) summaryResponse {
	spent, _ := s.Verified24h.Float64()
	pending, _ := s.Pending24h.Float64()
	remaining, _ := s.RemainingVerified.Float64()
	remainingPending, _ := s.RemainingIncludingPending.Float64()
	cap, _ := s.Cap.Float64()

	return summaryResponse{
		Spent24:                   spent,
		Pending24:                 pending,
		RemainingVerified:         remaining,
		RemainingIncludingPending: remainingPending,
		Cap:                       cap,
		NextAllowedAt:             s.NextAllowedAt,
	}
}

// capErrorResponse carries the concrete numbers needed to render a countdown
func capErrorResponse(w http.ResponseWriter, e *apperrors.WithdrawalCapError) {
	fields := map[string]string{
		"cap":       e.Cap.String(),
		"remaining": e.Remaining.String(),
	}
	if e.NextAllowedAt != nil {
		fields["nextAllowedAt"] = e.NextAllowedAt.Format(time.RFC3339)
	}

	render.JSONWithStatus(w, render.ErrorResponse{
		Error:   render.ServiceErrorType,
		Message: e.Error(),
		Fields:  fields,
	}, http.StatusBadRequest)
}

func handleWithdrawalSummary(withdrawalService withdrawalService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		summary, err := withdrawalService.Summary(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to get withdrawal summary", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, toSummaryResponse(summary))
	})
}

func handleWithdrawalRequest(withdrawalService withdrawalService, l logger.Logger) http.Handler {
	type request struct {
		Amount  *decimal.Decimal `json:"amount"`
		Contact string           `json:"contact" validate:"required,min=3,max=100"`
	}
	type response struct {
		Withdrawal withdrawalResponse `json:"withdrawal"`
		Summary    summaryResponse    `json:"summary"`
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

		created, summary, err := withdrawalService.Request(r.Context(), user, data.Amount, data.Contact)

		var capErr *apperrors.WithdrawalCapError

		switch {
		case err == nil:
			render.JSONWithStatus(w, response{
				Withdrawal: toWithdrawalResponse(created),
				Summary:    toSummaryResponse(summary),
			}, http.StatusCreated)
		case errors.As(err, &capErr):
			capErrorResponse(w, capErr)
		case errors.Is(err, apperrors.ErrWithdrawalTooSmall):
			render.ServiceError(w, "Withdrawal amount is below the minimum", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrBalanceInsufficient):
			render.ServiceError(w, "Insufficient balance", http.StatusBadRequest)
		default:
			l.Error("Failed to request withdrawal", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListWithdrawals(withdrawalService withdrawalService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		ws, err := withdrawalService.List(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to list withdrawals", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		list := make([]withdrawalResponse, 0, len(ws))
		for _, item := range ws {
			list = append(list, toWithdrawalResponse(item))
		}
		render.JSON(w, list)
	})
}

func handleListAllWithdrawals(withdrawalService withdrawalService, l logger.Logger) http.Handler {
	type item struct {
		withdrawalResponse
		UserID      uuid.UUID `json:"userId"`
		Verified24h float64   `json:"verified24h"`
		Pending24h  float64   `json:"pending24h"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items, err := withdrawalService.ListAll(r.Context())
		if err != nil {
			l.Error("Failed to list all withdrawals", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		list := make([]item, 0, len(items))
		for _, it := range items {
			verified, _ := it.Verified24h.Float64()
			pending, _ := it.Pending24h.Float64()
			list = append(list, item{
				withdrawalResponse: toWithdrawalResponse(it.Withdrawal),
				UserID:             it.Withdrawal.UserID,
				Verified24h:        verified,
				Pending24h:         pending,
			})
		}
		render.JSON(w, list)
	})
}

func withdrawalIDFromPath(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

func handleVerifyWithdrawal(withdrawalService withdrawalService, l logger.Logger) http.Handler {
	type response struct {
		Withdrawal withdrawalResponse `json:"withdrawal"`
		Points     int64              `json:"points"`
		Currency   float64            `json:"currency"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, err := withdrawalIDFromPath(r)
		if err != nil {
			render.ServiceError(w, "Invalid withdrawal id", http.StatusBadRequest)
			return
		}

		verified, balance, err := withdrawalService.Verify(r.Context(), admin, id)

		var capErr *apperrors.WithdrawalCapError

		switch {
		case err == nil:
			currency, _ := balance.Currency.Float64()
			render.JSON(w, response{
				Withdrawal: toWithdrawalResponse(verified),
				Points:     balance.Points,
				Currency:   currency,
			})
		case errors.As(err, &capErr):
			capErrorResponse(w, capErr)
		case errors.Is(err, apperrors.ErrWithdrawalNotFound):
			render.ServiceError(w, "Withdrawal not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrWithdrawalNotPending):
			render.ServiceError(w, "Withdrawal is not pending", http.StatusBadRequest)
		default:
			l.Error("Failed to verify withdrawal", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRejectWithdrawal(withdrawalService withdrawalService, l logger.Logger) http.Handler {
	type request struct {
		Note string `json:"note" validate:"max=500"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, err := withdrawalIDFromPath(r)
		if err != nil {
			render.ServiceError(w, "Invalid withdrawal id", http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		rejected, err := withdrawalService.Reject(r.Context(), admin, id, data.Note)

		switch {
		case err == nil:
			render.JSON(w, toWithdrawalResponse(rejected))
		case errors.Is(err, apperrors.ErrWithdrawalNotFound):
			render.ServiceError(w, "Withdrawal not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrWithdrawalNotPending):
			render.ServiceError(w, "Withdrawal is not pending", http.StatusBadRequest)
		default:
			l.Error("Failed to reject withdrawal", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleDeleteWithdrawal(withdrawalService withdrawalService, l logger.Logger) http.Handler {
	type response struct {
		Message string          `json:"message"`
		Summary summaryResponse `json:"summary"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		id, err := withdrawalIDFromPath(r)
		if err != nil {
			render.ServiceError(w, "Invalid withdrawal id", http.StatusBadRequest)
			return
		}

		summary, err := withdrawalService.Delete(r.Context(), actor, id)

		switch {
		case err == nil:
			render.JSON(w, response{
				Message: "Withdrawal deleted",
				Summary: toSummaryResponse(summary),
			})
		case errors.Is(err, apperrors.ErrWithdrawalNotFound):
			render.ServiceError(w, "Withdrawal not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrWithdrawalNotAllowed):
			render.ServiceError(w, "Not allowed to delete this withdrawal", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrWithdrawalNotPending):
			render.ServiceError(w, "Withdrawal is not pending", http.StatusBadRequest)
		default:
			l.Error("Failed to delete withdrawal", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
