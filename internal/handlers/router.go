package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/almaz-dev/eduspin/internal/handlers/middleware"
	"github.com/almaz-dev/eduspin/internal/logger"
	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/service/withdrawal"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	spinService spinService,
	withdrawalService withdrawalService,
	convertService convertService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	adminMiddleware := middleware.AdminMiddleware()

	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	withAdmin := func(h http.Handler) http.Handler {
		return authMiddleware(adminMiddleware(h))
	}

	api := http.NewServeMux()

	api.Handle("POST /auth/register", handleRegister(authService, logger))
	api.Handle("POST /auth/login", handleLogin(authService, logger))
	api.Handle("POST /auth/refresh", handleTokenRefresh(authService, logger))
	api.Handle("POST /auth/logout", handleLogout(authService))

	api.Handle("GET /user/me", withAuth(handleUserMe()))
	api.Handle("GET /user/balance", withAuth(handleUserBalance(userService, logger)))

	api.Handle("GET /spin/control", withAuth(handleSpinControl(spinService, logger)))
	api.Handle("PUT /spin/control", withAdmin(handleSetSpinControl(spinService, logger)))
	api.Handle("GET /spin/status", withAuth(handleSpinStatus(spinService, logger)))
	api.Handle("GET /spin/history", withAuth(handleSpinHistory(spinService, logger)))
	api.Handle("POST /spin", withAuth(handleSpin(spinService, logger)))

	api.Handle("GET /withdrawals/summary", withAuth(handleWithdrawalSummary(withdrawalService, logger)))
	api.Handle("POST /withdrawals", withAuth(handleWithdrawalRequest(withdrawalService, logger)))
	api.Handle("GET /withdrawals", withAuth(handleListWithdrawals(withdrawalService, logger)))
	api.Handle("GET /withdrawals/all", withAdmin(handleListAllWithdrawals(withdrawalService, logger)))
	api.Handle("POST /withdrawals/{id}/verify", withAdmin(handleVerifyWithdrawal(withdrawalService, logger)))
	api.Handle("POST /withdrawals/{id}/reject", withAdmin(handleRejectWithdrawal(withdrawalService, logger)))
	api.Handle("DELETE /withdrawals/{id}", withAuth(handleDeleteWithdrawal(withdrawalService, logger)))

	api.Handle("POST /balance/convert/points", withAuth(handleConvertPoints(convertService, logger)))
	api.Handle("POST /balance/convert/currency", withAuth(handleConvertCurrency(convertService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user with username and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound if user not found
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Set auth tokens (access, refresh) to response
	SetTokens(ctx context.Context, w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request
	GetRefresh(r *http.Request) (string, error)

	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, error)

	// Expire auth cookies
	ClearTokens(w http.ResponseWriter)
}

type userService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error)
}

type spinService interface {
	Spin(ctx context.Context, user models.User, rawBet float64) (models.SpinResult, error)
	Status(ctx context.Context, userID uuid.UUID) (models.SpinStatus, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.Spin, error)
	Control(ctx context.Context) (models.SpinControl, error)
	SetControl(ctx context.Context, admin models.User, disabled bool, reason string) (models.SpinControl, error)
}

type withdrawalService interface {
	Summary(ctx context.Context, userID uuid.UUID) (models.WithdrawalSummary, error)
	Request(ctx context.Context, user models.User, amount *decimal.Decimal, contact string) (models.Withdrawal, models.WithdrawalSummary, error)
	Verify(ctx context.Context, admin models.User, withdrawalID uuid.UUID) (models.Withdrawal, models.Balance, error)
	Reject(ctx context.Context, admin models.User, withdrawalID uuid.UUID, note string) (models.Withdrawal, error)
	Delete(ctx context.Context, actor models.User, withdrawalID uuid.UUID) (models.WithdrawalSummary, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error)
	ListAll(ctx context.Context) ([]withdrawal.AdminItem, error)
}

type convertService interface {
	Rate() decimal.Decimal
	PointsToCurrency(ctx context.Context, userID uuid.UUID, points *int64) (models.Balance, decimal.Decimal, error)
	CurrencyToPoints(ctx context.Context, userID uuid.UUID, amount *decimal.Decimal) (models.Balance, int64, decimal.Decimal, error)
}
