package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/repository"
)

// UserService exposes read paths over users and their balances.
type UserService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *UserService {
	return &UserService{storage: storage}
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error) {
	balance, err := s.storage.Balance().GetBalance(ctx, userID, false)
	if err != nil {
		return balance, fmt.Errorf("can't get balance. Err: %w", err)
	}
	return balance, nil
}
