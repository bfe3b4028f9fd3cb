// Package auth handles registration, login and token rotation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/almaz-dev/eduspin/internal/apperrors"
	"github.com/almaz-dev/eduspin/internal/models"
	"github.com/almaz-dev/eduspin/internal/repository"
	"github.com/almaz-dev/eduspin/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Secret key to sign user access token payload
	SecretKey string

	// Hasher to use during user registration or login process
	Hasher PasswordHasher

	// Access and refresh token lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type AuthService struct {
	// Manager to issue token pairs (access and refresh)
	token *tokenmanager.TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Storage to access long term data
	storage repository.Storage
}

func NewAuthService(cfg Config, storage repository.Storage) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	tm, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  cfg.SecretKey,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, storage.Refresh())
	if err != nil {
		return nil, err
	}

	return &AuthService{
		token:   tm,
		hasher:  hasher,
		storage: storage,
	}, nil
}

// Register creates the user with a zero balance and issues tokens.
// The user row and its balance row commit together.
func (s *AuthService) Register(ctx context.Context, username string, password string) (models.TokenPair, error) {
	if password == "" {
		return models.TokenPair{}, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	var user models.User
	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		user, err = store.User().CreateUser(ctx, username, hash, models.RoleUser)
		if err != nil {
			return err
		}
		return store.Balance().CreateBalance(ctx, user.ID)
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	if err != nil {
		// Compare against an empty hash anyway to keep timing close
		_ = s.hasher.Compare("", password)
		return models.TokenPair{}, apperrors.ErrUserNotFound
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.TokenPair{}, apperrors.ErrUserNotFound
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Refresh rotates the refresh token: marks the old one used and issues
// a fresh pair for its owner.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	token, err := s.token.UseRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.storage.User().GetUserByID(ctx, token.UserID)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// UserFromAccess parses the access token and loads its user.
func (s *AuthService) UserFromAccess(ctx context.Context, access string) (models.User, error) {
	userID, err := s.token.ParseAccess(ctx, access)
	if err != nil {
		return models.User{}, err
	}
	if userID == uuid.Nil {
		return models.User{}, apperrors.ErrUserNotFound
	}

	return s.storage.User().GetUserByID(ctx, userID)
}
