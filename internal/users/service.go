package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/gopherchat/internal/auth"
	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/models"
)

const (
	maxUsernameLen = 64
	maxPasswordLen = 72 // bcrypt input limit
)

type Service struct {
	store  Store
	hasher auth.Hasher
}

func NewService(store Store, hasher auth.Hasher) *Service {
	return &Service{store: store, hasher: hasher}
}

func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Username: username, PasswordHash: hash}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate returns common.ErrInvalidCredentials for an unknown user or a wrong password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		return nil, common.ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Profile(ctx context.Context, id uint64) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// SetAccessToken stores the upstream credential the user brings along.
func (s *Service) SetAccessToken(ctx context.Context, id uint64, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: access token is required", common.ErrValidation)
	}
	return s.store.UpdateAccessToken(ctx, id, token)
}

// Credential returns the user's stored access token, or "" when none is set.
func (s *Service) Credential(ctx context.Context, id uint64) (string, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	if !u.HasAccessToken() {
		return "", nil
	}
	return *u.AccessToken, nil
}

func validateCredentials(username, password string) error {
	switch {
	case strings.TrimSpace(username) == "" || password == "":
		return fmt.Errorf("%w: username and password are required", common.ErrValidation)
	case len(username) > maxUsernameLen:
		return fmt.Errorf("%w: username is too long", common.ErrValidation)
	case len(password) > maxPasswordLen:
		return fmt.Errorf("%w: password is too long", common.ErrValidation)
	}
	return nil
}
