package users

import (
	"context"

	"github.com/suPer8Hu/gopherchat/internal/models"
)

// Store persists user records. Lookups of unknown users return common.ErrNotFound,
// CreateUser returns common.ErrConflict for a taken username.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateAccessToken(ctx context.Context, id uint64, token string) (*models.User, error)
}
