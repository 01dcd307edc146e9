package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/gopherchat/internal/common"
	"github.com/suPer8Hu/gopherchat/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", u.Username).
		Count(&cnt).Error; err != nil {
		return common.Storage("check username", err)
	}
	if cnt > 0 {
		return fmt.Errorf("username %q: %w", u.Username, common.ErrConflict)
	}

	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		// a concurrent registration can still win between the check and the insert
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("username %q: %w", u.Username, common.ErrConflict)
		}
		return common.Storage("create user", err)
	}
	return nil
}

func (r *Repo) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, r.lookupErr(err)
	}
	return &u, nil
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, r.lookupErr(err)
	}
	return &u, nil
}

func (r *Repo) UpdateAccessToken(ctx context.Context, id uint64, token string) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_token": token,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return nil, common.Storage("update access token", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, common.ErrNotFound
	}
	return r.GetUser(ctx, id)
}

func (r *Repo) lookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrNotFound
	}
	return common.Storage("load user", err)
}
