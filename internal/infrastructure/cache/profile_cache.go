// Package cache holds read-through caches in front of the user repository.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
	"github.com/oksasatya/staff-directory/pkg/helpers"
)

func profileKey(userID string) string {
	return "user:profile:" + userID
}

// cachedProfile is what gets stored; the password hash and otp fields stay out of Redis.
type cachedProfile struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	FirstName              string    `json:"first_name"`
	LastName               string    `json:"last_name"`
	Phone                  string    `json:"phone"`
	Position               string    `json:"position"`
	PositionSeniorityIndex *int      `json:"position_seniority_index"`
	FirstLogin             bool      `json:"first_login"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type ProfileCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewProfileCache(rdb redis.Cmdable, ttl time.Duration) *ProfileCache {
	return &ProfileCache{rdb: rdb, ttl: ttl}
}

func (c *ProfileCache) Get(ctx context.Context, userID string) (*entity.User, bool, error) {
	var p cachedProfile
	ok, err := helpers.RedisGetJSON(ctx, c.rdb, profileKey(userID), &p)
	if err != nil || !ok {
		return nil, false, err
	}
	return &entity.User{
		ID:                     p.ID,
		Email:                  p.Email,
		FirstName:              p.FirstName,
		LastName:               p.LastName,
		Phone:                  p.Phone,
		Position:               p.Position,
		PositionSeniorityIndex: p.PositionSeniorityIndex,
		FirstLogin:             p.FirstLogin,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}, true, nil
}

func (c *ProfileCache) Set(ctx context.Context, u *entity.User) error {
	return helpers.RedisSetJSON(ctx, c.rdb, profileKey(u.ID), cachedProfile{
		ID:                     u.ID,
		Email:                  u.Email,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		Phone:                  u.Phone,
		Position:               u.Position,
		PositionSeniorityIndex: u.PositionSeniorityIndex,
		FirstLogin:             u.FirstLogin,
		CreatedAt:              u.CreatedAt,
		UpdatedAt:              u.UpdatedAt,
	}, c.ttl)
}
