package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository defines the interface for user-related storage operations.
// Create must fail with ErrDuplicateEmail when the email is already taken,
// independently of any lookup done beforehand.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Search(ctx context.Context, q DirectoryQuery) ([]*entity.User, error)
}

// DirectorySearcher runs directory queries. UserRepository satisfies it; so
// does the Elasticsearch directory index.
type DirectorySearcher interface {
	Search(ctx context.Context, q DirectoryQuery) ([]*entity.User, error)
}
