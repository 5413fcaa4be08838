// Package memory is an in-process UserRepository for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
	"github.com/oksasatya/staff-directory/internal/domain/repository"
)

type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*entity.User
	byEmail map[string]string
}

func NewUserRepository(seed ...*entity.User) *UserRepository {
	r := &UserRepository{
		byID:    make(map[string]*entity.User),
		byEmail: make(map[string]string),
	}
	for _, u := range seed {
		_ = r.Create(context.Background(), u)
	}
	return r
}

// Create stores a copy of u. The email check and insert happen under one lock,
// so concurrent signups for the same address cannot both succeed.
func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	key := strings.ToLower(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[key]; taken {
		return repository.ErrDuplicateEmail
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.byID[u.ID] = clone(u)
	r.byEmail[key] = u.ID
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *UserRepository) Search(_ context.Context, q repository.DirectoryQuery) ([]*entity.User, error) {
	r.mu.RLock()
	out := make([]*entity.User, 0)
	for _, u := range r.byID {
		if q.Matches(u) {
			out = append(out, clone(u))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if *a.PositionSeniorityIndex != *b.PositionSeniorityIndex {
			return *a.PositionSeniorityIndex < *b.PositionSeniorityIndex
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.FirstName < b.FirstName
	})
	return out, nil
}

func clone(u *entity.User) *entity.User {
	c := *u
	if u.PositionSeniorityIndex != nil {
		idx := *u.PositionSeniorityIndex
		c.PositionSeniorityIndex = &idx
	}
	return &c
}

var _ repository.UserRepository = (*UserRepository)(nil)
