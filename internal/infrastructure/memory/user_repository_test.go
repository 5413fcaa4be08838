package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
	"github.com/oksasatya/staff-directory/internal/domain/repository"
)

func rank(i int) *int { return &i }

func TestUserRepository_CreateAndFind(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	u := &entity.User{ID: "u-1", Email: "a@x.com", FirstName: "A", LastName: "B"}
	require.NoError(t, repo.Create(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	byID, err := repo.FindByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)

	byEmail, err := repo.FindByEmail(ctx, "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", byEmail.ID)

	_, err = repo.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.FindByEmail(ctx, "nope@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	repo := NewUserRepository(&entity.User{ID: "u-1", Email: "a@x.com", PositionSeniorityIndex: rank(3)})

	u, err := repo.FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	u.FirstName = "mutated"
	*u.PositionSeniorityIndex = 0

	again, err := repo.FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Empty(t, again.FirstName)
	assert.Equal(t, 3, *again.PositionSeniorityIndex)
}

func TestUserRepository_ConcurrentDuplicateSignups(t *testing.T) {
	repo := NewUserRepository()

	var (
		wg        sync.WaitGroup
		created   atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(context.Background(), &entity.User{ID: fmt.Sprintf("u-%d", i), Email: "same@x.com"})
			switch {
			case err == nil:
				created.Add(1)
			case assert.ErrorIs(t, err, repository.ErrDuplicateEmail):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
	assert.EqualValues(t, 31, conflicts.Load())
}

func TestUserRepository_Search(t *testing.T) {
	repo := NewUserRepository(
		&entity.User{ID: "me", Email: "me@x.com", FirstName: "Alex", LastName: "Self", PositionSeniorityIndex: rank(3)},
		&entity.User{ID: "boss", Email: "boss@x.com", FirstName: "Alma", LastName: "Chief", PositionSeniorityIndex: rank(1)},
		&entity.User{ID: "peer", Email: "peer@x.com", FirstName: "Bea", LastName: "Alder", PositionSeniorityIndex: rank(3)},
		&entity.User{ID: "junior", Email: "jr@x.com", FirstName: "Cal", LastName: "Young", PositionSeniorityIndex: rank(7)},
		&entity.User{ID: "new", Email: "new@x.com", FirstName: "Al", LastName: "Unplaced"},
	)

	q, err := repository.NewDirectoryQuery("", 3, "me")
	require.NoError(t, err)
	all, err := repo.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"boss", "peer"}, ids(all))

	q, err = repository.NewDirectoryQuery("Al", 10, "me")
	require.NoError(t, err)
	filtered, err := repo.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"boss", "peer"}, ids(filtered))
}

func ids(users []*entity.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
