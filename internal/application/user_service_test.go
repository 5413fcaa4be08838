package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
	repo "github.com/oksasatya/staff-directory/internal/domain/repository"
	"github.com/oksasatya/staff-directory/internal/infrastructure/cache"
	"github.com/oksasatya/staff-directory/internal/infrastructure/memory"
	"github.com/oksasatya/staff-directory/pkg/helpers"
	"github.com/oksasatya/staff-directory/pkg/mailer"
	"github.com/oksasatya/staff-directory/pkg/mailer/templates"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(t *testing.T, users repo.UserRepository) *Service {
	t.Helper()
	if users == nil {
		users = memory.NewUserRepository()
	}
	return NewService(users, helpers.NewPasswordHasher(bcrypt.MinCost), helpers.NewJWTManager("test-secret", time.Hour), quietLogger())
}

func rank(i int) *int { return &i }

func validSignup() SignupInput {
	return SignupInput{Email: "a@x.com", FirstName: "A", LastName: "B", Phone: "123", Password: "secret"}
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []any
	err  error
}

func (f *fakePublisher) PublishJSON(_ context.Context, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, body)
	return f.err
}

type fakeIndexer struct {
	users []*entity.User
	err   error
}

func (f *fakeIndexer) IndexUser(_ context.Context, u *entity.User) error {
	f.users = append(f.users, u)
	return f.err
}

// brokenRepo fails every call with a storage error.
type brokenRepo struct{}

var errDBDown = errors.New("db down")

func (brokenRepo) Create(context.Context, *entity.User) error { return errDBDown }
func (brokenRepo) FindByID(context.Context, string) (*entity.User, error) {
	return nil, errDBDown
}
func (brokenRepo) FindByEmail(context.Context, string) (*entity.User, error) {
	return nil, errDBDown
}
func (brokenRepo) Search(context.Context, repo.DirectoryQuery) ([]*entity.User, error) {
	return nil, errDBDown
}

// countingRepo records FindByID calls.
type countingRepo struct {
	*memory.UserRepository
	findByID int
}

func (r *countingRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	r.findByID++
	return r.UserRepository.FindByID(ctx, id)
}

func TestSignup_Success(t *testing.T) {
	users := memory.NewUserRepository()
	svc := newTestService(t, users)

	in := validSignup()
	in.Email = "  A@X.com "
	res, err := svc.Signup(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.User.Username)
	assert.NotEmpty(t, res.User.ID)

	claims, err := svc.JWT.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	stored, err := users.FindByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", stored.Email)
	assert.NotEqual(t, "secret", stored.PasswordHash)
	assert.True(t, svc.Hasher.Verify("secret", stored.PasswordHash))
	assert.True(t, stored.FirstLogin)
	assert.Equal(t, entity.PlaceholderOTPCode, stored.OTPCode)
	assert.Equal(t, entity.PlaceholderOTPExpiry, stored.OTPExpiry)
	assert.Nil(t, stored.PositionSeniorityIndex)
}

func TestSignup_InvalidInput(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		name  string
		edit  func(*SignupInput)
		field string
	}{
		{"malformed email", func(in *SignupInput) { in.Email = "not-an-email" }, "email"},
		{"email too long", func(in *SignupInput) { in.Email = "abcdefghijklmnopqrstuvwxyzabcdefghijklmnop@example.com" }, "email"},
		{"short password", func(in *SignupInput) { in.Password = "12345" }, "password"},
		{"password over 72 bytes", func(in *SignupInput) { in.Password = strings.Repeat("é", 40) }, "password"},
		{"blank first name", func(in *SignupInput) { in.FirstName = "   " }, "firstName"},
		{"missing last name", func(in *SignupInput) { in.LastName = "" }, "lastName"},
		{"blank phone", func(in *SignupInput) { in.Phone = " " }, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSignup()
			tt.edit(&in)
			_, err := svc.Signup(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalidInput)
			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Contains(t, ie.Fields, tt.field)
		})
	}
}

func TestSignup_Duplicate(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	again := validSignup()
	again.Email = "A@X.COM"
	_, err = svc.Signup(ctx, again)
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestSignup_ConcurrentDuplicates(t *testing.T) {
	svc := newTestService(t, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Signup(context.Background(), validSignup())
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrDuplicateAccount)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestSignup_SideEffects(t *testing.T) {
	svc := newTestService(t, nil)
	idx := &fakeIndexer{err: errors.New("es unavailable")}
	pub := &fakePublisher{}
	svc.Index, svc.Publisher, svc.MailEnabled, svc.CompanyName = idx, pub, true, "Acme"

	res, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err, "index failure must not fail signup")

	require.Len(t, idx.users, 1)
	assert.Equal(t, res.User.ID, idx.users[0].ID)

	require.Len(t, pub.jobs, 1)
	job, ok := pub.jobs[0].(mailer.EmailJob)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", job.To)
	assert.Equal(t, templates.Welcome, job.Template)

	var data templates.WelcomeData
	require.NoError(t, json.Unmarshal(job.Data, &data))
	assert.Equal(t, "A", data.FirstName)
	assert.Equal(t, "Acme", data.CompanyName)
}

func TestSignup_MailDisabled(t *testing.T) {
	svc := newTestService(t, nil)
	pub := &fakePublisher{err: errors.New("broker down")}
	svc.Publisher = pub

	_, err := svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	assert.Empty(t, pub.jobs)

	svc.MailEnabled = true
	in := validSignup()
	in.Email = "b@x.com"
	_, err = svc.Signup(context.Background(), in)
	require.NoError(t, err, "publish failure must not fail signup")
	assert.Len(t, pub.jobs, 1)
}

func TestSignin(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	up, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	res, err := svc.Signin(ctx, SigninInput{Email: "A@x.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, up.User, res.User)
	claims, err := svc.JWT.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, up.User.ID, claims.UserID)

	_, err = svc.Signin(ctx, SigninInput{Email: "a@x.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Signin(ctx, SigninInput{Email: "nobody@x.com", Password: "secret"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Signin(ctx, SigninInput{Email: "nope", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStorageFailuresAreInternal(t *testing.T) {
	svc := newTestService(t, brokenRepo{})
	ctx := context.Background()

	_, err := svc.Signup(ctx, validSignup())
	assert.ErrorIs(t, err, ErrInternal)
	assert.NotErrorIs(t, err, ErrDuplicateAccount)

	_, err = svc.Signin(ctx, SigninInput{Email: "a@x.com", Password: "secret"})
	assert.ErrorIs(t, err, ErrInternal)

	_, err = svc.Details(ctx, "u-1")
	assert.ErrorIs(t, err, ErrInternal)

	_, err = svc.Search(ctx, SearchInput{CallerID: "u-1"})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestDetails(t *testing.T) {
	users := &countingRepo{UserRepository: memory.NewUserRepository(&entity.User{
		ID: "u-1", Email: "a@x.com", PasswordHash: "h", FirstName: "A", LastName: "B",
		Position: "Engineer", PositionSeniorityIndex: rank(4),
	})}
	svc := newTestService(t, users)

	got, err := svc.Details(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, Profile{
		Username: "a@x.com", FirstName: "A", LastName: "B", ID: "u-1",
		Position: "Engineer", PositionSeniorityIndex: rank(4),
	}, *got)

	_, err = svc.Details(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDetails_ReadThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := helpers.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })

	users := &countingRepo{UserRepository: memory.NewUserRepository(&entity.User{
		ID: "u-1", Email: "a@x.com", PasswordHash: "h", FirstName: "A", LastName: "B", PositionSeniorityIndex: rank(4),
	})}
	svc := newTestService(t, users)
	svc.Cache = cache.NewProfileCache(rdb, time.Minute)
	ctx := context.Background()

	first, err := svc.Details(ctx, "u-1")
	require.NoError(t, err)
	second, err := svc.Details(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, users.findByID)

	mr.Close()
	third, err := svc.Details(ctx, "u-1")
	require.NoError(t, err, "cache outage degrades to the repository")
	assert.Equal(t, first, third)
	assert.Equal(t, 2, users.findByID)
}

func orgChart() *memory.UserRepository {
	return memory.NewUserRepository(
		&entity.User{ID: "ceo", Email: "ceo@x.com", FirstName: "Grace", LastName: "Hopper", PositionSeniorityIndex: rank(1)},
		&entity.User{ID: "vp", Email: "vp@x.com", FirstName: "Alan", LastName: "Turing", PositionSeniorityIndex: rank(2)},
		&entity.User{ID: "lead", Email: "lead@x.com", FirstName: "Ada", LastName: "Lovelace", PositionSeniorityIndex: rank(3)},
		&entity.User{ID: "peer", Email: "peer@x.com", FirstName: "Linus", LastName: "Torvalds", PositionSeniorityIndex: rank(3)},
		&entity.User{ID: "dev", Email: "dev@x.com", FirstName: "Ken", LastName: "Thompson", PositionSeniorityIndex: rank(5)},
		&entity.User{ID: "new", Email: "new@x.com", FirstName: "Dennis", LastName: "Ritchie"},
	)
}

func ids(ps []Profile) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestSearch(t *testing.T) {
	svc := newTestService(t, orgChart())
	ctx := context.Background()

	tests := []struct {
		name    string
		in      SearchInput
		want    []string
		wantErr error
	}{
		{name: "empty filter", in: SearchInput{CallerID: "lead"}, want: []string{"ceo", "vp", "peer"}},
		{name: "filter on first name", in: SearchInput{CallerID: "lead", Filter: "^Al"}, want: []string{"vp"}},
		{name: "filter on last name", in: SearchInput{CallerID: "lead", Filter: "Tor"}, want: []string{"peer"}},
		{name: "case sensitive", in: SearchInput{CallerID: "lead", Filter: "grace"}, want: []string{}},
		{name: "claimed seniority narrows", in: SearchInput{CallerID: "lead", ClaimedSeniority: rank(2)}, want: []string{"ceo", "vp"}},
		{name: "claimed seniority never widens", in: SearchInput{CallerID: "vp", ClaimedSeniority: rank(9)}, want: []string{"ceo"}},
		{name: "unranked caller sees nobody", in: SearchInput{CallerID: "new"}, want: []string{}},
		{name: "junior caller", in: SearchInput{CallerID: "dev"}, want: []string{"ceo", "vp", "lead", "peer"}},
		{name: "invalid filter", in: SearchInput{CallerID: "lead", Filter: "(["}, wantErr: ErrInvalidInput},
		{name: "unknown caller", in: SearchInput{CallerID: "ghost"}, wantErr: ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Search(ctx, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(got))
		})
	}
}

// leakySearcher ignores the predicate and returns everyone.
type leakySearcher struct{ users []*entity.User }

func (l leakySearcher) Search(context.Context, repo.DirectoryQuery) ([]*entity.User, error) {
	return l.users, nil
}

func TestSearch_EnforcesVisibilityOverBackend(t *testing.T) {
	users := orgChart()
	svc := newTestService(t, users)

	var everyone []*entity.User
	for _, id := range []string{"ceo", "vp", "lead", "peer", "dev", "new"} {
		u, err := users.FindByID(context.Background(), id)
		require.NoError(t, err)
		everyone = append(everyone, u)
	}
	svc.Searcher = leakySearcher{users: everyone}

	got, err := svc.Search(context.Background(), SearchInput{CallerID: "lead"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ceo", "vp", "peer"}, ids(got))
}

func TestSearch_BackendResultsHeldToFilter(t *testing.T) {
	users := orgChart()
	svc := newTestService(t, users)

	var everyone []*entity.User
	for _, id := range []string{"ceo", "vp", "lead", "peer", "dev", "new"} {
		u, err := users.FindByID(context.Background(), id)
		require.NoError(t, err)
		everyone = append(everyone, u)
	}
	svc.Searcher = leakySearcher{users: everyone}

	got, err := svc.Search(context.Background(), SearchInput{CallerID: "lead", Filter: "^Al"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vp"}, ids(got))
}

type rejectingSearcher struct{}

func (rejectingSearcher) Search(context.Context, repo.DirectoryQuery) ([]*entity.User, error) {
	return nil, fmt.Errorf("%w: invalid regular expression: brackets [] not balanced", repo.ErrInvalidFilter)
}

func TestSearch_BackendRejectedFilterIsInvalidInput(t *testing.T) {
	svc := newTestService(t, orgChart())
	svc.Searcher = rejectingSearcher{}

	_, err := svc.Search(context.Background(), SearchInput{CallerID: "lead", Filter: "Al"})
	require.ErrorIs(t, err, ErrInvalidInput)
	var ie *InputError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Fields, "filter")
	assert.NotErrorIs(t, err, ErrInternal)
}
