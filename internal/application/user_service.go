package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
	repo "github.com/oksasatya/staff-directory/internal/domain/repository"
	"github.com/oksasatya/staff-directory/pkg/helpers"
	"github.com/oksasatya/staff-directory/pkg/mailer"
	"github.com/oksasatya/staff-directory/pkg/mailer/templates"
	"github.com/oksasatya/staff-directory/pkg/validation"
)

const (
	sideEffectTimeout = 3 * time.Second
	maxPasswordBytes  = 72
)

// ProfileCache is a read-through cache of public profiles keyed by user id.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*entity.User, bool, error)
	Set(ctx context.Context, u *entity.User) error
}

// ProfileIndexer receives every newly created profile.
type ProfileIndexer interface {
	IndexUser(ctx context.Context, u *entity.User) error
}

// JobPublisher enqueues background jobs.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type Service struct {
	Repo     repo.UserRepository
	Searcher repo.DirectorySearcher
	Hasher   *helpers.PasswordHasher
	JWT      *helpers.JWTManager
	Logger   *logrus.Logger

	// Optional collaborators; nil disables them.
	Cache     ProfileCache
	Index     ProfileIndexer
	Publisher JobPublisher

	MailEnabled bool
	CompanyName string
}

func NewService(users repo.UserRepository, hasher *helpers.PasswordHasher, jwt *helpers.JWTManager, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		Repo:     users,
		Searcher: users,
		Hasher:   hasher,
		JWT:      jwt,
		Logger:   logger,
	}
}

type SignupInput struct {
	Email     string `json:"email" validate:"required,email,min=3,max=50"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Phone     string `json:"phone" validate:"required"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

type SigninInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AuthResult is returned by Signup and Signin.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      UserRef
}

// Profile is the public projection of a user. Credentials and otp fields are never part of it.
type Profile struct {
	Username               string `json:"username"`
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	ID                     string `json:"id"`
	Position               string `json:"position"`
	PositionSeniorityIndex *int   `json:"positionSeniorityIndex"`
}

func ProfileOf(u *entity.User) Profile {
	return Profile{
		Username:               u.Username(),
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		ID:                     u.ID,
		Position:               u.Position,
		PositionSeniorityIndex: u.PositionSeniorityIndex,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) internal(op string, err error, fields logrus.Fields) error {
	s.Logger.WithError(err).WithFields(fields).Error(op + " failed")
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}

// Signup registers a new account and returns a session token for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	if details := validation.Struct(in); details != nil {
		return nil, &InputError{Fields: details}
	}
	// bcrypt reads at most 72 bytes; the validator's max counts characters.
	if len(in.Password) > maxPasswordBytes {
		return nil, invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}

	existing, err := s.Repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil && existing != nil:
		return nil, ErrDuplicateAccount
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return nil, s.internal("signup lookup", err, logrus.Fields{"email": in.Email})
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal("hash password", err, logrus.Fields{"email": in.Email})
	}

	u := &entity.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		FirstLogin:   true,
		OTPCode:      entity.PlaceholderOTPCode,
		OTPExpiry:    entity.PlaceholderOTPExpiry,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, ErrDuplicateAccount
		}
		return nil, s.internal("create user", err, logrus.Fields{"email": in.Email})
	}

	token, exp, err := s.JWT.GenerateToken(u.ID)
	if err != nil {
		return nil, s.internal("issue token", err, logrus.Fields{"user_id": u.ID})
	}

	signupsTotal.Add(1)
	s.afterSignup(ctx, u)

	return &AuthResult{Token: token, ExpiresAt: exp, User: UserRef{ID: u.ID, Username: u.Username()}}, nil
}

// afterSignup runs the best-effort side effects of a new account.
func (s *Service) afterSignup(ctx context.Context, u *entity.User) {
	log := s.Logger.WithField("user_id", u.ID)

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, u); err != nil {
			log.WithError(err).Warn("profile cache set failed")
		}
	}

	if s.Index != nil {
		c, cancel := context.WithTimeout(ctx, sideEffectTimeout)
		if err := s.Index.IndexUser(c, u); err != nil {
			log.WithError(err).Warn("directory index failed")
		}
		cancel()
	}

	if s.Publisher != nil && s.MailEnabled {
		job, err := mailer.NewTemplateJob(u.Email, templates.Welcome, templates.WelcomeData{
			FirstName:   u.FirstName,
			Email:       u.Email,
			CompanyName: s.CompanyName,
			CreatedAt:   u.CreatedAt,
		})
		if err != nil {
			log.WithError(err).Warn("build welcome email failed")
			return
		}
		c, cancel := context.WithTimeout(ctx, sideEffectTimeout)
		defer cancel()
		if err := s.Publisher.PublishJSON(c, job); err != nil {
			log.WithError(err).Warn("enqueue welcome email failed")
		}
	}
}

// Signin verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Signin(ctx context.Context, in SigninInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if details := validation.Struct(in); details != nil {
		return nil, &InputError{Fields: details}
	}

	u, err := s.Repo.FindByEmail(ctx, in.Email)
	if errors.Is(err, repo.ErrNotFound) {
		signinFailuresTotal.Add(1)
		s.Logger.WithField("email", in.Email).Info("signin: unknown email")
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, s.internal("signin lookup", err, logrus.Fields{"email": in.Email})
	}

	if !s.Hasher.Verify(in.Password, u.PasswordHash) {
		signinFailuresTotal.Add(1)
		s.Logger.WithField("user_id", u.ID).Info("signin: wrong password")
		return nil, ErrUnauthorized
	}

	token, exp, err := s.JWT.GenerateToken(u.ID)
	if err != nil {
		return nil, s.internal("issue token", err, logrus.Fields{"user_id": u.ID})
	}

	signinsTotal.Add(1)
	return &AuthResult{Token: token, ExpiresAt: exp, User: UserRef{ID: u.ID, Username: u.Username()}}, nil
}

// Details returns the caller's own profile, served from the cache when possible.
func (s *Service) Details(ctx context.Context, userID string) (*Profile, error) {
	if s.Cache != nil {
		u, ok, err := s.Cache.Get(ctx, userID)
		if err != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("profile cache get failed")
		}
		if ok {
			p := ProfileOf(u)
			return &p, nil
		}
	}

	u, err := s.Repo.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.internal("details lookup", err, logrus.Fields{"user_id": userID})
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, u); err != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("profile cache set failed")
		}
	}
	p := ProfileOf(u)
	return &p, nil
}

type SearchInput struct {
	// CallerID is the authenticated user id.
	CallerID string
	Filter   string
	// ClaimedSeniority may narrow the caller's stored seniority but never widen it.
	ClaimedSeniority *int
}

// Search lists colleagues whose first or last name matches Filter and who
// rank at or below the caller. The caller is never part of the result.
func (s *Service) Search(ctx context.Context, in SearchInput) ([]Profile, error) {
	caller, err := s.Repo.FindByID(ctx, in.CallerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, s.internal("search caller lookup", err, logrus.Fields{"user_id": in.CallerID})
	}

	q, err := repo.NewDirectoryQuery(in.Filter, 0, caller.ID)
	if err != nil {
		return nil, invalid("filter", err.Error())
	}
	searchesTotal.Add(1)

	if caller.PositionSeniorityIndex == nil {
		return []Profile{}, nil
	}
	q.MaxSeniorityIndex = *caller.PositionSeniorityIndex
	if in.ClaimedSeniority != nil && *in.ClaimedSeniority < q.MaxSeniorityIndex {
		q.MaxSeniorityIndex = *in.ClaimedSeniority
	}

	users, err := s.Searcher.Search(ctx, q)
	if errors.Is(err, repo.ErrInvalidFilter) {
		return nil, invalid("filter", err.Error())
	}
	if err != nil {
		return nil, s.internal("directory search", err, logrus.Fields{"user_id": caller.ID})
	}

	out := make([]Profile, 0, len(users))
	for _, u := range users {
		// Backend regex dialects differ; results are held to the in-process matcher.
		if !q.Matches(u) {
			continue
		}
		out = append(out, ProfileOf(u))
	}
	return out, nil
}
