package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
	"github.com/oksasatya/staff-directory/internal/domain/repository"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
	invalidRegularExpression  = "2201B"
)

// DBTX is the subset of *pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id::text, email, password_hash, first_name, last_name, phone,
		       position, position_seniority_index, first_login, otp_code, otp_expiry,
		       created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone,
		                   position, position_seniority_index, first_login, otp_code, otp_expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone,
		u.Position, u.PositionSeniorityIndex, u.FirstLogin, u.OTPCode, u.OTPExpiry)

	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1::uuid
	`, id)
	u, err := scanOne(row)
	if pgErrCode(err) == invalidTextRepresentation {
		// Not a uuid, so no such user.
		return nil, repository.ErrNotFound
	}
	return u, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	return scanOne(row)
}

// Search runs the directory predicate with POSIX regex matching, which is
// case-sensitive like the in-process matcher. NULL seniority never qualifies.
// Patterns Postgres cannot compile come back as ErrInvalidFilter.
func (r *UserRepository) Search(ctx context.Context, q repository.DirectoryQuery) ([]*entity.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE (first_name ~ $1 OR last_name ~ $1)
		  AND position_seniority_index <= $2
		  AND id <> $3::uuid
		ORDER BY position_seniority_index, last_name, first_name
	`, q.Filter, q.MaxSeniorityIndex, q.ExcludeUserID)
	if err != nil {
		return nil, searchError(err)
	}
	defer rows.Close()

	out := make([]*entity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, searchError(err)
	}
	return out, nil
}

func scanOne(row pgx.Row) (*entity.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var (
		otpCode   *int
		otpExpiry *string
		created   time.Time
		updated   time.Time
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.Position, &u.PositionSeniorityIndex, &u.FirstLogin, &otpCode, &otpExpiry,
		&created, &updated); err != nil {
		return nil, err
	}
	if otpCode != nil {
		u.OTPCode = *otpCode
	}
	if otpExpiry != nil {
		u.OTPExpiry = *otpExpiry
	}
	u.CreatedAt, u.UpdatedAt = created, updated
	return u, nil
}

func searchError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidRegularExpression {
		return fmt.Errorf("%w: %s", repository.ErrInvalidFilter, pgErr.Message)
	}
	return fmt.Errorf("search users: %w", err)
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrCode(err) == uniqueViolation
}

var _ repository.UserRepository = (*UserRepository)(nil)
