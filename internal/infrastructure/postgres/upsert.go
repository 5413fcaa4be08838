package postgres

import (
	"context"
	"fmt"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
)

// Upsert inserts u, or places an existing account with the same email in the
// org chart. Credentials of an existing account are left untouched. u.ID and
// the timestamps are replaced with the stored values.
func (r *UserRepository) Upsert(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone,
		                   position, position_seniority_index, first_login, otp_code, otp_expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT ((lower(email))) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    position = EXCLUDED.position,
		    position_seniority_index = EXCLUDED.position_seniority_index,
		    updated_at = now()
		RETURNING id::text, created_at, updated_at
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone,
		u.Position, u.PositionSeniorityIndex, u.FirstLogin, u.OTPCode, u.OTPExpiry)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
