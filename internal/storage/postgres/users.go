package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/virelia/tenantgate/internal/tenant"
)

// UserRepository persists local user records keyed by external provider
// subject.
type UserRepository struct {
	db Querier
}

// NewUserRepository builds a UserRepository over db.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

const findUserBySubjectSQL = `
SELECT id, provider_subject_id, email, display_name, role, created_at
FROM users
WHERE provider_subject_id = $1`

// FindByProviderSubjectID returns the user owning the given external
// subject. Absence is (nil, false, nil).
func (r *UserRepository) FindByProviderSubjectID(ctx context.Context, subjectID string) (*tenant.User, bool, error) {
	var user tenant.User
	err := r.db.QueryRow(ctx, findUserBySubjectSQL, subjectID).Scan(
		&user.ID,
		&user.ProviderSubjectID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find user by subject: %w", err)
	}
	return &user, true, nil
}

const createUserSQL = `
INSERT INTO users (id, provider_subject_id, email, display_name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`

// Create inserts a user record. A missing ID is generated.
func (r *UserRepository) Create(ctx context.Context, user *tenant.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, createUserSQL,
		user.ID,
		user.ProviderSubjectID,
		user.Email,
		user.DisplayName,
		user.Role,
	).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const deleteUserSQL = `DELETE FROM users WHERE id = $1`

// Delete removes a user record. Deleting an absent user is not an error.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, deleteUserSQL, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

var _ tenant.UserStore = (*UserRepository)(nil)
