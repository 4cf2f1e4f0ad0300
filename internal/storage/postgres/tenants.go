package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/virelia/tenantgate/internal/tenant"
)

// TenantRepository persists tenants and their membership rows.
type TenantRepository struct {
	db Querier
}

// NewTenantRepository builds a TenantRepository over db.
func NewTenantRepository(db Querier) *TenantRepository {
	return &TenantRepository{db: db}
}

const listTenantsForUserSQL = `
SELECT t.id, t.name, t.slug
FROM tenants t
JOIN tenant_members m ON m.tenant_id = t.id
WHERE m.user_id = $1
ORDER BY t.name`

// ListForUser returns every tenant the user is a member of.
func (r *TenantRepository) ListForUser(ctx context.Context, userID string) ([]tenant.Summary, error) {
	rows, err := r.db.Query(ctx, listTenantsForUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list tenants for user: %w", err)
	}
	defer rows.Close()

	tenants := make([]tenant.Summary, 0)
	for rows.Next() {
		var s tenant.Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug); err != nil {
			return nil, fmt.Errorf("scan tenant row: %w", err)
		}
		tenants = append(tenants, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tenant rows: %w", err)
	}
	return tenants, nil
}

const createTenantSQL = `
INSERT INTO tenants (id, name, slug)
VALUES ($1, $2, $3)`

// Create inserts a tenant and returns its generated summary.
func (r *TenantRepository) Create(ctx context.Context, name, slug string) (*tenant.Summary, error) {
	s := &tenant.Summary{ID: uuid.NewString(), Name: name, Slug: slug}
	if _, err := r.db.Exec(ctx, createTenantSQL, s.ID, s.Name, s.Slug); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return s, nil
}

const addMemberSQL = `
INSERT INTO tenant_members (tenant_id, user_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

// AddMember records userID as a member of tenantID. Adding an existing
// member is a no-op.
func (r *TenantRepository) AddMember(ctx context.Context, tenantID, userID string) error {
	if _, err := r.db.Exec(ctx, addMemberSQL, tenantID, userID); err != nil {
		return fmt.Errorf("add tenant member: %w", err)
	}
	return nil
}

const removeMemberSQL = `
DELETE FROM tenant_members
WHERE tenant_id = $1 AND user_id = $2`

// RemoveMember drops userID's membership in tenantID. The change is not
// visible through the membership cache until that user is invalidated.
func (r *TenantRepository) RemoveMember(ctx context.Context, tenantID, userID string) error {
	if _, err := r.db.Exec(ctx, removeMemberSQL, tenantID, userID); err != nil {
		return fmt.Errorf("remove tenant member: %w", err)
	}
	return nil
}

var _ tenant.TenantStore = (*TenantRepository)(nil)
