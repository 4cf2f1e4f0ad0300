package postgres

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/virelia/tenantgate/internal/auth/apikey"
)

const rawKeyPrefix = "tgk_"

// APIKeyRepository persists API keys. Only the SHA-256 digest of the raw
// secret is stored; the deterministic digest doubles as the lookup index.
type APIKeyRepository struct {
	db Querier
}

// NewAPIKeyRepository builds an APIKeyRepository over db.
func NewAPIKeyRepository(db Querier) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

const findActiveKeySQL = `
SELECT id, name, tenant_id, expires_at, created_at, active
FROM api_keys
WHERE key_digest = $1 AND active`

// FindActiveKey resolves a raw secret to its stored key. Absence is
// (nil, false, nil). Expiry is left to the caller so the rejection can say
// expired rather than unknown.
func (r *APIKeyRepository) FindActiveKey(ctx context.Context, raw string) (*apikey.Key, bool, error) {
	var (
		key       apikey.Key
		expiresAt *time.Time
	)
	err := r.db.QueryRow(ctx, findActiveKeySQL, digest(raw)).Scan(
		&key.ID,
		&key.Name,
		&key.TenantID,
		&expiresAt,
		&key.CreatedAt,
		&key.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find api key: %w", err)
	}
	if expiresAt != nil {
		key.ExpiresAt = *expiresAt
	}
	return &key, true, nil
}

const createKeySQL = `
INSERT INTO api_keys (id, name, tenant_id, key_digest, expires_at, active)
VALUES ($1, $2, $3, $4, $5, TRUE)
RETURNING created_at`

// Create mints a new key for tenantID. The returned raw secret is shown to
// the caller exactly once and cannot be recovered afterwards. A zero
// expiresAt means the key never expires.
func (r *APIKeyRepository) Create(ctx context.Context, tenantID, name string, expiresAt time.Time) (string, *apikey.Key, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate api key: %w", err)
	}
	raw := rawKeyPrefix + hex.EncodeToString(buf)

	key := &apikey.Key{
		ID:        uuid.NewString(),
		Name:      name,
		TenantID:  tenantID,
		ExpiresAt: expiresAt,
		Active:    true,
	}

	var expiry *time.Time
	if !expiresAt.IsZero() {
		expiry = &expiresAt
	}

	err := r.db.QueryRow(ctx, createKeySQL,
		key.ID,
		key.Name,
		key.TenantID,
		digest(raw),
		expiry,
	).Scan(&key.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("create api key: %w", err)
	}
	return raw, key, nil
}

const deactivateKeySQL = `
UPDATE api_keys
SET active = FALSE
WHERE id = $1 AND tenant_id = $2`

// Deactivate revokes a key within its tenant. Revoking an unknown or
// foreign key reports absence.
func (r *APIKeyRepository) Deactivate(ctx context.Context, tenantID, keyID string) (bool, error) {
	tag, err := r.db.Exec(ctx, deactivateKeySQL, keyID, tenantID)
	if err != nil {
		return false, fmt.Errorf("deactivate api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const listKeysByTenantSQL = `
SELECT id, name, tenant_id, expires_at, created_at, active
FROM api_keys
WHERE tenant_id = $1
ORDER BY created_at DESC`

// ListByTenant returns every key minted for tenantID, revoked ones
// included.
func (r *APIKeyRepository) ListByTenant(ctx context.Context, tenantID string) ([]apikey.Key, error) {
	rows, err := r.db.Query(ctx, listKeysByTenantSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]apikey.Key, 0)
	for rows.Next() {
		var (
			key       apikey.Key
			expiresAt *time.Time
		)
		if err := rows.Scan(&key.ID, &key.Name, &key.TenantID, &expiresAt, &key.CreatedAt, &key.Active); err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		if expiresAt != nil {
			key.ExpiresAt = *expiresAt
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read api key rows: %w", err)
	}
	return keys, nil
}

var _ apikey.Store = (*APIKeyRepository)(nil)
