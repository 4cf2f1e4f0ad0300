package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virelia/tenantgate/internal/tenant"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUserRepository_FindByProviderSubjectID(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	t.Run("existing user", func(t *testing.T) {
		t.Parallel()

		mock := newMockPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(findUserBySubjectSQL)).
			WithArgs("sub-1").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "provider_subject_id", "email", "display_name", "role", "created_at",
			}).AddRow("u1", "sub-1", "alex@example.com", "Alex", "user", createdAt))

		repo := NewUserRepository(mock)
		user, found, err := repo.FindByProviderSubjectID(context.Background(), "sub-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "alex@example.com", user.Email)
		assert.Equal(t, createdAt, user.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent user", func(t *testing.T) {
		t.Parallel()

		mock := newMockPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(findUserBySubjectSQL)).
			WithArgs("sub-ghost").
			WillReturnError(pgx.ErrNoRows)

		repo := NewUserRepository(mock)
		user, found, err := repo.FindByProviderSubjectID(context.Background(), "sub-ghost")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, user)
	})

	t.Run("query failure", func(t *testing.T) {
		t.Parallel()

		mock := newMockPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(findUserBySubjectSQL)).
			WithArgs("sub-1").
			WillReturnError(errors.New("connection reset"))

		repo := NewUserRepository(mock)
		_, found, err := repo.FindByProviderSubjectID(context.Background(), "sub-1")
		assert.Error(t, err)
		assert.False(t, found)
	})
}

func TestUserRepository_Create(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	t.Run("generates id when missing", func(t *testing.T) {
		t.Parallel()

		mock := newMockPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(createUserSQL)).
			WithArgs(pgxmock.AnyArg(), "sub-1", "alex@example.com", "Alex", "user").
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

		repo := NewUserRepository(mock)
		user := &tenant.User{
			ProviderSubjectID: "sub-1",
			Email:             "alex@example.com",
			DisplayName:       "Alex",
			Role:              "user",
		}
		require.NoError(t, repo.Create(context.Background(), user))
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, createdAt, user.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure", func(t *testing.T) {
		t.Parallel()

		mock := newMockPool(t)
		mock.ExpectQuery(regexp.QuoteMeta(createUserSQL)).
			WithArgs("u1", "sub-1", "alex@example.com", "", "").
			WillReturnError(errors.New("duplicate key"))

		repo := NewUserRepository(mock)
		err := repo.Create(context.Background(), &tenant.User{
			ID:                "u1",
			ProviderSubjectID: "sub-1",
			Email:             "alex@example.com",
		})
		assert.Error(t, err)
	})
}

func TestUserRepository_Delete(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteUserSQL)).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewUserRepository(mock)
	require.NoError(t, repo.Delete(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
