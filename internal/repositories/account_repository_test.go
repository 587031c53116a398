package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newAccountRepo(t *testing.T) *PostgresAccountRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	r := NewPostgresAccountRepository(db, NewRedisSessionRepository(nil, "test-secret", time.Hour))
	r.cost = bcrypt.MinCost
	require.NoError(t, r.Migrate())
	return r
}

func TestAccountSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	r := newAccountRepo(t)

	acc, err := r.Create(ctx, " Ann@Example.com ", "secret123", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", acc.Email)
	assert.NotEqual(t, "secret123", acc.PasswordHash)

	_, err = r.Create(ctx, "ann@example.com", "other", "Ann Again")
	assert.ErrorIs(t, err, ErrConflict)

	s, err := r.CreateSession(ctx, "ANN@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, s.AccountID)

	got, err := r.Get(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, "Ann", got.Name)

	require.NoError(t, r.DeleteSession(ctx, s.Token))
}

func TestAccountBadCredentials(t *testing.T) {
	ctx := context.Background()
	r := newAccountRepo(t)

	_, err := r.Create(ctx, "ann@example.com", "secret123", "Ann")
	require.NoError(t, err)

	_, err = r.CreateSession(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = r.CreateSession(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = r.Get(ctx, "garbage")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestAccountDeletedAfterSignIn(t *testing.T) {
	ctx := context.Background()
	r := newAccountRepo(t)

	acc, err := r.Create(ctx, "ann@example.com", "secret123", "Ann")
	require.NoError(t, err)
	s, err := r.CreateSession(ctx, "ann@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, r.db.Delete(acc).Error)
	_, err = r.Get(ctx, s.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}
