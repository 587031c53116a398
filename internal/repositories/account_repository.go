package repositories

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/anonto42/nano-midea/client/internal/models"
)

// SessionRepository issues and checks session tokens
type SessionRepository interface {
	Issue(ctx context.Context, accountID string) (*models.Session, error)
	Verify(ctx context.Context, token string) (*models.SessionClaims, error)
	Revoke(ctx context.Context, token string) error
}

// PostgresAccountRepository implements the account service on PostgreSQL
type PostgresAccountRepository struct {
	db       *gorm.DB
	sessions SessionRepository
	cost     int
}

// NewPostgresAccountRepository creates a new PostgresAccountRepository
func NewPostgresAccountRepository(db *gorm.DB, sessions SessionRepository) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db, sessions: sessions, cost: bcrypt.DefaultCost}
}

// Migrate creates the accounts table
func (r *PostgresAccountRepository) Migrate() error {
	return r.db.AutoMigrate(&models.Account{})
}

// Create registers a new account
func (r *PostgresAccountRepository) Create(ctx context.Context, email, password, name string) (*models.Account, error) {
	email = normalizeEmail(email)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, translateGorm(err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: email %s", ErrConflict, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, translateGorm(err)
	}
	return account, nil
}

// CreateSession signs in with email and password
func (r *PostgresAccountRepository) CreateSession(ctx context.Context, email, password string) (*models.Session, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, translateGorm(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return r.sessions.Issue(ctx, account.ID)
}

// Get returns the account behind a session token
func (r *PostgresAccountRepository) Get(ctx context.Context, token string) (*models.Account, error) {
	claims, err := r.sessions.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	var account models.Account
	err = r.db.WithContext(ctx).First(&account, "id = ?", claims.AccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: account %s no longer exists", ErrSessionExpired, claims.AccountID)
	}
	if err != nil {
		return nil, translateGorm(err)
	}
	return &account, nil
}

// DeleteSession signs out
func (r *PostgresAccountRepository) DeleteSession(ctx context.Context, token string) error {
	return r.sessions.Revoke(ctx, token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func translateGorm(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
