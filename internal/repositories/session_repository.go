package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/anonto42/nano-midea/client/internal/models"
)

const sessionKeyPrefix = "session:"

// DefaultSessionTTL is how long an issued session token stays valid
const DefaultSessionTTL = 7 * 24 * time.Hour

// RedisSessionRepository issues signed session tokens and tracks live sessions in Redis.
// A nil Redis client makes sessions stateless: tokens stay valid until they expire.
type RedisSessionRepository struct {
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSessionRepository creates a new RedisSessionRepository
func NewRedisSessionRepository(rdb *redis.Client, secret string, ttl time.Duration) *RedisSessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionRepository{rdb: rdb, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a new session token for accountID
func (r *RedisSessionRepository) Issue(ctx context.Context, accountID string) (*models.Session, error) {
	now := r.now()
	id := uuid.NewString()
	expires := now.Add(r.ttl)

	claims := models.SessionClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	if r.rdb != nil {
		if err := r.rdb.Set(ctx, sessionKeyPrefix+id, accountID, r.ttl).Err(); err != nil {
			return nil, translateRedis(err)
		}
	}

	return &models.Session{ID: id, AccountID: accountID, Token: token, ExpiresAt: expires}, nil
}

// Verify returns the claims of a live session token
func (r *RedisSessionRepository) Verify(ctx context.Context, token string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if _, err := parser.ParseWithClaims(token, claims, r.key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if claims.AccountID == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: token carries no session", ErrSessionExpired)
	}

	if r.rdb != nil {
		n, err := r.rdb.Exists(ctx, sessionKeyPrefix+claims.ID).Result()
		if err != nil {
			return nil, translateRedis(err)
		}
		if n == 0 {
			return nil, ErrSessionExpired
		}
	}
	return claims, nil
}

// Revoke ends the session behind token. Expired tokens can still be revoked.
func (r *RedisSessionRepository) Revoke(ctx context.Context, token string) error {
	claims := &models.SessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, r.key); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if r.rdb == nil {
		return nil
	}

	n, err := r.rdb.Del(ctx, sessionKeyPrefix+claims.ID).Result()
	if err != nil {
		return translateRedis(err)
	}
	if n == 0 {
		return ErrSessionExpired
	}
	return nil
}

func (r *RedisSessionRepository) key(*jwt.Token) (interface{}, error) {
	return r.secret, nil
}

func translateRedis(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: redis: %v", ErrUnavailable, err)
}
