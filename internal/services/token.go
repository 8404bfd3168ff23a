package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

var (
	ErrInvalidToken = apperrors.Unauthorized("invalid or expired token")
	ErrRevokedToken = apperrors.Unauthorized("token has been revoked")
)

// Claims is the JWT body: sub = user id, jti = token id used for revocation.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access tokens. Revoked token ids are kept
// in revoked_tokens until the token would have expired anyway.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	db     database.Querier
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, db database.Querier) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, db: db, now: time.Now}
}

// Issue signs a token for the user and returns it with its expiry.
func (s *TokenService) Issue(userID uuid.UUID, role models.Role) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and rejects it when the signature, expiry, subject or role
// is invalid, or when its id has been revoked.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (models.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return models.Identity{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Role.Valid() || claims.ID == "" {
		return models.Identity{}, ErrInvalidToken
	}

	var revoked bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, claims.ID,
	).Scan(&revoked); err != nil {
		return models.Identity{}, err
	}
	if revoked {
		return models.Identity{}, ErrRevokedToken
	}

	return models.Identity{
		UserID:    userID,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke blacklists the identity's token until it expires. Revoking twice is a no-op.
func (s *TokenService) Revoke(ctx context.Context, id models.Identity) error {
	if id.TokenID == "" {
		return errors.New("identity carries no token id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`, id.TokenID, id.UserID, id.ExpiresAt)
	return err
}

// PurgeExpired drops revocations whose tokens can no longer be presented.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
