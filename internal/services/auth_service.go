package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
	"github.com/AnshRaj112/providerhub-backend/pkg/utils"
)

const (
	PasswordResetTTL = 30 * time.Minute
	resetTokenBytes  = 32
)

var (
	ErrEmailTaken         = apperrors.Conflict("email is already registered")
	ErrInvalidCredentials = apperrors.Unauthorized("invalid email or password")
	ErrInvalidResetToken  = apperrors.BadRequest("reset token is invalid or expired")
)

type RegisterGuestInput struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=100"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
}

// RegistrationStats are the physical attributes a provider must declare at signup.
type RegistrationStats struct {
	HeightCm  int      `json:"height_cm" validate:"required,gt=0,lt=300"`
	WeightKg  int      `json:"weight_kg" validate:"required,gt=0,lt=500"`
	BodyType  string   `json:"body_type" validate:"required,max=50"`
	Ethnicity string   `json:"ethnicity" validate:"required,max=50"`
	HairColor string   `json:"hair_color" validate:"omitempty,max=50"`
	EyeColor  string   `json:"eye_color" validate:"omitempty,max=50"`
	Languages []string `json:"languages" validate:"omitempty,max=10,dive,required,max=50"`
}

type RegisterProviderInput struct {
	Email                 string               `json:"email" validate:"required,email,max=255"`
	Password              string               `json:"password" validate:"required,min=8,max=128"`
	DisplayName           string               `json:"display_name" validate:"required,min=2,max=100"`
	RealName              string               `json:"real_name" validate:"required,min=2,max=150"`
	Phone                 string               `json:"phone" validate:"required,phone"`
	DateOfBirth           string               `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	State                 string               `json:"state" validate:"required,max=100"`
	City                  string               `json:"city" validate:"required,max=100"`
	Bio                   string               `json:"bio" validate:"required,min=10,max=2000"`
	Services              []string             `json:"services" validate:"required,min=1,max=30,dive,required,max=50"`
	Rates                 models.ProviderRates `json:"rates"`
	Stats                 RegistrationStats    `json:"stats"`
	Gallery               []string             `json:"gallery" validate:"required,min=3,max=30,dive,required,url"`
	CoverURL              string               `json:"cover_url" validate:"required,url"`
	AvatarURL             string               `json:"avatar_url" validate:"required,url"`
	VerificationSelfieURL string               `json:"verification_selfie_url" validate:"required,url"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// AuthResult is returned by every operation that logs a user in.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

type AuthService struct {
	db          *database.DB
	tokens      *TokenService
	mailer      Mailer
	log         *logrus.Logger
	frontendURL string
	now         func() time.Time
}

func NewAuthService(db *database.DB, tokens *TokenService, mailer Mailer, frontendURL string, log *logrus.Logger) *AuthService {
	return &AuthService{
		db:          db,
		tokens:      tokens,
		mailer:      mailer,
		log:         log,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func insertUser(ctx context.Context, tx *sql.Tx, u *models.User) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, role, display_name, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, u.Email, u.PasswordHash, u.Role, u.DisplayName, u.Phone).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func insertMedia(ctx context.Context, tx *sql.Tx, providerID uuid.UUID, url string, kind models.MediaType, isCover, isAvatar bool) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO provider_media (provider_id, url, media_type, is_cover, is_avatar)
		VALUES ($1, $2, $3, $4, $5)
	`, providerID, url, kind, isCover, isAvatar)
	return err
}

func (s *AuthService) issue(u models.User) (AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *AuthService) RegisterGuest(ctx context.Context, in RegisterGuestInput) (AuthResult, error) {
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return AuthResult{}, err
	}

	u := models.User{
		Email:        utils.NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         models.RoleGuest,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Phone:        optional(in.Phone),
	}
	if err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return insertUser(ctx, tx, &u)
	}); err != nil {
		return AuthResult{}, err
	}

	s.log.WithField("user_id", u.ID).Info("Guest registered")
	return s.issue(u)
}

// RegisterProvider creates the user, a PENDING profile and every onboarding media row atomically.
func (s *AuthService) RegisterProvider(ctx context.Context, in RegisterProviderInput) (AuthResult, error) {
	dob, err := time.Parse("2006-01-02", in.DateOfBirth)
	if err != nil {
		return AuthResult{}, apperrors.Field("date_of_birth", "must be a date in the format 2006-01-02")
	}
	if !utils.IsAdult(dob, s.now()) {
		return AuthResult{}, apperrors.Field("date_of_birth", "you must be at least 18 years old")
	}
	if in.Rates.Count() == 0 {
		return AuthResult{}, apperrors.Field("rates", "at least one rate is required")
	}
	if err := in.Rates.Validate(); err != nil {
		return AuthResult{}, apperrors.Field("rates", err.Error())
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return AuthResult{}, err
	}

	phone := strings.TrimSpace(in.Phone)
	realName := strings.TrimSpace(in.RealName)
	age := utils.AgeOn(dob, s.now())
	contacts := []string{phone}
	stats := models.ProviderStats{
		RealName:       &realName,
		ContactNumbers: &contacts,
		Age:            &age,
		HeightCm:       &in.Stats.HeightCm,
		WeightKg:       &in.Stats.WeightKg,
		BodyType:       optional(in.Stats.BodyType),
		Ethnicity:      optional(in.Stats.Ethnicity),
		HairColor:      optional(in.Stats.HairColor),
		EyeColor:       optional(in.Stats.EyeColor),
	}
	if len(in.Stats.Languages) > 0 {
		stats.Languages = &in.Stats.Languages
	}

	u := models.User{
		Email:        utils.NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         models.RoleProvider,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Phone:        &phone,
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, &u); err != nil {
			return err
		}

		var providerID uuid.UUID
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO provider_profiles
				(user_id, display_name, state, city, bio, services, stats, rates, date_of_birth, verification_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, u.ID, u.DisplayName, strings.TrimSpace(in.State), strings.TrimSpace(in.City), strings.TrimSpace(in.Bio),
			pq.StringArray(in.Services), stats, in.Rates, dob, models.StatusPending,
		).Scan(&providerID); err != nil {
			return err
		}

		for _, url := range in.Gallery {
			if err := insertMedia(ctx, tx, providerID, url, models.MediaImage, false, false); err != nil {
				return err
			}
		}
		if err := insertMedia(ctx, tx, providerID, in.CoverURL, models.MediaImage, true, false); err != nil {
			return err
		}
		if err := insertMedia(ctx, tx, providerID, in.AvatarURL, models.MediaImage, false, true); err != nil {
			return err
		}
		return insertMedia(ctx, tx, providerID, in.VerificationSelfieURL, models.MediaVerification, false, false)
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.log.WithField("user_id", u.ID).Info("Provider registered, awaiting verification")
	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := getUserByEmail(ctx, s.db, utils.NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, err
	}

	ok, err := utils.VerifyPassword(password, u.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return getUserByID(ctx, s.db, userID)
}

func (s *AuthService) Logout(ctx context.Context, id models.Identity) error {
	return s.tokens.Revoke(ctx, id)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, in ChangePasswordInput) error {
	u, err := getUserByID(ctx, s.db, userID)
	if err != nil {
		return err
	}
	ok, err := utils.VerifyPassword(in.CurrentPassword, u.PasswordHash)
	if err != nil || !ok {
		return apperrors.Field("current_password", "current password is incorrect")
	}

	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, hash)
	return err
}

// ForgotPassword never reveals whether the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := getUserByEmail(ctx, s.db, utils.NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		s.log.Debug("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := utils.RandomToken(resetTokenBytes)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE password_reset_tokens SET used_at = NOW()
			WHERE user_id = $1 AND used_at IS NULL
		`, u.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO password_reset_tokens (user_id, token_hash, expires_at)
			VALUES ($1, $2, $3)
		`, u.ID, utils.HashToken(token), s.now().Add(PasswordResetTTL))
		return err
	})
	if err != nil {
		return err
	}

	subject, body := passwordResetEmail(s.frontendURL, token)
	if err := s.mailer.Send(ctx, u.Email, subject, body); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Error("Failed to send password reset email")
	}
	return nil
}

// ResetPassword consumes a reset token. The token row is locked so concurrent
// redemptions of the same token serialize and only one succeeds.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var (
			tokenID   uuid.UUID
			userID    uuid.UUID
			expiresAt time.Time
			usedAt    *time.Time
		)
		err := tx.QueryRowContext(ctx, `
			SELECT id, user_id, expires_at, used_at
			FROM password_reset_tokens
			WHERE token_hash = $1
			FOR UPDATE
		`, utils.HashToken(in.Token)).Scan(&tokenID, &userID, &expiresAt, &usedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return err
		}
		if usedAt != nil || !expiresAt.After(s.now()) {
			return ErrInvalidResetToken
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE password_reset_tokens SET used_at = NOW() WHERE id = $1`, tokenID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, hash)
		return err
	})
}
