package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
	"github.com/AnshRaj112/providerhub-backend/pkg/utils"
)

type sentMail struct{ to, subject, body string }

type recordingMailer struct{ sent []sentMail }

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

var userCols = []string{"id", "email", "password_hash", "role", "display_name", "phone", "created_at", "updated_at"}

var fixedToday = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

func newAuthService(t *testing.T) (*AuthService, sqlmock.Sqlmock, *recordingMailer) {
	t.Helper()
	db, mock := newMockDB(t)
	mailer := &recordingMailer{}
	svc := NewAuthService(db, NewTokenService("secret", time.Hour, db), mailer, "https://app.example/", testLog)
	svc.now = func() time.Time { return fixedToday }
	return svc, mock, mailer
}

func providerInput(dob string) RegisterProviderInput {
	one := 150
	return RegisterProviderInput{
		Email:                 "Rose@Example.com",
		Password:              "supersecret",
		DisplayName:           "Rose",
		RealName:              "Rosalind Doe",
		Phone:                 "+15551234567",
		DateOfBirth:           dob,
		State:                 "NY",
		City:                  "New York",
		Bio:                   "Friendly and punctual.",
		Services:              []string{"dinner-date"},
		Rates:                 models.ProviderRates{OneHour: &one},
		Stats:                 RegistrationStats{HeightCm: 170, WeightKg: 60, BodyType: "slim", Ethnicity: "mixed"},
		Gallery:               []string{"https://cdn/1.jpg", "https://cdn/2.jpg", "https://cdn/3.jpg"},
		CoverURL:              "https://cdn/cover.jpg",
		AvatarURL:             "https://cdn/avatar.jpg",
		VerificationSelfieURL: "https://cdn/selfie.jpg",
	}
}

func TestRegisterGuestNormalizesEmail(t *testing.T) {
	svc, mock, _ := newAuthService(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("jane@example.com", sqlmock.AnyArg(), models.RoleGuest, "Jane", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id.String(), fixedToday, fixedToday))
	mock.ExpectCommit()

	res, err := svc.RegisterGuest(context.Background(), RegisterGuestInput{
		Email: "  Jane@Example.COM ", Password: "password1", DisplayName: "Jane",
	})
	require.NoError(t, err)
	assert.Equal(t, id, res.User.ID)
	assert.Equal(t, "jane@example.com", res.User.Email)
	assert.NotEmpty(t, res.Token)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, mock, _ := newAuthService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := svc.RegisterGuest(context.Background(), RegisterGuestInput{
		Email: "JANE@example.com", Password: "password1", DisplayName: "Jane",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, 409, apperrors.StatusOf(err))
}

func TestRegisterProviderRejectsMinor(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, err := svc.RegisterProvider(context.Background(), providerInput("2008-03-16"))

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Fields, "date_of_birth")
}

func TestRegisterProviderRequiresPositiveRate(t *testing.T) {
	svc, _, _ := newAuthService(t)

	in := providerInput("1995-01-01")
	in.Rates = models.ProviderRates{}
	_, err := svc.RegisterProvider(context.Background(), in)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "rates")

	zero := 0
	in.Rates = models.ProviderRates{OneHour: &zero}
	_, err = svc.RegisterProvider(context.Background(), in)
	assert.Equal(t, 400, apperrors.StatusOf(err))
}

func TestRegisterProviderExactly18CreatesEverything(t *testing.T) {
	svc, mock, _ := newAuthService(t)
	userID, providerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("rose@example.com", sqlmock.AnyArg(), models.RoleProvider, "Rose", "+15551234567").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(userID.String(), fixedToday, fixedToday))
	mock.ExpectQuery("INSERT INTO provider_profiles").
		WithArgs(userID, "Rose", "NY", "New York", "Friendly and punctual.", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(providerID.String()))
	for _, url := range []string{"https://cdn/1.jpg", "https://cdn/2.jpg", "https://cdn/3.jpg"} {
		mock.ExpectExec("INSERT INTO provider_media").
			WithArgs(providerID, url, models.MediaImage, false, false).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("INSERT INTO provider_media").
		WithArgs(providerID, "https://cdn/cover.jpg", models.MediaImage, true, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO provider_media").
		WithArgs(providerID, "https://cdn/avatar.jpg", models.MediaImage, false, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO provider_media").
		WithArgs(providerID, "https://cdn/selfie.jpg", models.MediaVerification, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.RegisterProvider(context.Background(), providerInput("2008-03-15"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleProvider, res.User.Role)
}

func TestRegisterProviderRollsBackOnMediaFailure(t *testing.T) {
	svc, mock, _ := newAuthService(t)
	userID, providerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(userID.String(), fixedToday, fixedToday))
	mock.ExpectQuery("INSERT INTO provider_profiles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(providerID.String()))
	mock.ExpectExec("INSERT INTO provider_media").WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	_, err := svc.RegisterProvider(context.Background(), providerInput("1990-06-01"))
	require.Error(t, err)
	assert.True(t, database.IsForeignKeyViolation(err))
}

func TestLogin(t *testing.T) {
	svc, mock, _ := newAuthService(t)
	hash, err := utils.HashPassword("password1")
	require.NoError(t, err)
	id := uuid.New()

	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(userCols).AddRow(id.String(), "jane@example.com", hash, "GUEST", "Jane", nil, fixedToday, fixedToday)
	}

	mock.ExpectQuery("FROM users WHERE email = \\$1").WithArgs("jane@example.com").WillReturnRows(row())
	res, err := svc.Login(context.Background(), "Jane@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, id, res.User.ID)

	mock.ExpectQuery("FROM users WHERE email = \\$1").WillReturnRows(row())
	_, err = svc.Login(context.Background(), "jane@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	mock.ExpectQuery("FROM users WHERE email = \\$1").WillReturnRows(sqlmock.NewRows(userCols))
	_, err = svc.Login(context.Background(), "ghost@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestForgotPasswordUnknownEmailSucceedsSilently(t *testing.T) {
	svc, mock, mailer := newAuthService(t)

	mock.ExpectQuery("FROM users WHERE email").WillReturnRows(sqlmock.NewRows(userCols))

	require.NoError(t, svc.ForgotPassword(context.Background(), "ghost@example.com"))
	assert.Empty(t, mailer.sent)
}

func TestForgotPasswordStoresHashAndMailsToken(t *testing.T) {
	svc, mock, mailer := newAuthService(t)
	id := uuid.New()

	mock.ExpectQuery("FROM users WHERE email").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id.String(), "jane@example.com", "x", "GUEST", "Jane", nil, fixedToday, fixedToday))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE password_reset_tokens SET used_at = NOW\\(\\)").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO password_reset_tokens").
		WithArgs(id, sqlmock.AnyArg(), fixedToday.Add(PasswordResetTTL)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.ForgotPassword(context.Background(), "jane@example.com"))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "jane@example.com", mailer.sent[0].to)
	assert.True(t, strings.Contains(mailer.sent[0].body, "https://app.example/reset-password?token="))
}

var resetCols = []string{"id", "user_id", "expires_at", "used_at"}

func TestResetPasswordConsumesToken(t *testing.T) {
	svc, mock, _ := newAuthService(t)
	tokenID, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM password_reset_tokens WHERE token_hash = \\$1 FOR UPDATE").
		WithArgs(utils.HashToken("raw-token")).
		WillReturnRows(sqlmock.NewRows(resetCols).AddRow(tokenID.String(), userID.String(), fixedToday.Add(10*time.Minute), nil))
	mock.ExpectExec("UPDATE password_reset_tokens SET used_at").WithArgs(tokenID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET password_hash").WithArgs(userID, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.ResetPassword(context.Background(), ResetPasswordInput{Token: "raw-token", Password: "new-password"}))
}

func TestResetPasswordRejectsUsedExpiredOrUnknown(t *testing.T) {
	used := fixedToday.Add(-time.Minute)
	cases := map[string]*sqlmock.Rows{
		"used":    sqlmock.NewRows(resetCols).AddRow(uuid.NewString(), uuid.NewString(), fixedToday.Add(time.Minute), used),
		"expired": sqlmock.NewRows(resetCols).AddRow(uuid.NewString(), uuid.NewString(), fixedToday.Add(-time.Second), nil),
		"unknown": sqlmock.NewRows(resetCols),
	}

	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			svc, mock, _ := newAuthService(t)
			mock.ExpectBegin()
			mock.ExpectQuery("FROM password_reset_tokens").WillReturnRows(rows)
			mock.ExpectRollback()

			err := svc.ResetPassword(context.Background(), ResetPasswordInput{Token: "raw", Password: "new-password"})
			assert.ErrorIs(t, err, ErrInvalidResetToken)
		})
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	svc, mock, _ := newAuthService(t)
	hash, err := utils.HashPassword("password1")
	require.NoError(t, err)
	id := uuid.New()

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id.String(), "jane@example.com", hash, "GUEST", "Jane", nil, fixedToday, fixedToday))

	err = svc.ChangePassword(context.Background(), id, ChangePasswordInput{CurrentPassword: "nope", NewPassword: "password2"})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "current_password")
}
