package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
	"github.com/AnshRaj112/providerhub-backend/internal/validator"
)

var profileCols = []string{
	"id", "user_id", "display_name", "state", "city", "bio", "services", "stats", "rates", "date_of_birth",
	"verification_status", "rejection_reason", "is_suspended", "suspension_reason", "subscription_expires_at",
	"created_at", "updated_at",
}

var mediaCols = []string{"id", "provider_id", "url", "media_type", "is_cover", "is_avatar", "created_at"}

func profileRows(providerID, userID uuid.UUID, bio, stats string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(profileCols).AddRow(
		providerID.String(), userID.String(), "Rose", "NY", "New York", bio, "{dinner,travel}",
		stats, `{"one_hour":150}`, nil, "APPROVED", nil, false, nil, now.Add(24*time.Hour), now, now)
}

func mediaRows(providerID uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(mediaCols).
		AddRow(uuid.NewString(), providerID.String(), "https://cdn/1.jpg", "IMAGE", false, false, now).
		AddRow(uuid.NewString(), providerID.String(), "https://cdn/cover.jpg", "IMAGE", true, false, now).
		AddRow(uuid.NewString(), providerID.String(), "https://cdn/avatar.jpg", "IMAGE", false, true, now)
}

func providerCaller(id uuid.UUID) models.Identity {
	return models.Identity{UserID: id, Role: models.RoleProvider}
}

func expectAssemble(mock sqlmock.Sqlmock, providerID, userID uuid.UUID, bio, stats string) {
	now := time.Now()
	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(userID.String(), "rose@example.com", "x", "PROVIDER", "Rose", nil, now, now))
	mock.ExpectQuery("FROM provider_profiles WHERE user_id = \\$1").WithArgs(userID).
		WillReturnRows(profileRows(providerID, userID, bio, stats))
	mock.ExpectQuery("FROM provider_media").WithArgs(providerID).WillReturnRows(mediaRows(providerID))
}

func TestProfileRequiresProviderRole(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewProviderService(db)

	_, err := svc.GetMine(context.Background(), guest(uuid.New()))
	assert.Equal(t, 403, apperrors.StatusOf(err))

	_, err = svc.UpdateMine(context.Background(), guest(uuid.New()), UpdateProfileInput{})
	assert.Equal(t, 403, apperrors.StatusOf(err))
}

func TestGetMineAssemblesProfile(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)
	userID, providerID := uuid.New(), uuid.New()

	expectAssemble(mock, providerID, userID, "old bio", `{"height_cm":170,"real_name":"Rosalind"}`)

	got, err := svc.GetMine(context.Background(), providerCaller(userID))
	require.NoError(t, err)
	assert.Equal(t, []string{"dinner", "travel"}, got.Provider.Services)
	assert.Equal(t, "Rosalind", *got.Provider.Stats.RealName, "owners see hidden attributes")
	assert.Equal(t, 150, *got.Provider.Rates.OneHour)
	assert.Len(t, got.Media, 3)
}

func TestUpdateMineOnlyBio(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)
	userID, providerID := uuid.New(), uuid.New()
	bio := "new bio"

	mock.ExpectBegin()
	mock.ExpectQuery("FROM provider_profiles WHERE user_id = \\$1 FOR UPDATE").WithArgs(userID).
		WillReturnRows(profileRows(providerID, userID, "old bio", `{}`))
	mock.ExpectExec("UPDATE provider_profiles SET bio = \\$2, updated_at = NOW\\(\\) WHERE id = \\$1").
		WithArgs(providerID, "new bio").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAssemble(mock, providerID, userID, "new bio", `{}`)
	mock.ExpectCommit()

	got, err := svc.UpdateMine(context.Background(), providerCaller(userID), UpdateProfileInput{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "new bio", *got.Provider.Bio)
	assert.Equal(t, []string{"dinner", "travel"}, got.Provider.Services)
	assert.Len(t, got.Media, 3)
}

func TestUpdateMineMergesStats(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)
	userID, providerID := uuid.New(), uuid.New()
	height := 172

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(profileRows(providerID, userID, "bio", `{"height_cm":170,"body_type":"slim"}`))
	mock.ExpectExec("UPDATE provider_profiles SET stats = \\$2").
		WithArgs(providerID, `{"height_cm":172,"body_type":"slim"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAssemble(mock, providerID, userID, "bio", `{"height_cm":172,"body_type":"slim"}`)
	mock.ExpectCommit()

	_, err := svc.UpdateMine(context.Background(), providerCaller(userID), UpdateProfileInput{
		Stats: &StatsUpdate{HeightCm: &height},
	})
	require.NoError(t, err)
}

func TestUpdateMineDerivesAgeFromDateOfBirth(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	userID, providerID := uuid.New(), uuid.New()
	dob := time.Date(1990, 6, 20, 0, 0, 0, 0, time.UTC)
	weight := 60

	var in UpdateProfileInput
	require.NoError(t, json.Unmarshal([]byte(`{"stats":{"age":12,"weight_kg":60}}`), &in))
	require.NotNil(t, in.Stats)
	assert.Nil(t, in.Stats.stats().Age)
	assert.Equal(t, &weight, in.Stats.WeightKg)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(profileCols).AddRow(
		providerID.String(), userID.String(), "Rose", "NY", "New York", "bio", "{dinner}",
		`{"age":12,"height_cm":170}`, `{"one_hour":150}`, dob, "APPROVED", nil, false, nil, now.Add(time.Hour), now, now))
	mock.ExpectExec("UPDATE provider_profiles SET stats = \\$2").
		WithArgs(providerID, `{"age":35,"height_cm":170,"weight_kg":60}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAssemble(mock, providerID, userID, "bio", `{"age":35,"height_cm":170,"weight_kg":60}`)
	mock.ExpectCommit()

	_, err := svc.UpdateMine(context.Background(), providerCaller(userID), in)
	require.NoError(t, err)
}

func TestStatsUpdateRejectsNonPositiveMeasurements(t *testing.T) {
	zero, negative := 0, -5
	err := validator.New().Validate(UpdateProfileInput{Stats: &StatsUpdate{HeightCm: &zero, WeightKg: &negative}})

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "stats.height_cm")
	assert.Contains(t, appErr.Fields, "stats.weight_kg")
}

func TestUpdateMineGalleryNeverTouchesCoverOrAvatar(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)
	userID, providerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(profileRows(providerID, userID, "bio", `{}`))
	mock.ExpectExec("INSERT INTO provider_media").
		WithArgs(providerID, "https://cdn/4.jpg", models.MediaImage, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM provider_media (.+) AND media_type = 'IMAGE' AND is_cover = FALSE AND is_avatar = FALSE").
		WithArgs(providerID, "{\"https://cdn/cover.jpg\"}").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectAssemble(mock, providerID, userID, "bio", `{}`)
	mock.ExpectCommit()

	_, err := svc.UpdateMine(context.Background(), providerCaller(userID), UpdateProfileInput{
		GalleryAdd:    []string{"https://cdn/4.jpg"},
		GalleryRemove: []string{"https://cdn/cover.jpg"},
	})
	require.NoError(t, err)
}

func TestUpdateMineRollsBackOnGalleryFailure(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)
	userID, providerID := uuid.New(), uuid.New()
	bio := "changed"

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(profileRows(providerID, userID, "bio", `{}`))
	mock.ExpectExec("UPDATE provider_profiles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM provider_media").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := svc.UpdateMine(context.Background(), providerCaller(userID), UpdateProfileInput{
		Bio:           &bio,
		GalleryRemove: []string{"https://cdn/1.jpg"},
	})
	assert.EqualError(t, err, "disk full")
}

func TestUpdateMineRejectsNonPositiveRate(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewProviderService(db)
	neg := -5

	_, err := svc.UpdateMine(context.Background(), providerCaller(uuid.New()), UpdateProfileInput{
		Rates: &models.ProviderRates{Overnight: &neg},
	})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "rates")
}

var publicCols = []string{"id", "user_id", "display_name", "state", "city", "bio", "services", "stats", "rates", "avatar", "cover"}

func TestGetPublicHidesPrivateStats(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)
	providerID := uuid.New()

	mock.ExpectQuery("FROM provider_profiles p WHERE p.id = \\$1 AND p.verification_status = 'APPROVED'").
		WithArgs(providerID).
		WillReturnRows(sqlmock.NewRows(publicCols).AddRow(
			providerID.String(), uuid.NewString(), "Rose", "NY", "New York", "bio", "{dinner}",
			`{"real_name":"Rosalind","contact_numbers":["+1555"],"height_cm":170}`, `{"one_hour":150}`,
			"https://cdn/avatar.jpg", "https://cdn/cover.jpg"))
	mock.ExpectQuery("SELECT url FROM provider_media").WithArgs(providerID).
		WillReturnRows(sqlmock.NewRows([]string{"url"}).AddRow("https://cdn/1.jpg"))

	got, err := svc.GetPublic(context.Background(), providerID)
	require.NoError(t, err)
	assert.Nil(t, got.Stats.RealName)
	assert.Nil(t, got.Stats.ContactNumbers)
	assert.Equal(t, 170, *got.Stats.HeightCm)
	assert.Equal(t, []string{"https://cdn/1.jpg"}, got.Gallery)
}

func TestGetPublicHiddenProviderIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)

	mock.ExpectQuery("FROM provider_profiles p WHERE p.id").WillReturnRows(sqlmock.NewRows(publicCols))

	_, err := svc.GetPublic(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestListPublicAppliesFilters(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewProviderService(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM provider_profiles p WHERE (.+) AND LOWER\\(p.city\\) = LOWER\\(\\$1\\) AND \\$2 = ANY\\(p.services\\)").
		WithArgs("Austin", "travel").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY p.created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("Austin", "travel", 20, 0).
		WillReturnRows(sqlmock.NewRows(publicCols))

	list, total, err := svc.ListPublic(context.Background(), PublicFilter{City: "Austin", Service: "travel"},
		models.NewPage(1, 0, DefaultProvidersLimit, MaxProvidersLimit))
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, list)
}
