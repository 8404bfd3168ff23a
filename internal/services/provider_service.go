package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
	"github.com/AnshRaj112/providerhub-backend/pkg/utils"
)

const (
	DefaultProvidersLimit = 20
	MaxProvidersLimit     = 50
)

var ErrProviderNotFound = apperrors.NotFound("provider not found")

// UpdateProfileInput is a partial update: nil fields are left untouched.
type UpdateProfileInput struct {
	DisplayName   *string               `json:"display_name" validate:"omitempty,min=2,max=100"`
	State         *string               `json:"state" validate:"omitempty,max=100"`
	City          *string               `json:"city" validate:"omitempty,max=100"`
	Bio           *string               `json:"bio" validate:"omitempty,max=2000"`
	Services      *[]string             `json:"services" validate:"omitempty,min=1,max=30,dive,required,max=50"`
	Stats         *StatsUpdate          `json:"stats"`
	Rates         *models.ProviderRates `json:"rates"`
	GalleryAdd    []string              `json:"gallery_add" validate:"omitempty,max=30,dive,required,url"`
	GalleryRemove []string              `json:"gallery_remove" validate:"omitempty,max=30,dive,required"`
	CoverURL      *string               `json:"cover_url" validate:"omitempty,url"`
	AvatarURL     *string               `json:"avatar_url" validate:"omitempty,url"`
}

// StatsUpdate is the editable part of ProviderStats. Age is derived from the date of
// birth and cannot be set directly.
type StatsUpdate struct {
	RealName       *string   `json:"real_name" validate:"omitempty,min=1,max=100"`
	ContactNumbers *[]string `json:"contact_numbers" validate:"omitempty,max=5,dive,required,phone"`
	HeightCm       *int      `json:"height_cm" validate:"omitempty,gt=0,lt=300"`
	WeightKg       *int      `json:"weight_kg" validate:"omitempty,gt=0,lt=500"`
	BodyType       *string   `json:"body_type" validate:"omitempty,max=50"`
	Ethnicity      *string   `json:"ethnicity" validate:"omitempty,max=50"`
	HairColor      *string   `json:"hair_color" validate:"omitempty,max=50"`
	EyeColor       *string   `json:"eye_color" validate:"omitempty,max=50"`
	Languages      *[]string `json:"languages" validate:"omitempty,max=10,dive,required,max=50"`
}

func (u StatsUpdate) stats() models.ProviderStats {
	return models.ProviderStats{
		RealName:       u.RealName,
		ContactNumbers: u.ContactNumbers,
		HeightCm:       u.HeightCm,
		WeightKg:       u.WeightKg,
		BodyType:       u.BodyType,
		Ethnicity:      u.Ethnicity,
		HairColor:      u.HairColor,
		EyeColor:       u.EyeColor,
		Languages:      u.Languages,
	}
}

type PublicFilter struct {
	State   string
	City    string
	Service string
}

// MyProfile is what a provider sees of their own account.
type MyProfile struct {
	User     models.User            `json:"user"`
	Provider models.ProviderProfile `json:"provider"`
	Media    []models.ProviderMedia `json:"media"`
}

type ProviderService struct {
	db  *database.DB
	now func() time.Time
}

func NewProviderService(db *database.DB) *ProviderService {
	return &ProviderService{db: db, now: time.Now}
}

const profileColumns = `id, user_id, display_name, state, city, bio, services, stats, rates, date_of_birth,
	verification_status, rejection_reason, is_suspended, suspension_reason, subscription_expires_at,
	created_at, updated_at`

func scanProfile(row rowScanner) (models.ProviderProfile, error) {
	var p models.ProviderProfile
	var services pq.StringArray
	err := row.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.State, &p.City, &p.Bio, &services, &p.Stats, &p.Rates,
		&p.DateOfBirth, &p.VerificationStatus, &p.RejectionReason, &p.IsSuspended, &p.SuspensionReason,
		&p.SubscriptionExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	p.Services = []string(services)
	if p.Services == nil {
		p.Services = []string{}
	}
	return p, err
}

func profileByUserID(ctx context.Context, q database.Querier, userID uuid.UUID, lock bool) (models.ProviderProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM provider_profiles WHERE user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanProfile(q.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProviderProfile{}, ErrProviderNotFound
	}
	return p, err
}

func profileByID(ctx context.Context, q database.Querier, id uuid.UUID, lock bool) (models.ProviderProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM provider_profiles WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanProfile(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProviderProfile{}, ErrProviderNotFound
	}
	return p, err
}

func listMedia(ctx context.Context, q database.Querier, providerID uuid.UUID) ([]models.ProviderMedia, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, provider_id, url, media_type, is_cover, is_avatar, created_at
		FROM provider_media
		WHERE provider_id = $1
		ORDER BY created_at, id
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	media := []models.ProviderMedia{}
	for rows.Next() {
		var m models.ProviderMedia
		if err := rows.Scan(&m.ID, &m.ProviderID, &m.URL, &m.MediaType, &m.IsCover, &m.IsAvatar, &m.CreatedAt); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func requireProvider(caller models.Identity) error {
	if !caller.Role.CanManageProfile() {
		return apperrors.Forbidden("only providers have a profile")
	}
	return nil
}

func (s *ProviderService) GetMine(ctx context.Context, caller models.Identity) (MyProfile, error) {
	if err := requireProvider(caller); err != nil {
		return MyProfile{}, err
	}
	return s.assemble(ctx, s.db, caller.UserID)
}

func (s *ProviderService) assemble(ctx context.Context, q database.Querier, userID uuid.UUID) (MyProfile, error) {
	u, err := getUserByID(ctx, q, userID)
	if err != nil {
		return MyProfile{}, err
	}
	p, err := profileByUserID(ctx, q, userID, false)
	if err != nil {
		return MyProfile{}, err
	}
	media, err := listMedia(ctx, q, p.ID)
	if err != nil {
		return MyProfile{}, err
	}
	return MyProfile{User: u, Provider: p, Media: media}, nil
}

func (s *ProviderService) MyMedia(ctx context.Context, caller models.Identity) ([]models.ProviderMedia, error) {
	if err := requireProvider(caller); err != nil {
		return nil, err
	}
	p, err := profileByUserID(ctx, s.db, caller.UserID, false)
	if err != nil {
		return nil, err
	}
	return listMedia(ctx, s.db, p.ID)
}

// UpdateMine applies a partial update in one transaction. Stats and rates are merged
// shallowly onto the stored values under a row lock so concurrent edits do not drop keys.
// Gallery edits never touch cover or avatar rows. A new cover/avatar is appended and
// readers take the latest flagged row.
func (s *ProviderService) UpdateMine(ctx context.Context, caller models.Identity, in UpdateProfileInput) (MyProfile, error) {
	if err := requireProvider(caller); err != nil {
		return MyProfile{}, err
	}
	if in.Rates != nil {
		if err := in.Rates.Validate(); err != nil {
			return MyProfile{}, apperrors.Field("rates", err.Error())
		}
	}

	var out MyProfile
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := profileByUserID(ctx, tx, caller.UserID, true)
		if err != nil {
			return err
		}

		sets := []string{}
		args := []any{p.ID}
		set := func(column string, value any) {
			args = append(args, value)
			sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
		}

		if in.DisplayName != nil {
			set("display_name", strings.TrimSpace(*in.DisplayName))
		}
		if in.State != nil {
			set("state", strings.TrimSpace(*in.State))
		}
		if in.City != nil {
			set("city", strings.TrimSpace(*in.City))
		}
		if in.Bio != nil {
			set("bio", strings.TrimSpace(*in.Bio))
		}
		if in.Services != nil {
			set("services", pq.StringArray(*in.Services))
		}
		if in.Stats != nil {
			merged := p.Stats.Merge(in.Stats.stats())
			if p.DateOfBirth != nil {
				age := utils.AgeOn(*p.DateOfBirth, s.now())
				merged.Age = &age
			}
			set("stats", merged)
		}
		if in.Rates != nil {
			merged := p.Rates.Merge(*in.Rates)
			if merged.Count() == 0 {
				return apperrors.Field("rates", "at least one rate is required")
			}
			set("rates", merged)
		}

		if len(sets) > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE provider_profiles SET `+strings.Join(sets, ", ")+`, updated_at = NOW() WHERE id = $1`,
				args...); err != nil {
				return err
			}
		}

		for _, url := range in.GalleryAdd {
			if err := insertMedia(ctx, tx, p.ID, url, models.MediaImage, false, false); err != nil {
				return err
			}
		}
		if len(in.GalleryRemove) > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM provider_media
				WHERE provider_id = $1 AND url = ANY($2)
				  AND media_type = 'IMAGE' AND is_cover = FALSE AND is_avatar = FALSE
			`, p.ID, pq.StringArray(in.GalleryRemove)); err != nil {
				return err
			}
		}
		if in.CoverURL != nil {
			if err := insertMedia(ctx, tx, p.ID, *in.CoverURL, models.MediaImage, true, false); err != nil {
				return err
			}
		}
		if in.AvatarURL != nil {
			if err := insertMedia(ctx, tx, p.ID, *in.AvatarURL, models.MediaImage, false, true); err != nil {
				return err
			}
		}

		out, err = s.assemble(ctx, tx, caller.UserID)
		return err
	})
	if err != nil {
		return MyProfile{}, err
	}
	return out, nil
}

// visibleClause restricts provider_profiles p to publicly listable rows.
const visibleClause = `p.verification_status = 'APPROVED' AND p.is_suspended = FALSE AND p.subscription_expires_at > NOW()`

const publicSelect = `
	SELECT p.id, p.user_id, p.display_name, p.state, p.city, p.bio, p.services, p.stats, p.rates,
	       (SELECT url FROM provider_media WHERE provider_id = p.id AND is_avatar = TRUE ORDER BY created_at DESC LIMIT 1),
	       (SELECT url FROM provider_media WHERE provider_id = p.id AND is_cover = TRUE ORDER BY created_at DESC LIMIT 1)
	FROM provider_profiles p`

func scanPublic(row rowScanner) (models.PublicProvider, error) {
	var pp models.PublicProvider
	var services pq.StringArray
	err := row.Scan(&pp.ID, &pp.UserID, &pp.DisplayName, &pp.State, &pp.City, &pp.Bio, &services,
		&pp.Stats, &pp.Rates, &pp.AvatarURL, &pp.CoverURL)
	pp.Services = []string(services)
	if pp.Services == nil {
		pp.Services = []string{}
	}
	pp.Stats = pp.Stats.Public()
	return pp, err
}

// ListPublic returns visible providers, newest first.
func (s *ProviderService) ListPublic(ctx context.Context, f PublicFilter, page models.Page) ([]models.PublicProvider, int, error) {
	where := []string{visibleClause}
	args := []any{}
	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.State != "" {
		add("LOWER(p.state) = LOWER(?)", f.State)
	}
	if f.City != "" {
		add("LOWER(p.city) = LOWER(?)", f.City)
	}
	if f.Service != "" {
		add("? = ANY(p.services)", f.Service)
	}
	clause := ` WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provider_profiles p`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit, page.Offset())
	rows, err := s.db.QueryContext(ctx,
		publicSelect+clause+` ORDER BY p.created_at DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.PublicProvider{}
	for rows.Next() {
		pp, err := scanPublic(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, pp)
	}
	return out, total, rows.Err()
}

// GetPublic returns a visible provider with its gallery. Hidden and unknown providers are both 404.
func (s *ProviderService) GetPublic(ctx context.Context, providerID uuid.UUID) (models.PublicProvider, error) {
	pp, err := scanPublic(s.db.QueryRowContext(ctx, publicSelect+` WHERE p.id = $1 AND `+visibleClause, providerID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.PublicProvider{}, ErrProviderNotFound
	}
	if err != nil {
		return models.PublicProvider{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url FROM provider_media
		WHERE provider_id = $1 AND media_type = 'IMAGE' AND is_cover = FALSE AND is_avatar = FALSE
		ORDER BY created_at, id
	`, providerID)
	if err != nil {
		return models.PublicProvider{}, err
	}
	defer rows.Close()

	pp.Gallery = []string{}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return models.PublicProvider{}, err
		}
		pp.Gallery = append(pp.Gallery, url)
	}
	return pp, rows.Err()
}
