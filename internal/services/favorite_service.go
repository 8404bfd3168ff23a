package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

type FavoriteService struct {
	db *database.DB
}

func NewFavoriteService(db *database.DB) *FavoriteService {
	return &FavoriteService{db: db}
}

func requireGuest(caller models.Identity) error {
	if !caller.Role.CanFavorite() {
		return apperrors.Forbidden("only guests can keep favorites")
	}
	return nil
}

// List returns the caller's favorites that are still publicly visible, newest first.
func (s *FavoriteService) List(ctx context.Context, caller models.Identity) ([]models.Favorite, error) {
	if err := requireGuest(caller); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.display_name, p.state, p.city, p.bio, p.services, p.stats, p.rates,
		       (SELECT url FROM provider_media WHERE provider_id = p.id AND is_avatar = TRUE ORDER BY created_at DESC LIMIT 1),
		       (SELECT url FROM provider_media WHERE provider_id = p.id AND is_cover = TRUE ORDER BY created_at DESC LIMIT 1),
		       fav.created_at
		FROM favorites fav
		JOIN provider_profiles p ON p.id = fav.provider_id
		WHERE fav.user_id = $1 AND `+visibleClause+`
		ORDER BY fav.created_at DESC
	`, caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	favorites := []models.Favorite{}
	for rows.Next() {
		var (
			f        models.Favorite
			services pq.StringArray
		)
		pp := &f.Provider
		if err := rows.Scan(&pp.ID, &pp.UserID, &pp.DisplayName, &pp.State, &pp.City, &pp.Bio, &services,
			&pp.Stats, &pp.Rates, &pp.AvatarURL, &pp.CoverURL, &f.CreatedAt); err != nil {
			return nil, err
		}
		pp.Services = []string(services)
		if pp.Services == nil {
			pp.Services = []string{}
		}
		pp.Stats = pp.Stats.Public()
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// Add is idempotent. Unknown and hidden providers are both 404.
func (s *FavoriteService) Add(ctx context.Context, caller models.Identity, providerID uuid.UUID) error {
	if err := requireGuest(caller); err != nil {
		return err
	}

	var visible bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM provider_profiles p WHERE p.id = $1 AND `+visibleClause+`)`,
		providerID).Scan(&visible); err != nil {
		return err
	}
	if !visible {
		return ErrProviderNotFound
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (user_id, provider_id) VALUES ($1, $2)
		ON CONFLICT (user_id, provider_id) DO NOTHING
	`, caller.UserID, providerID)
	if database.IsForeignKeyViolation(err) {
		return ErrProviderNotFound
	}
	return err
}

// Remove succeeds whether or not the favorite existed.
func (s *FavoriteService) Remove(ctx context.Context, caller models.Identity, providerID uuid.UUID) error {
	if err := requireGuest(caller); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = $1 AND provider_id = $2`, caller.UserID, providerID)
	return err
}
