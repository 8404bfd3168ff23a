package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

const (
	DefaultBlacklistLimit = 20
	MaxBlacklistLimit     = 50
)

var ErrBlacklistEntryNotFound = apperrors.NotFound("blacklist entry not found")

type CreateBlacklistInput struct {
	Phone        string           `json:"phone" validate:"omitempty,phone"`
	Name         string           `json:"name" validate:"omitempty,max=150"`
	Notes        string           `json:"notes" validate:"max=5000"`
	EvidenceURLs []string         `json:"evidence_urls" validate:"omitempty,max=10,dive,required,url"`
	RiskLevel    models.RiskLevel `json:"risk_level" validate:"omitempty,risk_level"`
}

type BlacklistService struct {
	db *database.DB
}

func NewBlacklistService(db *database.DB) *BlacklistService {
	return &BlacklistService{db: db}
}

const blacklistColumns = `id, reporter_provider_id, phone, name, notes, evidence_urls, risk_level, verification_count, created_at`

func scanBlacklistEntry(row rowScanner) (models.BlacklistEntry, error) {
	var e models.BlacklistEntry
	var evidence pq.StringArray
	err := row.Scan(&e.ID, &e.ReporterProviderID, &e.Phone, &e.Name, &e.Notes, &evidence,
		&e.RiskLevel, &e.VerificationCount, &e.CreatedAt)
	e.EvidenceURLs = []string(evidence)
	if e.EvidenceURLs == nil {
		e.EvidenceURLs = []string{}
	}
	return e, err
}

func blacklistEntryByID(ctx context.Context, q database.Querier, id uuid.UUID) (models.BlacklistEntry, error) {
	e, err := scanBlacklistEntry(q.QueryRowContext(ctx, `SELECT `+blacklistColumns+` FROM blacklist_entries WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.BlacklistEntry{}, ErrBlacklistEntryNotFound
	}
	return e, err
}

func requireBlacklistReader(caller models.Identity) error {
	if !caller.Role.CanViewBlacklist() {
		return apperrors.Forbidden("blacklist is only available to providers and admins")
	}
	return nil
}

// List searches by phone or name substring when query is non-empty.
func (s *BlacklistService) List(ctx context.Context, caller models.Identity, query string, page models.Page) ([]models.BlacklistEntry, int, error) {
	if err := requireBlacklistReader(caller); err != nil {
		return nil, 0, err
	}

	where := ""
	args := []any{}
	if q := strings.TrimSpace(query); q != "" {
		where = ` WHERE phone ILIKE $1 OR name ILIKE $1`
		args = append(args, "%"+escapeLike(q)+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blacklist_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit, page.Offset())
	limitAt := len(args) - 1
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blacklistColumns+` FROM blacklist_entries`+where+
			` ORDER BY created_at DESC, id DESC LIMIT $`+strconv.Itoa(limitAt)+` OFFSET $`+strconv.Itoa(limitAt+1),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []models.BlacklistEntry{}
	for rows.Next() {
		e, err := scanBlacklistEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (s *BlacklistService) Get(ctx context.Context, caller models.Identity, id uuid.UUID) (models.BlacklistEntry, error) {
	if err := requireBlacklistReader(caller); err != nil {
		return models.BlacklistEntry{}, err
	}
	return blacklistEntryByID(ctx, s.db, id)
}

func (s *BlacklistService) Create(ctx context.Context, caller models.Identity, in CreateBlacklistInput) (models.BlacklistEntry, error) {
	if !caller.Role.CanSubmitBlacklist() {
		return models.BlacklistEntry{}, apperrors.Forbidden("only providers can submit blacklist entries")
	}

	phone, name := optional(in.Phone), optional(in.Name)
	if phone == nil && name == nil {
		return models.BlacklistEntry{}, apperrors.Validation("phone or name is required", map[string]string{
			"phone": "phone or name is required",
			"name":  "phone or name is required",
		})
	}
	risk := in.RiskLevel
	if risk == "" {
		risk = models.RiskLow
	}
	evidence := in.EvidenceURLs
	if evidence == nil {
		evidence = []string{}
	}

	p, err := profileByUserID(ctx, s.db, caller.UserID, false)
	if err != nil {
		return models.BlacklistEntry{}, err
	}

	return scanBlacklistEntry(s.db.QueryRowContext(ctx, `
		INSERT INTO blacklist_entries (reporter_provider_id, phone, name, notes, evidence_urls, risk_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+blacklistColumns,
		p.ID, phone, name, strings.TrimSpace(in.Notes), pq.StringArray(evidence), risk))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
