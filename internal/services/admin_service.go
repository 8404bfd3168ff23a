package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

const (
	DefaultAdminLimit = 20
	MaxAdminLimit     = 100

	MaxSubscriptionDays = 365
)

var (
	ErrReportNotFound        = apperrors.NotFound("report not found")
	ErrReportAlreadyResolved = apperrors.Conflict("report is already resolved")
)

type ReasonInput struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

type ExtendSubscriptionInput struct {
	Days int `json:"days" validate:"required,gt=0,max=365"`
}

type ResolveReportInput struct {
	Status models.ReportStatus `json:"status" validate:"required,oneof=REVIEWED DISMISSED"`
}

// ProviderDetail is the moderator view of a provider, hidden attributes and selfie included.
type ProviderDetail struct {
	User     models.User            `json:"user"`
	Provider models.ProviderProfile `json:"provider"`
	Media    []models.ProviderMedia `json:"media"`
}

type AdminService struct {
	db  *database.DB
	log *logrus.Logger
	now func() time.Time
}

func NewAdminService(db *database.DB, log *logrus.Logger) *AdminService {
	return &AdminService{db: db, log: log, now: time.Now}
}

func requireAdmin(caller models.Identity) error {
	if !caller.Role.CanModerate() {
		return apperrors.Forbidden("admin access required")
	}
	return nil
}

// writeAudit appends an audit row. It must run in the same transaction as the change it records.
func writeAudit(ctx context.Context, tx *sql.Tx, adminID uuid.UUID, action models.AuditAction, targetType string, targetID uuid.UUID, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO admin_audit_logs (admin_id, action, target_type, target_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, adminID, action, targetType, targetID, string(raw))
	return err
}

func (s *AdminService) ListProviders(ctx context.Context, caller models.Identity, status *models.VerificationStatus, page models.Page) ([]models.ProviderProfile, int, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, 0, err
	}

	// A NULL status matches every provider.
	var filter sql.NullString
	if status != nil {
		filter = sql.NullString{String: string(*status), Valid: true}
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM provider_profiles WHERE ($1::verification_status IS NULL OR verification_status = $1)
	`, filter).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM provider_profiles
		WHERE ($1::verification_status IS NULL OR verification_status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, filter, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.ProviderProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *AdminService) GetProvider(ctx context.Context, caller models.Identity, providerID uuid.UUID) (ProviderDetail, error) {
	if err := requireAdmin(caller); err != nil {
		return ProviderDetail{}, err
	}
	p, err := profileByID(ctx, s.db, providerID, false)
	if err != nil {
		return ProviderDetail{}, err
	}
	u, err := getUserByID(ctx, s.db, p.UserID)
	if err != nil {
		return ProviderDetail{}, err
	}
	media, err := listMedia(ctx, s.db, p.ID)
	if err != nil {
		return ProviderDetail{}, err
	}
	return ProviderDetail{User: u, Provider: p, Media: media}, nil
}

// moderate applies a single UPDATE to a provider and records the audit row in one transaction.
func (s *AdminService) moderate(ctx context.Context, caller models.Identity, providerID uuid.UUID, action models.AuditAction, metadata map[string]any, set string, args ...any) (models.ProviderProfile, error) {
	if err := requireAdmin(caller); err != nil {
		return models.ProviderProfile{}, err
	}

	var out models.ProviderProfile
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = scanProfile(tx.QueryRowContext(ctx,
			`UPDATE provider_profiles SET `+set+`, updated_at = NOW() WHERE id = $1 RETURNING `+profileColumns,
			append([]any{providerID}, args...)...))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProviderNotFound
		}
		if err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller.UserID, action, "PROVIDER", providerID, metadata)
	})
	if err != nil {
		return models.ProviderProfile{}, err
	}

	s.log.WithFields(logrus.Fields{
		"admin_id":    caller.UserID,
		"provider_id": providerID,
		"action":      action,
	}).Info("Provider moderated")
	return out, nil
}

func (s *AdminService) Approve(ctx context.Context, caller models.Identity, providerID uuid.UUID) (models.ProviderProfile, error) {
	return s.moderate(ctx, caller, providerID, models.AuditApproveProvider, nil,
		`verification_status = 'APPROVED', rejection_reason = NULL`)
}

func (s *AdminService) Reject(ctx context.Context, caller models.Identity, providerID uuid.UUID, reason string) (models.ProviderProfile, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) < 3 {
		return models.ProviderProfile{}, apperrors.Field("reason", "reason must be at least 3 characters")
	}
	return s.moderate(ctx, caller, providerID, models.AuditRejectProvider, map[string]any{"reason": reason},
		`verification_status = 'REJECTED', rejection_reason = $2`, reason)
}

func (s *AdminService) Suspend(ctx context.Context, caller models.Identity, providerID uuid.UUID, reason string) (models.ProviderProfile, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) < 3 {
		return models.ProviderProfile{}, apperrors.Field("reason", "reason must be at least 3 characters")
	}
	return s.moderate(ctx, caller, providerID, models.AuditSuspendProvider, map[string]any{"reason": reason},
		`is_suspended = TRUE, suspension_reason = $2`, reason)
}

func (s *AdminService) Unsuspend(ctx context.Context, caller models.Identity, providerID uuid.UUID) (models.ProviderProfile, error) {
	return s.moderate(ctx, caller, providerID, models.AuditUnsuspendProvider, nil,
		`is_suspended = FALSE, suspension_reason = NULL`)
}

// ExtendSubscription adds days to the later of the current expiry and now. A lapsed or
// missing subscription is recorded as ACTIVATED, a running one as EXTENDED.
func (s *AdminService) ExtendSubscription(ctx context.Context, caller models.Identity, providerID uuid.UUID, days int) (models.ProviderProfile, error) {
	if err := requireAdmin(caller); err != nil {
		return models.ProviderProfile{}, err
	}
	if days <= 0 || days > MaxSubscriptionDays {
		return models.ProviderProfile{}, apperrors.Field("days", "days must be between 1 and 365")
	}

	var out models.ProviderProfile
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := profileByID(ctx, tx, providerID, true)
		if err != nil {
			return err
		}

		now := s.now()
		base, event := now, models.SubscriptionActivated
		if p.SubscriptionExpiresAt != nil && p.SubscriptionExpiresAt.After(now) {
			base, event = *p.SubscriptionExpiresAt, models.SubscriptionExtended
		}
		expires := base.AddDate(0, 0, days)

		out, err = scanProfile(tx.QueryRowContext(ctx, `
			UPDATE provider_profiles SET subscription_expires_at = $2, updated_at = NOW()
			WHERE id = $1 RETURNING `+profileColumns,
			providerID, expires))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscription_events (provider_id, event_type, expires_at, created_by)
			VALUES ($1, $2, $3, $4)
		`, providerID, event, expires, caller.UserID); err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller.UserID, models.AuditExtendSubscription, "PROVIDER", providerID, map[string]any{
			"days":       days,
			"event":      event,
			"expires_at": expires,
		})
	})
	if err != nil {
		return models.ProviderProfile{}, err
	}
	return out, nil
}

// VerifyBlacklist records the caller as a verifier and recounts. Verifying twice counts once.
func (s *AdminService) VerifyBlacklist(ctx context.Context, caller models.Identity, entryID uuid.UUID) (models.BlacklistEntry, error) {
	if err := requireAdmin(caller); err != nil {
		return models.BlacklistEntry{}, err
	}

	var out models.BlacklistEntry
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := blacklistEntryByID(ctx, tx, entryID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blacklist_verifications (entry_id, admin_id) VALUES ($1, $2)
			ON CONFLICT (entry_id, admin_id) DO NOTHING
		`, entryID, caller.UserID); err != nil {
			return err
		}

		var err error
		out, err = scanBlacklistEntry(tx.QueryRowContext(ctx, `
			UPDATE blacklist_entries
			SET verification_count = (SELECT COUNT(*) FROM blacklist_verifications WHERE entry_id = $1)
			WHERE id = $1
			RETURNING `+blacklistColumns,
			entryID))
		if err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller.UserID, models.AuditVerifyBlacklist, "BLACKLIST_ENTRY", entryID, map[string]any{
			"verification_count": out.VerificationCount,
		})
	})
	if err != nil {
		return models.BlacklistEntry{}, err
	}
	return out, nil
}

func (s *AdminService) AuditLogs(ctx context.Context, caller models.Identity, page models.Page) ([]models.AuditLog, int, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_audit_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, action, target_type, target_id, metadata, created_at
		FROM admin_audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var (
			l    models.AuditLog
			meta []byte
		)
		if err := rows.Scan(&l.ID, &l.AdminID, &l.Action, &l.TargetType, &l.TargetID, &meta, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		l.Metadata = json.RawMessage(meta)
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}

func (s *AdminService) Reports(ctx context.Context, caller models.Identity, status *models.ReportStatus, page models.Page) ([]models.Report, int, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, 0, err
	}

	var filter sql.NullString
	if status != nil {
		filter = sql.NullString{String: string(*status), Valid: true}
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reports WHERE ($1::report_status IS NULL OR status = $1)
	`, filter).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE ($1::report_status IS NULL OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, filter, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, r)
	}
	return reports, total, rows.Err()
}

// ResolveReport closes an OPEN report. Resolving a closed report is a conflict.
func (s *AdminService) ResolveReport(ctx context.Context, caller models.Identity, reportID uuid.UUID, status models.ReportStatus) (models.Report, error) {
	if err := requireAdmin(caller); err != nil {
		return models.Report{}, err
	}
	if status != models.ReportReviewed && status != models.ReportDismissed {
		return models.Report{}, apperrors.Field("status", "status must be one of REVIEWED DISMISSED")
	}

	var out models.Report
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := scanReport(tx.QueryRowContext(ctx,
			`SELECT `+reportColumns+` FROM reports WHERE id = $1 FOR UPDATE`, reportID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReportNotFound
		}
		if err != nil {
			return err
		}
		if current.Status != models.ReportOpen {
			return ErrReportAlreadyResolved
		}

		out, err = scanReport(tx.QueryRowContext(ctx, `
			UPDATE reports SET status = $2, resolved_by = $3, resolved_at = NOW()
			WHERE id = $1 RETURNING `+reportColumns,
			reportID, status, caller.UserID))
		if err != nil {
			return err
		}
		return writeAudit(ctx, tx, caller.UserID, models.AuditResolveReport, "REPORT", reportID, map[string]any{
			"status":      status,
			"target_type": current.TargetType,
			"target_id":   current.TargetID,
		})
	})
	if err != nil {
		return models.Report{}, err
	}
	return out, nil
}
