package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/database"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

var ErrReportTargetNotFound = apperrors.NotFound("reported target not found")

type CreateReportInput struct {
	TargetType models.ReportTarget `json:"target_type" validate:"required,oneof=USER PROVIDER POST"`
	TargetID   uuid.UUID           `json:"target_id" validate:"required"`
	Reason     string              `json:"reason" validate:"required,min=3,max=2000"`
}

const reportColumns = `id, reporter_id, target_type, target_id, reason, status, resolved_by, resolved_at, created_at`

func scanReport(row rowScanner) (models.Report, error) {
	var r models.Report
	err := row.Scan(&r.ID, &r.ReporterID, &r.TargetType, &r.TargetID, &r.Reason, &r.Status,
		&r.ResolvedBy, &r.ResolvedAt, &r.CreatedAt)
	return r, err
}

var reportTargetTables = map[models.ReportTarget]string{
	models.ReportTargetUser:     "users",
	models.ReportTargetProvider: "provider_profiles",
	models.ReportTargetPost:     "feed_posts",
}

type ReportService struct {
	db *database.DB
}

func NewReportService(db *database.DB) *ReportService {
	return &ReportService{db: db}
}

// Create files a report from any authenticated user against an existing target.
func (s *ReportService) Create(ctx context.Context, caller models.Identity, in CreateReportInput) (models.Report, error) {
	table, ok := reportTargetTables[in.TargetType]
	if !ok {
		return models.Report{}, apperrors.Field("target_type", "target_type must be one of USER PROVIDER POST")
	}
	reason := strings.TrimSpace(in.Reason)
	if len([]rune(reason)) < 3 {
		return models.Report{}, apperrors.Field("reason", "reason must be at least 3 characters")
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, in.TargetID).Scan(&exists); err != nil {
		return models.Report{}, err
	}
	if !exists {
		return models.Report{}, ErrReportTargetNotFound
	}

	return scanReport(s.db.QueryRowContext(ctx, `
		INSERT INTO reports (reporter_id, target_type, target_id, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING `+reportColumns,
		caller.UserID, in.TargetType, in.TargetID, reason))
}
