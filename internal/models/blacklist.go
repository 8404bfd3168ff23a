package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type BlacklistEntry struct {
	ID                 uuid.UUID `json:"id"`
	ReporterProviderID uuid.UUID `json:"reporter_provider_id"`
	Phone              *string   `json:"phone,omitempty"`
	Name               *string   `json:"name,omitempty"`
	Notes              string    `json:"notes"`
	EvidenceURLs       []string  `json:"evidence_urls"`
	RiskLevel          RiskLevel `json:"risk_level"`
	VerificationCount  int       `json:"verification_count"`
	CreatedAt          time.Time `json:"created_at"`
}

type AuditAction string

const (
	AuditApproveProvider    AuditAction = "PROVIDER_APPROVE"
	AuditRejectProvider     AuditAction = "PROVIDER_REJECT"
	AuditSuspendProvider    AuditAction = "PROVIDER_SUSPEND"
	AuditUnsuspendProvider  AuditAction = "PROVIDER_UNSUSPEND"
	AuditExtendSubscription AuditAction = "SUBSCRIPTION_EXTEND"
	AuditVerifyBlacklist    AuditAction = "BLACKLIST_VERIFY"
	AuditResolveReport      AuditAction = "REPORT_RESOLVE"
)

// AuditLog rows are append-only.
type AuditLog struct {
	ID         uuid.UUID       `json:"id"`
	AdminID    uuid.UUID       `json:"admin_id"`
	Action     AuditAction     `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   uuid.UUID       `json:"target_id"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
}

type ReportTarget string

const (
	ReportTargetUser     ReportTarget = "USER"
	ReportTargetProvider ReportTarget = "PROVIDER"
	ReportTargetPost     ReportTarget = "POST"
)

type ReportStatus string

const (
	ReportOpen      ReportStatus = "OPEN"
	ReportReviewed  ReportStatus = "REVIEWED"
	ReportDismissed ReportStatus = "DISMISSED"
)

func ParseReportStatus(s string) (ReportStatus, bool) {
	switch v := ReportStatus(s); v {
	case ReportOpen, ReportReviewed, ReportDismissed:
		return v, true
	}
	return "", false
}

type Report struct {
	ID         uuid.UUID    `json:"id"`
	ReporterID uuid.UUID    `json:"reporter_id"`
	TargetType ReportTarget `json:"target_type"`
	TargetID   uuid.UUID    `json:"target_id"`
	Reason     string       `json:"reason"`
	Status     ReportStatus `json:"status"`
	ResolvedBy *uuid.UUID   `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

type SubscriptionEventType string

const (
	SubscriptionActivated SubscriptionEventType = "ACTIVATED"
	SubscriptionExtended  SubscriptionEventType = "EXTENDED"
)
