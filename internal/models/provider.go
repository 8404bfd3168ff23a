package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the provider onboarding state.
// NOT_SUBMITTED -> PENDING -> APPROVED | REJECTED; APPROVED may later become REJECTED.
type VerificationStatus string

const (
	StatusNotSubmitted VerificationStatus = "NOT_SUBMITTED"
	StatusPending      VerificationStatus = "PENDING"
	StatusApproved     VerificationStatus = "APPROVED"
	StatusRejected     VerificationStatus = "REJECTED"
)

func ParseVerificationStatus(s string) (VerificationStatus, bool) {
	switch v := VerificationStatus(s); v {
	case StatusNotSubmitted, StatusPending, StatusApproved, StatusRejected:
		return v, true
	}
	return "", false
}

type MediaType string

const (
	MediaImage        MediaType = "IMAGE"
	MediaVideo        MediaType = "VIDEO"
	MediaVerification MediaType = "VERIFICATION"
)

// ProviderStats holds the semi-structured attributes stored in provider_profiles.stats.
// A nil field means "not set"; Merge only overwrites fields present in the update.
type ProviderStats struct {
	RealName       *string   `json:"real_name,omitempty"`
	ContactNumbers *[]string `json:"contact_numbers,omitempty"`
	Age            *int      `json:"age,omitempty"`
	HeightCm       *int      `json:"height_cm,omitempty"`
	WeightKg       *int      `json:"weight_kg,omitempty"`
	BodyType       *string   `json:"body_type,omitempty"`
	Ethnicity      *string   `json:"ethnicity,omitempty"`
	HairColor      *string   `json:"hair_color,omitempty"`
	EyeColor       *string   `json:"eye_color,omitempty"`
	Languages      *[]string `json:"languages,omitempty"`
}

// Merge returns s with every non-nil field of in applied on top. Shallow: slices are replaced, not appended.
func (s ProviderStats) Merge(in ProviderStats) ProviderStats {
	out := s
	if in.RealName != nil {
		out.RealName = in.RealName
	}
	if in.ContactNumbers != nil {
		out.ContactNumbers = in.ContactNumbers
	}
	if in.Age != nil {
		out.Age = in.Age
	}
	if in.HeightCm != nil {
		out.HeightCm = in.HeightCm
	}
	if in.WeightKg != nil {
		out.WeightKg = in.WeightKg
	}
	if in.BodyType != nil {
		out.BodyType = in.BodyType
	}
	if in.Ethnicity != nil {
		out.Ethnicity = in.Ethnicity
	}
	if in.HairColor != nil {
		out.HairColor = in.HairColor
	}
	if in.EyeColor != nil {
		out.EyeColor = in.EyeColor
	}
	if in.Languages != nil {
		out.Languages = in.Languages
	}
	return out
}

// Public drops the attributes never shown outside the owner and admins.
func (s ProviderStats) Public() ProviderStats {
	s.RealName = nil
	s.ContactNumbers = nil
	return s
}

func (s ProviderStats) Value() (driver.Value, error) {
	return jsonValue(s)
}

func (s *ProviderStats) Scan(src any) error {
	return scanJSON(src, s)
}

// ProviderRates are named price tiers in whole currency units.
type ProviderRates struct {
	ThirtyMinutes *int `json:"thirty_minutes,omitempty"`
	OneHour       *int `json:"one_hour,omitempty"`
	TwoHours      *int `json:"two_hours,omitempty"`
	HalfDay       *int `json:"half_day,omitempty"`
	FullDay       *int `json:"full_day,omitempty"`
	Overnight     *int `json:"overnight,omitempty"`
}

func (r ProviderRates) tiers() []*int {
	return []*int{r.ThirtyMinutes, r.OneHour, r.TwoHours, r.HalfDay, r.FullDay, r.Overnight}
}

// Count returns how many tiers are set.
func (r ProviderRates) Count() int {
	n := 0
	for _, t := range r.tiers() {
		if t != nil {
			n++
		}
	}
	return n
}

var ErrNonPositiveRate = errors.New("rates must be positive integers")

// Validate requires every set tier to be positive.
func (r ProviderRates) Validate() error {
	for _, t := range r.tiers() {
		if t != nil && *t <= 0 {
			return ErrNonPositiveRate
		}
	}
	return nil
}

func (r ProviderRates) Merge(in ProviderRates) ProviderRates {
	out := r
	if in.ThirtyMinutes != nil {
		out.ThirtyMinutes = in.ThirtyMinutes
	}
	if in.OneHour != nil {
		out.OneHour = in.OneHour
	}
	if in.TwoHours != nil {
		out.TwoHours = in.TwoHours
	}
	if in.HalfDay != nil {
		out.HalfDay = in.HalfDay
	}
	if in.FullDay != nil {
		out.FullDay = in.FullDay
	}
	if in.Overnight != nil {
		out.Overnight = in.Overnight
	}
	return out
}

func (r ProviderRates) Value() (driver.Value, error) {
	return jsonValue(r)
}

func (r *ProviderRates) Scan(src any) error {
	return scanJSON(src, r)
}

// jsonValue returns a string so lib/pq sends text rather than bytea to JSONB columns.
func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(src any, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	}
	return errors.New("unsupported JSON column type")
}

type ProviderProfile struct {
	ID                    uuid.UUID          `json:"id"`
	UserID                uuid.UUID          `json:"user_id"`
	DisplayName           string             `json:"display_name"`
	State                 *string            `json:"state,omitempty"`
	City                  *string            `json:"city,omitempty"`
	Bio                   *string            `json:"bio,omitempty"`
	Services              []string           `json:"services"`
	Stats                 ProviderStats      `json:"stats"`
	Rates                 ProviderRates      `json:"rates"`
	DateOfBirth           *time.Time         `json:"date_of_birth,omitempty"`
	VerificationStatus    VerificationStatus `json:"verification_status"`
	RejectionReason       *string            `json:"rejection_reason,omitempty"`
	IsSuspended           bool               `json:"is_suspended"`
	SuspensionReason      *string            `json:"suspension_reason,omitempty"`
	SubscriptionExpiresAt *time.Time         `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Visible reports whether the profile may appear in public listings and the feed.
func (p ProviderProfile) Visible(now time.Time) bool {
	return p.VerificationStatus == StatusApproved &&
		!p.IsSuspended &&
		p.SubscriptionExpiresAt != nil && p.SubscriptionExpiresAt.After(now)
}

type ProviderMedia struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	URL        string    `json:"url"`
	MediaType  MediaType `json:"media_type"`
	IsCover    bool      `json:"is_cover"`
	IsAvatar   bool      `json:"is_avatar"`
	CreatedAt  time.Time `json:"created_at"`
}

// PublicProvider is the listing card shown to unauthenticated visitors.
type PublicProvider struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	DisplayName string        `json:"display_name"`
	State       *string       `json:"state,omitempty"`
	City        *string       `json:"city,omitempty"`
	Bio         *string       `json:"bio,omitempty"`
	Services    []string      `json:"services"`
	Stats       ProviderStats `json:"stats"`
	Rates       ProviderRates `json:"rates"`
	AvatarURL   *string       `json:"avatar_url,omitempty"`
	CoverURL    *string       `json:"cover_url,omitempty"`
	Gallery     []string      `json:"gallery,omitempty"`
}
