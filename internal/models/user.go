package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is fixed at account creation.
type Role string

const (
	RoleGuest    Role = "GUEST"
	RoleProvider Role = "PROVIDER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole accepts only the three known roles.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleGuest, RoleProvider, RoleAdmin:
		return r, true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Guests are the client side of a conversation and the only ones allowed to open one.
func (r Role) CanInitiateChat() bool { return r == RoleGuest }

func (r Role) CanFavorite() bool { return r == RoleGuest }

func (r Role) CanManageProfile() bool { return r == RoleProvider }

func (r Role) CanPostFeed() bool { return r == RoleProvider }

func (r Role) CanSubmitBlacklist() bool { return r == RoleProvider }

func (r Role) CanViewBlacklist() bool { return r == RoleProvider || r == RoleAdmin }

func (r Role) CanModerate() bool { return r == RoleAdmin }

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	DisplayName  string    `json:"display_name"`
	Phone        *string   `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is what the auth middleware attaches to a request.
type Identity struct {
	UserID uuid.UUID
	Role   Role
	// TokenID and ExpiresAt identify the presented token so logout can revoke it.
	TokenID   string
	ExpiresAt time.Time
}
