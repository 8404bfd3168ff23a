package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation pairs exactly one client with one provider.
type Conversation struct {
	ID             uuid.UUID `json:"id"`
	ClientUserID   uuid.UUID `json:"client_user_id"`
	ProviderUserID uuid.UUID `json:"provider_user_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

// HasParticipant reports whether userID is either side of the conversation.
func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ClientUserID == userID || c.ProviderUserID == userID
}

// OtherParty returns the participant that is not userID.
func (c Conversation) OtherParty(userID uuid.UUID) uuid.UUID {
	if c.ClientUserID == userID {
		return c.ProviderUserID
	}
	return c.ClientUserID
}

// Message is immutable once stored.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChatParty struct {
	UserID      uuid.UUID `json:"user_id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
}

// ChatSummary is one inbox row as seen by a particular participant.
type ChatSummary struct {
	ID             uuid.UUID  `json:"id"`
	ClientUserID   uuid.UUID  `json:"client_user_id"`
	ProviderUserID uuid.UUID  `json:"provider_user_id"`
	OtherParty     ChatParty  `json:"other_party"`
	LastMessage    *string    `json:"last_message"`
	LastMessageAt  *time.Time `json:"last_message_time"`
	UnreadCount    int        `json:"unread_count"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
