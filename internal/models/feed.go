package models

import (
	"time"

	"github.com/google/uuid"
)

type FeedPost struct {
	ID           uuid.UUID `json:"id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	Content      string    `json:"content"`
	MediaURLs    []string  `json:"media_urls"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	LikedByMe    bool      `json:"liked_by_me"`
	CreatedAt    time.Time `json:"created_at"`
}

type FeedComment struct {
	ID          uuid.UUID `json:"id"`
	PostID      uuid.UUID `json:"post_id"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

type LikeState struct {
	PostID    uuid.UUID `json:"post_id"`
	LikeCount int       `json:"like_count"`
	LikedByMe bool      `json:"liked_by_me"`
}

type Favorite struct {
	Provider  PublicProvider `json:"provider"`
	CreatedAt time.Time      `json:"created_at"`
}
