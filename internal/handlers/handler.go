package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/middleware"
	"github.com/AnshRaj112/providerhub-backend/internal/services"
	"github.com/AnshRaj112/providerhub-backend/internal/validator"
)

// Deps are the collaborators every HTTP handler draws from.
type Deps struct {
	Auth      *services.AuthService
	Providers *services.ProviderService
	Chats     *services.ChatService
	Feed      *services.FeedService
	Favorites *services.FavoriteService
	Blacklist *services.BlacklistService
	Reports   *services.ReportService
	Admin     *services.AdminService

	Realtime services.Realtime
	Tokens   middleware.TokenVerifier
	// Uploader is nil when Cloudinary is not configured.
	Uploader services.Uploader

	// MessageLimiter throttles WebSocket message frames per user; nil disables it.
	MessageLimiter *middleware.KeyedLimiter

	Validator *validator.Validator
	Log       *logrus.Logger

	// AllowedOrigins restricts WebSocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Validator == nil {
		d.Validator = validator.New()
	}
	return &Handler{Deps: d}
}
