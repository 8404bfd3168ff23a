package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/handlers"
	"github.com/AnshRaj112/providerhub-backend/internal/metrics"
	"github.com/AnshRaj112/providerhub-backend/internal/middleware"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

type Options struct {
	Log        *logrus.Logger
	Production bool

	// Counters backs the auth limiter (Redis when configured, memory otherwise).
	Counters  middleware.Counter
	AuthLimit middleware.CounterLimitConfig

	// GlobalLimiter is only installed in production.
	GlobalLimiter  *middleware.KeyedLimiter
	MessageLimiter *middleware.KeyedLimiter

	// Ping reports database health on /health.
	Ping func(ctx context.Context) error
}

// NewRouter installs the middleware chain and every route.
func NewRouter(h *handlers.Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Log))
	r.Use(middleware.Recover(opts.Log))
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.CORS(h.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(opts.Production))
	if opts.Production && opts.GlobalLimiter != nil {
		r.Use(middleware.GlobalRateLimit(opts.GlobalLimiter))
	}

	r.Get("/health", health(opts.Ping))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		SetupRoutes(r, h, opts)
	})
	return r
}

func SetupRoutes(r chi.Router, h *handlers.Handler, opts Options) {
	authenticate := middleware.Authenticate(h.Tokens)
	authLimit := middleware.CounterLimit(opts.Counters, opts.AuthLimit, opts.Log)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/register-guest", h.RegisterGuest)
			r.Post("/register-provider", h.RegisterProvider)
			r.Post("/login", h.Login)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
		})
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/me", h.Me)
			r.Post("/logout", h.Logout)
			r.Post("/change-password", h.ChangePassword)
		})
	})

	r.Route("/chats", func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/", h.CreateChat)
		r.Get("/", h.ListChats)
		r.Get("/{id}/messages", h.ListMessages)
		send := r.With()
		if opts.MessageLimiter != nil {
			send = r.With(middleware.MessageRateLimit(opts.MessageLimiter))
		}
		send.Post("/{id}/messages", h.SendMessage)
		r.Post("/{id}/read", h.MarkChatRead)
	})

	r.Route("/providers", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(models.Role.CanManageProfile, "only providers have a profile"))
			r.Get("/me", h.GetMyProfile)
			r.Get("/me/media", h.GetMyMedia)
			r.Patch("/me", h.UpdateMyProfile)
		})
		r.Get("/", h.ListProviders)
		r.Get("/{id}", h.GetProvider)
	})

	r.Route("/feeds", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(h.Tokens))
			r.Get("/", h.ListFeed)
			r.Get("/{id}/like", h.GetLikes)
			r.Get("/{id}/comments", h.ListComments)
		})
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.CreatePost)
			r.Post("/{id}/like", h.LikePost)
			r.Delete("/{id}/like", h.UnlikePost)
			r.Post("/{id}/comments", h.AddComment)
		})
	})

	r.Route("/favorites", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", h.ListFavorites)
		r.Post("/{providerId}", h.AddFavorite)
		r.Delete("/{providerId}", h.RemoveFavorite)
	})

	r.Route("/blacklist", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", h.ListBlacklist)
		r.Get("/{id}", h.GetBlacklistEntry)
		r.Post("/", h.CreateBlacklistEntry)
	})

	r.With(authenticate).Post("/reports", h.CreateReport)
	r.With(authenticate).Post("/uploads", h.UploadFile)

	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireRole(models.Role.CanModerate, "admin access required"))

		r.Get("/providers", h.AdminListProviders)
		r.Get("/providers/{id}", h.AdminGetProvider)
		r.Post("/providers/{id}/approve", h.ApproveProvider())
		r.Post("/providers/{id}/reject", h.RejectProvider())
		r.Post("/providers/{id}/suspend", h.SuspendProvider())
		r.Post("/providers/{id}/unsuspend", h.UnsuspendProvider())
		r.Post("/providers/{id}/subscription", h.ExtendSubscription)

		r.Post("/blacklist/{id}/verify", h.VerifyBlacklistEntry)
		r.Get("/audit-logs", h.AuditLogs)
		r.Get("/reports", h.ListReports)
		r.Post("/reports/{id}/resolve", h.ResolveReport)
	})

	// Authenticates from the header or ?token= itself.
	r.Get("/ws/chats", h.ChatWebSocket)
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"success":false,"status":"database unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"success":true,"status":"ok"}`))
	}
}
