package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

func (h *Handler) AdminListProviders(w http.ResponseWriter, r *http.Request) {
	var status *models.VerificationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, ok := models.ParseVerificationStatus(raw)
		if !ok {
			h.writeError(w, r, apperrors.Field("status", "status must be one of NOT_SUBMITTED PENDING APPROVED REJECTED"))
			return
		}
		status = &s
	}
	page := pageFrom(r, services.DefaultAdminLimit, services.MaxAdminLimit)
	providers, total, err := h.Admin.ListProviders(r.Context(), caller(r), status, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(map[string]any{"providers": providers}, pageFields(page, total)))
}

func (h *Handler) AdminGetProvider(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := h.Admin.GetProvider(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": d.User, "provider": d.Provider, "media": d.Media})
}

type moderateFunc func(ctx context.Context, caller models.Identity, providerID uuid.UUID, reason string) (models.ProviderProfile, error)

// moderation adapts a provider state transition to HTTP. withReason requires a {"reason"} body.
func (h *Handler) moderation(withReason bool, act moderateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		var in services.ReasonInput
		if withReason {
			if err := h.decode(w, r, &in); err != nil {
				h.writeError(w, r, err)
				return
			}
		}
		p, err := act(r.Context(), caller(r), id, in.Reason)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"provider": p})
	}
}

func (h *Handler) ApproveProvider() http.HandlerFunc {
	return h.moderation(false, func(ctx context.Context, c models.Identity, id uuid.UUID, _ string) (models.ProviderProfile, error) {
		return h.Admin.Approve(ctx, c, id)
	})
}

func (h *Handler) RejectProvider() http.HandlerFunc {
	return h.moderation(true, h.Admin.Reject)
}

func (h *Handler) SuspendProvider() http.HandlerFunc {
	return h.moderation(true, h.Admin.Suspend)
}

func (h *Handler) UnsuspendProvider() http.HandlerFunc {
	return h.moderation(false, func(ctx context.Context, c models.Identity, id uuid.UUID, _ string) (models.ProviderProfile, error) {
		return h.Admin.Unsuspend(ctx, c, id)
	})
}

func (h *Handler) ExtendSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in services.ExtendSubscriptionInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Admin.ExtendSubscription(r.Context(), caller(r), id, in.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": p})
}

func (h *Handler) VerifyBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.Admin.VerifyBlacklist(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": e})
}

func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r, services.DefaultAdminLimit, services.MaxAdminLimit)
	logs, total, err := h.Admin.AuditLogs(r.Context(), caller(r), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(map[string]any{"logs": logs}, pageFields(page, total)))
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	var status *models.ReportStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, ok := models.ParseReportStatus(raw)
		if !ok {
			h.writeError(w, r, apperrors.Field("status", "status must be one of OPEN REVIEWED DISMISSED"))
			return
		}
		status = &s
	}
	page := pageFrom(r, services.DefaultAdminLimit, services.MaxAdminLimit)
	reports, total, err := h.Admin.Reports(r.Context(), caller(r), status, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(map[string]any{"reports": reports}, pageFields(page, total)))
}

func (h *Handler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in services.ResolveReportInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.Admin.ResolveReport(r.Context(), caller(r), id, in.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}
