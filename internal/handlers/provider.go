package handlers

import (
	"net/http"

	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Providers.GetMine(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": profile.User, "provider": profile.Provider, "media": profile.Media})
}

func (h *Handler) GetMyMedia(w http.ResponseWriter, r *http.Request) {
	media, err := h.Providers.MyMedia(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"media": media})
}

func (h *Handler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateProfileInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	profile, err := h.Providers.UpdateMine(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": profile.User, "provider": profile.Provider, "media": profile.Media})
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageFrom(r, services.DefaultProvidersLimit, services.MaxProvidersLimit)
	providers, total, err := h.Providers.ListPublic(r.Context(), services.PublicFilter{
		State:   q.Get("state"),
		City:    q.Get("city"),
		Service: q.Get("service"),
	}, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(map[string]any{"providers": providers}, pageFields(page, total)))
}

func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Providers.GetPublic(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": p})
}
