package handlers

import "net/http"

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.Favorites.List(r.Context(), caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favs})
}

func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathUUID(r, "providerId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Favorites.Add(r.Context(), caller(r), providerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": providerID, "favorited": true})
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathUUID(r, "providerId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Favorites.Remove(r.Context(), caller(r), providerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": providerID, "favorited": false})
}
