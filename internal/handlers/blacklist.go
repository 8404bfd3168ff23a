package handlers

import (
	"net/http"

	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

func (h *Handler) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r, services.DefaultBlacklistLimit, services.MaxBlacklistLimit)
	entries, total, err := h.Blacklist.List(r.Context(), caller(r), r.URL.Query().Get("q"), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(map[string]any{"entries": entries}, pageFields(page, total)))
}

func (h *Handler) GetBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.Blacklist.Get(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": e})
}

func (h *Handler) CreateBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	var in services.CreateBlacklistInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.Blacklist.Create(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": e})
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var in services.CreateReportInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.Reports.Create(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"report": report})
}
