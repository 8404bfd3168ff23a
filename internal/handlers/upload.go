package handlers

import (
	"net/http"
	"regexp"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
)

const (
	maxUploadBytes = 10 << 20
	defaultFolder  = "providerhub"
)

var folderPattern = regexp.MustCompile(`^[a-z0-9_-]{1,40}$`)

var errUploadsDisabled = apperrors.New(apperrors.CodeUnavailable, http.StatusServiceUnavailable, "file uploads are not configured")

// UploadFile stores the multipart "file" field and returns its URL.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if h.Uploader == nil {
		h.writeError(w, r, errUploadsDisabled)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1024)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, r, apperrors.BadRequest("file must be a multipart upload of at most 10MB"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, apperrors.Field("file", "file is required"))
		return
	}
	defer file.Close()

	folder := defaultFolder
	if sub := r.URL.Query().Get("folder"); sub != "" {
		if !folderPattern.MatchString(sub) {
			h.writeError(w, r, apperrors.Field("folder", "folder may only contain lowercase letters, digits, '-' and '_'"))
			return
		}
		folder += "/" + sub
	}

	res, err := h.Uploader.Upload(r.Context(), file, folder)
	if err != nil {
		h.Log.WithError(err).Warn("Upload failed")
		h.writeError(w, r, apperrors.New(apperrors.CodeUpstream, http.StatusBadGateway, "failed to upload file"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": res.URL, "resource_type": res.ResourceType, "bytes": res.Bytes})
}
