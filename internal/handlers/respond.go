package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/middleware"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

const maxBodyBytes = 1 << 20

// writeJSON sends {"success": true, ...payload}.
func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err onto the error envelope. Anything that is not an AppError is
// logged and answered with a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperrors.As(err); ok {
		apperrors.Write(w, appErr)
		return
	}
	h.Log.WithError(err).WithFields(logrus.Fields{
		"request_id": chimw.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	}).Error("Unhandled error")
	apperrors.Write(w, apperrors.Internal())
}

var errInvalidBody = apperrors.BadRequest("invalid JSON body")

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.BadRequest("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.BadRequest("request body is too large")
		}
		return errInvalidBody
	}
	return h.Validator.Validate(dst)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperrors.Field(name, name+" must be a valid UUID")
	}
	return id, nil
}

// pageFrom reads ?page= and ?limit=. Unparseable values fall back to the defaults.
func pageFrom(r *http.Request, defaultLimit, maxLimit int) models.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return models.NewPage(number, limit, defaultLimit, maxLimit)
}

func pageFields(page models.Page, total int) map[string]any {
	return map[string]any{"page": page.Number, "limit": page.Limit, "total": total}
}

// caller returns the authenticated identity. Routes using it sit behind middleware.Authenticate.
func caller(r *http.Request) models.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}

// viewer returns the caller's id when OptionalAuth found a valid token.
func viewer(r *http.Request) *uuid.UUID {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return nil
	}
	return &id.UserID
}

func merge(dst map[string]any, src map[string]any) map[string]any {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
