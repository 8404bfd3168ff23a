package handlers

import (
	"net/http"

	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func authPayload(res services.AuthResult) map[string]any {
	return map[string]any{"token": res.Token, "expires_at": res.ExpiresAt, "user": res.User}
}

func (h *Handler) RegisterGuest(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterGuestInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Auth.RegisterGuest(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authPayload(res))
}

func (h *Handler) RegisterProvider(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterProviderInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Auth.RegisterProvider(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authPayload(res))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authPayload(res))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.Me(r.Context(), caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), caller(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in services.ChangePasswordInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Auth.ChangePassword(r.Context(), caller(r).UserID, in); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "password updated"})
}

// ForgotPassword answers 200 whether or not the email is registered.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotPasswordRequest
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Auth.ForgotPassword(r.Context(), in.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "if the email is registered, a reset link has been sent",
	})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in services.ResetPasswordInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Auth.ResetPassword(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "password has been reset"})
}
