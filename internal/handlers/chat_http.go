package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

type createChatRequest struct {
	ProviderUserID uuid.UUID `json:"provider_user_id" validate:"required"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var in createChatRequest
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	conv, err := h.Chats.CreateOrGet(r.Context(), caller(r), in.ProviderUserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"chat": conv})
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r, services.DefaultChatsLimit, services.MaxChatsLimit)
	chats, total, err := h.Chats.List(r.Context(), caller(r).UserID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(map[string]any{"chats": chats}, pageFields(page, total)))
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	convID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page := pageFrom(r, services.DefaultMessagesLimit, services.MaxMessagesLimit)
	msgs, err := h.Chats.Messages(r.Context(), convID, caller(r).UserID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "page": page.Number, "limit": page.Limit})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	convID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in sendMessageRequest
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.Chats.Send(r.Context(), convID, caller(r).UserID, in.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"chat_message": msg})
}

func (h *Handler) MarkChatRead(w http.ResponseWriter, r *http.Request) {
	convID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	readAt, err := h.Chats.MarkRead(r.Context(), convID, caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"last_read_at": readAt})
}
