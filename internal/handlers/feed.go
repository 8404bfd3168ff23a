package handlers

import (
	"net/http"

	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

func (h *Handler) ListFeed(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r, services.DefaultFeedLimit, services.MaxFeedLimit)
	posts, total, err := h.Feed.List(r.Context(), viewer(r), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(map[string]any{"posts": posts}, pageFields(page, total)))
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in services.CreatePostInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	post, err := h.Feed.Create(r.Context(), caller(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"post": post})
}

func (h *Handler) GetLikes(w http.ResponseWriter, r *http.Request) {
	postID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.Feed.LikeState(r.Context(), postID, viewer(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"like_count": st.LikeCount, "liked_by_me": st.LikedByMe})
}

func (h *Handler) LikePost(w http.ResponseWriter, r *http.Request) {
	postID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.Feed.Like(r.Context(), postID, caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"like_count": st.LikeCount, "liked_by_me": st.LikedByMe})
}

func (h *Handler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	postID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.Feed.Unlike(r.Context(), postID, caller(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"like_count": st.LikeCount, "liked_by_me": st.LikedByMe})
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page := pageFrom(r, services.DefaultFeedLimit, services.MaxFeedLimit)
	comments, total, err := h.Feed.Comments(r.Context(), postID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(map[string]any{"comments": comments}, pageFields(page, total)))
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in services.AddCommentInput
	if err := h.decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Feed.AddComment(r.Context(), postID, caller(r).UserID, in.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": c})
}
