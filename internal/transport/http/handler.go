package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cwrk-planet/notify-service/internal/domain"
	"github.com/cwrk-planet/notify-service/internal/service"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	notifier *service.Notifier
}

func NewHandler(notifier *service.Notifier) *Handler {
	return &Handler{notifier: notifier}
}

type EmitRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type EmitResponse struct {
	Group     string `json:"group"`
	Delivered int    `json:"delivered"`
}

type GroupResponse struct {
	Group   string `json:"group"`
	Members int    `json:"members"`
}

type LikeCountRequest struct {
	PostID    string `json:"postId"`
	LikeCount *int   `json:"likeCount"`
}

func decodeEmit(r *http.Request) (string, any, error) {
	var req EmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	var payload any
	if len(req.Data) > 0 {
		payload = req.Data
	}
	return req.Event, payload, nil
}

// POST /notify/users/{userID}
func (h *Handler) NotifyUser(w http.ResponseWriter, r *http.Request) {
	event, payload, err := decodeEmit(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	userID := chi.URLParam(r, "userID")
	n, err := h.notifier.NotifyUser(r.Context(), userID, event, payload)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusAccepted, EmitResponse{Group: domain.GroupName(userID), Delivered: n})
}

// POST /notify/users/{userID}/like-count
func (h *Handler) LikeCount(w http.ResponseWriter, r *http.Request) {
	var req LikeCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	if req.LikeCount == nil {
		writeError(r.Context(), w, fmt.Errorf("%w: likeCount is required", domain.ErrInvalidInput))
		return
	}
	userID := chi.URLParam(r, "userID")
	n, err := h.notifier.PostLiked(r.Context(), userID, req.PostID, *req.LikeCount)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusAccepted, EmitResponse{Group: domain.GroupName(userID), Delivered: n})
}

// POST /notify/groups/{group}
func (h *Handler) NotifyGroup(w http.ResponseWriter, r *http.Request) {
	event, payload, err := decodeEmit(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	group := chi.URLParam(r, "group")
	n, err := h.notifier.NotifyGroup(r.Context(), group, event, payload)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeData(w, http.StatusAccepted, EmitResponse{Group: group, Delivered: n})
}

// GET /notify/groups/{group}
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	writeData(w, http.StatusOK, GroupResponse{Group: group, Members: h.notifier.Members(group)})
}
