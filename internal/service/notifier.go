package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/notify-service/internal/domain"
	"github.com/cwrk-planet/notify-service/pkg/logger"
)

// EventLikeCountUpdated is pushed to a post owner when the like count changes.
const EventLikeCountUpdated = "likeCount-updated"

// Emitter is the hub's broadcast primitive.
type Emitter interface {
	Emit(group, event string, payload any) (int, error)
	Members(group string) int
}

// Notifier is the entry point for callers outside the hub (HTTP handlers,
// the like flow) that push events to users.
type Notifier struct {
	hub Emitter
}

func NewNotifier(hub Emitter) *Notifier {
	return &Notifier{hub: hub}
}

// NotifyUser emits event to every live connection registered as userID and
// returns how many received it. userID is used verbatim, as on registration.
func (n *Notifier) NotifyUser(ctx context.Context, userID, event string, payload any) (int, error) {
	if userID == "" {
		return 0, domain.ErrInvalidUser
	}
	return n.NotifyGroup(ctx, domain.GroupName(userID), event, payload)
}

// NotifyGroup emits event to every member of group.
func (n *Notifier) NotifyGroup(ctx context.Context, group, event string, payload any) (int, error) {
	if strings.TrimSpace(group) == "" {
		return 0, domain.ErrInvalidGroup
	}
	if strings.TrimSpace(event) == "" {
		return 0, domain.ErrInvalidEvent
	}

	delivered, err := n.hub.Emit(group, event, payload)
	if err != nil {
		return 0, fmt.Errorf("notify %s: %w", group, err)
	}

	logger.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug, "notify emitted",
		append(logger.AttrsFromCtx(ctx),
			slog.String("group", group),
			slog.String("event", event),
			slog.Int("delivered", delivered),
		)...,
	)
	return delivered, nil
}

// LikeCountPayload is the data of EventLikeCountUpdated.
type LikeCountPayload struct {
	PostID    string `json:"postId,omitempty"`
	LikeCount int    `json:"likeCount"`
}

// PostLiked tells the post owner about the new like count.
func (n *Notifier) PostLiked(ctx context.Context, ownerID, postID string, likeCount int) (int, error) {
	return n.NotifyUser(ctx, ownerID, EventLikeCountUpdated, LikeCountPayload{
		PostID:    postID,
		LikeCount: likeCount,
	})
}

// Members reports how many connections are in group.
func (n *Notifier) Members(group string) int {
	return n.hub.Members(group)
}
