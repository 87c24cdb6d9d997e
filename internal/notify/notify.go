// Package notify delivers change notifications to parents. Delivery is
// fire-and-forget: failures are logged and never reach the caller.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/splitweek/internal/model"
	"github.com/dukerupert/splitweek/internal/push"
	"github.com/dukerupert/splitweek/internal/store"
	"github.com/dukerupert/splitweek/internal/websocket"
)

// Notice is the content of one notification.
type Notice struct {
	Category    string
	Title       string
	Body        string
	RelatedType string
	RelatedID   int64
}

// Pusher sends a web push to one subscription.
type Pusher interface {
	Send(sub model.PushSubscription, payload push.Payload) error
}

type Notifier struct {
	children      *store.ChildStore
	notifications *store.NotificationStore
	subs          *store.PushStore
	hub           *websocket.Hub
	pusher        Pusher
	logger        *slog.Logger

	wg sync.WaitGroup
}

// New builds a Notifier. hub and pusher may be nil, which disables that
// delivery channel.
func New(stores *store.Stores, hub *websocket.Hub, pusher Pusher, logger *slog.Logger) *Notifier {
	return &Notifier{
		children:      stores.Children,
		notifications: stores.Notifications,
		subs:          stores.Push,
		hub:           hub,
		pusher:        pusher,
		logger:        logger,
	}
}

// Notify records a notification for userID and pushes it to their open
// connections and subscribed devices.
func (n *Notifier) Notify(ctx context.Context, userID, childID int64, notice Notice) {
	rec := model.Notification{
		UserID:   userID,
		ChildID:  childID,
		Category: notice.Category,
		Title:    notice.Title,
		Body:     notice.Body,
	}
	if notice.RelatedType != "" {
		rt := notice.RelatedType
		rec.RelatedType = &rt
	}
	if notice.RelatedID != 0 {
		rid := notice.RelatedID
		rec.RelatedID = &rid
	}

	saved, err := n.notifications.Create(rec)
	if err != nil {
		n.logger.Error("save notification", "user_id", userID, "child_id", childID, "error", err)
		return
	}

	if n.hub != nil {
		n.hub.SendToUser(userID, websocket.NewMessage("notification", "created", childID, saved.ID, map[string]any{
			"category": saved.Category,
			"title":    saved.Title,
			"body":     saved.Body,
		}))
	}

	if n.pusher != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.sendPush(userID, notice)
		}()
	}
}

// NotifyOtherParent notifies every parent of childID except actorID.
func (n *Notifier) NotifyOtherParent(ctx context.Context, actorID, childID int64, notice Notice) {
	ids, err := n.children.OtherParentIDs(childID, actorID)
	if err != nil {
		n.logger.Error("list other parents", "child_id", childID, "error", err)
		return
	}
	if len(ids) == 0 {
		n.logger.Debug("no other parent to notify", "child_id", childID, "actor_id", actorID)
		return
	}
	for _, id := range ids {
		n.Notify(ctx, id, childID, notice)
	}
}

// Changed tells every connected parent of childID that an entity changed so
// open views can refresh.
func (n *Notifier) Changed(childID int64, entity, action string, id int64) {
	if n.hub == nil {
		return
	}
	n.hub.PublishToChild(childID, websocket.NewMessage(entity, action, childID, id, nil))
}

// Linked subscribes userID's open connections to childID.
func (n *Notifier) Linked(userID, childID int64) {
	if n.hub == nil {
		return
	}
	n.hub.Subscribe(userID, childID)
}

// Wait blocks until in-flight push deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) sendPush(userID int64, notice Notice) {
	subs, err := n.subs.ListByUser(userID)
	if err != nil {
		n.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		return
	}

	payload := push.Payload{
		Title: notice.Title,
		Body:  notice.Body,
		URL:   "/notifications",
		Tag:   notice.Category,
	}
	for _, sub := range subs {
		err := n.pusher.Send(sub, payload)
		if errors.Is(err, push.ErrExpired) {
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "error", err)
			}
			continue
		}
		if err != nil {
			n.logger.Warn("send push", "user_id", userID, "subscription_id", sub.ID, "error", err)
		}
	}
}
