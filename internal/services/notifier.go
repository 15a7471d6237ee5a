package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// Subjects published on the event bus
const (
	SubjectFollowCreated = "social.follow.created"
	SubjectMessageSent   = "social.message.sent"
)

const fallbackTimeout = 10 * time.Second

// PushSender delivers a mobile push notification
type PushSender interface {
	Send(ctx context.Context, deviceToken, title, body string, badge int) error
}

// EventPublisher publishes domain events to other services
type EventPublisher interface {
	Publish(ctx context.Context, subject string, v interface{}) error
}

// FollowNotifier is told about new follow edges
type FollowNotifier interface {
	NewFollower(ctx context.Context, follower, target *models.User)
}

// MessageNotifier is told about stored messages
type MessageNotifier interface {
	NewMessage(ctx context.Context, msg *models.Message, receiver *models.User)
}

// FollowerEvent is the payload of a newFollower event
type FollowerEvent struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// FollowCreatedEvent is published on SubjectFollowCreated
type FollowCreatedEvent struct {
	FollowerID string    `json:"followerId"`
	TargetID   string    `json:"targetId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notifier turns graph and message events into realtime pushes. When a user
// has no live connection it falls back to APNs, and every event is mirrored
// on the event bus. Push and bus are optional.
type Notifier struct {
	hub      *WSHub
	users    repository.UserStore
	messages repository.MessageStore
	push     PushSender
	bus      EventPublisher
	pending  sync.WaitGroup
}

// NewNotifier creates a notifier dispatching through hub
func NewNotifier(hub *WSHub, users repository.UserStore, messages repository.MessageStore) *Notifier {
	return &Notifier{hub: hub, users: users, messages: messages}
}

// WithPush enables the APNs fallback
func (n *Notifier) WithPush(push PushSender) *Notifier {
	n.push = push
	return n
}

// WithEvents enables event bus publishing
func (n *Notifier) WithEvents(bus EventPublisher) *Notifier {
	n.bus = bus
	return n
}

// NewFollower notifies target that follower started following them
func (n *Notifier) NewFollower(ctx context.Context, follower, target *models.User) {
	event := FollowerEvent{
		From:    follower.Name,
		Message: fmt.Sprintf("%s started following you!", follower.Name),
	}
	delivered := n.hub.Dispatch(target.ID, EventNewFollower, event)

	log.Debug().
		Str("follower_id", follower.ID).
		Str("target_id", target.ID).
		Int("delivered", delivered).
		Msg("newFollower dispatched")

	n.spawn(func() {
		n.afterDispatch(context.WithoutCancel(ctx), delivered, target, "New follower", event.Message, false,
			SubjectFollowCreated, FollowCreatedEvent{FollowerID: follower.ID, TargetID: target.ID, CreatedAt: time.Now().UTC()})
	})
}

// NewMessage notifies the receiver of a stored message
func (n *Notifier) NewMessage(ctx context.Context, msg *models.Message, receiver *models.User) {
	delivered := n.hub.Dispatch(receiver.ID, EventNewMessage, msg)

	log.Debug().
		Str("message_id", msg.ID).
		Str("receiver_id", receiver.ID).
		Int("delivered", delivered).
		Msg("newMessage dispatched")

	body := msg.Text
	if body == "" && msg.Image != nil {
		body = "Sent you a photo"
	}
	n.spawn(func() {
		n.afterDispatch(context.WithoutCancel(ctx), delivered, receiver, msg.Sender, body, true,
			SubjectMessageSent, msg)
	})
}

// Wait blocks until every pending push fallback and event publish is done.
// Call it before closing the store.
func (n *Notifier) Wait() {
	n.pending.Wait()
}

func (n *Notifier) spawn(fn func()) {
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		fn()
	}()
}

func (n *Notifier) afterDispatch(ctx context.Context, delivered int, user *models.User, title, body string, withBadge bool, subject string, event interface{}) {
	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	if delivered == 0 && n.push != nil {
		n.pushFallback(ctx, user, title, body, withBadge)
	}
	if n.bus != nil {
		if err := n.bus.Publish(ctx, subject, event); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
		}
	}
}

func (n *Notifier) pushFallback(ctx context.Context, user *models.User, title, body string, withBadge bool) {
	// the caller's copy may predate a token registration
	fresh, err := n.users.GetByID(ctx, user.ID)
	if err != nil || fresh.PushToken == nil || *fresh.PushToken == "" {
		return
	}

	badge := 0
	if withBadge {
		if badge, err = n.messages.UnreadCount(ctx, user.ID); err != nil {
			badge = 0
		}
	}
	if err := n.push.Send(ctx, *fresh.PushToken, title, body, badge); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Push notification failed")
	}
}
