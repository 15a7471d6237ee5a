package push

import (
	"context"
	"fmt"

	"kissan-connect-backend/internal/monitoring"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Options configures the APNs token client
type Options struct {
	KeyPath    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// APNsSender sends alert notifications through Apple Push Notification service
type APNsSender struct {
	client *apns2.Client
	topic  string
}

// NewAPNsSender loads the .p8 signing key and builds a token-based client
func NewAPNsSender(opts Options) (*APNsSender, error) {
	authKey, err := token.AuthKeyFromFile(opts.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   opts.KeyID,
		TeamID:  opts.TeamID,
	})
	if opts.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsSender{client: client, topic: opts.Topic}, nil
}

// Send delivers an alert to one device. A badge of zero leaves the app badge
// untouched.
func (s *APNsSender) Send(ctx context.Context, deviceToken, title, body string, badge int) error {
	p := payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default")
	if badge > 0 {
		p = p.Badge(badge)
	}

	res, err := s.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		Payload:     p,
	})
	if err != nil {
		monitoring.PushNotifications.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		monitoring.PushNotifications.WithLabelValues("rejected").Inc()
		return fmt.Errorf("notification rejected: %d %s", res.StatusCode, res.Reason)
	}

	monitoring.PushNotifications.WithLabelValues("sent").Inc()
	log.Debug().Str("apns_id", res.ApnsID).Msg("Push notification sent")
	return nil
}
