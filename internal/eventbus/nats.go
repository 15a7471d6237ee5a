package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// SubjectPattern covers every subject this service publishes
const SubjectPattern = "social.>"

// NatsPublisher publishes JSON domain events to a JetStream stream
type NatsPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNatsPublisher connects to url and makes sure the stream exists
func NewNatsPublisher(ctx context.Context, url, stream string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("kissan-connect-backend"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream: %w", err)
	}

	log.Info().Str("stream", stream).Msg("Event bus connected")
	return &NatsPublisher{nc: nc, js: js}, nil
}

// Publish marshals v and waits for the stream acknowledgement
func (p *NatsPublisher) Publish(ctx context.Context, subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	log.Debug().Str("subject", subject).Uint64("seq", ack.Sequence).Msg("Event published")
	return nil
}

// Close drains pending publishes and closes the connection
func (p *NatsPublisher) Close() error {
	return p.nc.Drain()
}
