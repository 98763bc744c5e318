package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"codentor-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubPublisher mirrors realtime events onto a Cloud Pub/Sub topic so other
// services (mobile gateway, analytics) can consume the same stream. The
// channel and event names travel as message attributes.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubPublisher(ctx context.Context, projectID, topicName, credentialsFile string) (*PubSubPublisher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	// Accept either the short topic name or the full resource name
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}

	return &PubSubPublisher{
		client: client,
		topic:  client.Topic(topicName),
	}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pubsub payload: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"channel": channel,
			"event":   event,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub publish %s/%s: %w", channel, event, err)
	}
	return nil
}

// Relay consumes the topic through subscription subName and republishes each
// message to local. Every instance uses its own subscription so all of them
// see every event. Relay blocks until ctx is done.
func (p *PubSubPublisher) Relay(ctx context.Context, subName string, local Publisher) error {
	log := logger.WithComponent("PubSub")

	sub := p.client.Subscription(subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", subName, err)
	}

	if !exists {
		topicExists, err := p.topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check topic: %w", err)
		}
		if !topicExists {
			return fmt.Errorf("topic %s does not exist", p.topic.ID())
		}

		sub, err = p.client.CreateSubscription(ctx, subName, pubsub.SubscriptionConfig{
			Topic:            p.topic,
			AckDeadline:      10 * time.Second,
			ExpirationPolicy: 24 * time.Hour,
		})
		if err != nil {
			return fmt.Errorf("create subscription %s: %w", subName, err)
		}
		log.WithField("subscription", subName).Info("[PubSub] Created subscription")
	}

	log.WithField("subscription", subName).Info("[PubSub] Relaying realtime events")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := relayMessage(ctx, local, msg.Data, msg.Attributes); err != nil {
			log.WithError(err).Warn("[PubSub] Dropping message")
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive: %w", err)
	}
	return nil
}

func relayMessage(ctx context.Context, local Publisher, data []byte, attrs map[string]string) error {
	channel, event := attrs["channel"], attrs["event"]
	if channel == "" || event == "" {
		return errors.New("message has no channel or event attribute")
	}
	if !json.Valid(data) {
		return errors.New("message payload is not JSON")
	}
	return local.Publish(ctx, channel, event, json.RawMessage(data))
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
