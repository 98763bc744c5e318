package realtime

import (
	"context"
	"fmt"

	"github.com/pusher/pusher-http-go/v5"
)

type pusherTrigger interface {
	Trigger(channel string, eventName string, data interface{}) error
}

// PusherPublisher sends events through the Pusher Channels HTTP API.
type PusherPublisher struct {
	client pusherTrigger
}

func NewPusherPublisher(appID, key, secret, cluster string) *PusherPublisher {
	return &PusherPublisher{
		client: &pusher.Client{
			AppID:   appID,
			Key:     key,
			Secret:  secret,
			Cluster: cluster,
			Secure:  true,
		},
	}
}

func (p *PusherPublisher) Publish(_ context.Context, channel, event string, payload interface{}) error {
	if err := p.client.Trigger(channel, event, payload); err != nil {
		return fmt.Errorf("pusher trigger %s/%s: %w", channel, event, err)
	}
	return nil
}
