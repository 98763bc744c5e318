package webpush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	webpushgo "github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionGone means the push service no longer knows the endpoint
// (HTTP 404 or 410); the subscription should be deleted.
var ErrSubscriptionGone = errors.New("push subscription expired")

type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Payload is the JSON body the service worker receives.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	URL   string            `json:"url,omitempty"`
	Tag   string            `json:"tag,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type sendFunc func(ctx context.Context, message []byte, s *webpushgo.Subscription, options *webpushgo.Options) (*http.Response, error)

// Sender delivers browser push messages signed with the VAPID key pair.
type Sender struct {
	publicKey  string
	privateKey string
	subject    string
	ttl        int
	send       sendFunc
}

func NewSender(publicKey, privateKey, subject string) *Sender {
	return &Sender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subject:    subject,
		ttl:        60 * 60,
		send:       webpushgo.SendNotificationWithContext,
	}
}

func (s *Sender) PublicKey() string {
	return s.publicKey
}

func (s *Sender) Send(ctx context.Context, sub Subscription, payload Payload) error {
	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	resp, err := s.send(ctx, message, &webpushgo.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpushgo.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpushgo.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
		Urgency:         webpushgo.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("web push rejected with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
