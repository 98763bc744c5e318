package fcm

import (
	"context"
	"fmt"

	"codentor-backend/pkg/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Client wraps Firebase Cloud Messaging for device-token pushes.
type Client struct {
	messagingClient *messaging.Client
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logger.WithComponent("FCM").Info("[FCM] Client initialized successfully")
	return &Client{messagingClient: messagingClient}, nil
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title       string
	Body        string
	ImageURL    string
	Data        map[string]string
	ClickAction string // URL opened when the notification is clicked
}

func (n NotificationData) multicast(tokens []string) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title:    n.Title,
			Body:     n.Body,
			ImageURL: n.ImageURL,
		},
		Data: n.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Icon:  "/icon-192.png",
			},
		},
	}
	if n.ClickAction != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: n.ClickAction}
	}
	return msg
}

// SendToDevices sends a push notification to multiple device tokens.
// Returns the tokens that failed to receive the notification.
func (c *Client) SendToDevices(ctx context.Context, tokens []string, notification NotificationData) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, notification.multicast(tokens))
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	log := logger.WithComponent("FCM")
	log.Infof("[FCM] Multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)

	var failedTokens []string
	for i, resp := range response.Responses {
		if !resp.Success {
			failedTokens = append(failedTokens, tokens[i])
			log.WithError(resp.Error).Warnf("[FCM] Failed to send to token %s", truncate(tokens[i]))
		}
	}

	return failedTokens, nil
}

func truncate(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
