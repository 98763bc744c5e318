package usecase

import (
	"context"
	"errors"

	authdomain "codentor-backend/internal/auth/domain"
	authrepo "codentor-backend/internal/auth/repository"
	"codentor-backend/pkg/fcm"
	"codentor-backend/pkg/logger"
	"codentor-backend/pkg/webpush"
)

type WebPushSender interface {
	PublicKey() string
	Send(ctx context.Context, sub webpush.Subscription, payload webpush.Payload) error
}

type FCMSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// PushMessage is one device notification, rendered for both web push and FCM.
type PushMessage struct {
	Title string
	Body  string
	URL   string
	Tag   string
	Data  map[string]string
}

type PushResult struct {
	WebPushSent int `json:"webPushSent"`
	FCMSent     int `json:"fcmSent"`
	Pruned      int `json:"pruned"`
}

// PushService fans a message out to every device a user registered and
// deletes registrations the push services reject as gone.
type PushService struct {
	subs      authrepo.PushSubscriptionRepository
	fcmTokens authrepo.FCMTokenRepository
	webPush   WebPushSender
	fcm       FCMSender
}

// NewPushService accepts nil senders for channels that are not configured.
func NewPushService(subs authrepo.PushSubscriptionRepository, fcmTokens authrepo.FCMTokenRepository, webPush WebPushSender, fcmSender FCMSender) *PushService {
	return &PushService{subs: subs, fcmTokens: fcmTokens, webPush: webPush, fcm: fcmSender}
}

func (p *PushService) VAPIDPublicKey() string {
	if p.webPush == nil {
		return ""
	}
	return p.webPush.PublicKey()
}

func (p *PushService) WebPushEnabled() bool { return p.webPush != nil }
func (p *PushService) FCMEnabled() bool     { return p.fcm != nil }

func (p *PushService) SendToUser(ctx context.Context, userID string, msg PushMessage) PushResult {
	var result PushResult
	log := logger.WithContext(ctx).WithField("user_id", userID)

	if p.webPush != nil {
		subs, err := p.subs.FindByUserID(userID)
		if err != nil {
			log.WithError(err).Warn("[Push] Failed to load push subscriptions")
		}
		payload := webpush.Payload{Title: msg.Title, Body: msg.Body, URL: msg.URL, Tag: msg.Tag, Data: msg.Data}
		for _, sub := range subs {
			err := p.webPush.Send(ctx, webpush.Subscription{Endpoint: sub.Endpoint, P256dh: sub.P256dh, Auth: sub.Auth}, payload)
			switch {
			case err == nil:
				result.WebPushSent++
			case errors.Is(err, webpush.ErrSubscriptionGone):
				if err := p.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
					log.WithError(err).Warn("[Push] Failed to prune subscription")
					continue
				}
				result.Pruned++
			default:
				log.WithError(err).Warn("[Push] Web push delivery failed")
			}
		}
	}

	if p.fcm != nil {
		tokens, err := p.fcmTokens.GetTokensByUserID(userID)
		if err != nil {
			log.WithError(err).Warn("[Push] Failed to load FCM tokens")
		}
		if len(tokens) > 0 {
			raw := make([]string, 0, len(tokens))
			for _, t := range tokens {
				raw = append(raw, t.Token)
			}
			failed, err := p.fcm.SendToDevices(ctx, raw, fcm.NotificationData{
				Title:       msg.Title,
				Body:        msg.Body,
				Data:        msg.Data,
				ClickAction: msg.URL,
			})
			if err != nil {
				log.WithError(err).Warn("[Push] FCM delivery failed")
			} else {
				result.FCMSent = len(raw) - len(failed)
				for _, token := range failed {
					if err := p.fcmTokens.DeleteToken(token); err == nil {
						result.Pruned++
					}
				}
			}
		}
	}

	return result
}

func (p *PushService) Subscribe(userID, endpoint, p256dh, auth, userAgent string) error {
	return p.subs.Save(&authdomain.PushSubscription{
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		UserAgent: userAgent,
	})
}

func (p *PushService) Unsubscribe(userID, endpoint string) error {
	return p.subs.DeleteUserEndpoint(userID, endpoint)
}

func (p *PushService) RegisterFCMToken(userID, token, deviceInfo string) error {
	return p.fcmTokens.SaveToken(userID, token, deviceInfo)
}

func (p *PushService) UnregisterFCMToken(userID, token string) error {
	return p.fcmTokens.DeleteUserToken(userID, token)
}
