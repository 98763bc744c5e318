package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "codentor-backend/internal/auth/domain"
	authrepo "codentor-backend/internal/auth/repository"
	"codentor-backend/internal/notification/domain"
	"codentor-backend/internal/notification/repository"
	"codentor-backend/pkg/database"
	"codentor-backend/pkg/fcm"
	"codentor-backend/pkg/webpush"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type published struct {
	channel, event string
	payload        interface{}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, channel, event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, published{channel, event, payload})
	return c.err
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Notification{}, &authdomain.PushSubscription{}, &authdomain.FCMToken{}))
	return db
}

func TestNotifyPersistsAndPublishes(t *testing.T) {
	db := newDB(t)
	pub := &capturePublisher{}
	svc := NewService(repository.NewGormNotificationRepository(db), pub)

	due := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	taskID, actor := "task-1", domain.ActorSystem
	n := &domain.Notification{UserID: "u1", ActorID: &actor, TaskID: &taskID, Type: domain.TypeDueSoon, Title: "Due soon", Message: "Ship it"}
	require.NoError(t, svc.Notify(context.Background(), n, &domain.TaskRef{Title: "Ship it", DueDate: &due}))

	require.Len(t, pub.events, 1)
	assert.Equal(t, "user-u1", pub.events[0].channel)
	assert.Equal(t, "notification", pub.events[0].event)

	raw, err := json.Marshal(pub.events[0].payload)
	require.NoError(t, err)
	var body struct {
		Notification struct {
			ID      string `json:"id"`
			Type    string `json:"type"`
			ActorID string `json:"actorId"`
			TaskID  string `json:"taskId"`
			Task    struct {
				Title   string `json:"title"`
				DueDate string `json:"dueDate"`
			} `json:"task"`
		} `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, n.ID, body.Notification.ID)
	assert.Equal(t, "due_soon", body.Notification.Type)
	assert.Equal(t, "system", body.Notification.ActorID)
	assert.Equal(t, "task-1", body.Notification.TaskID)
	assert.Equal(t, "Ship it", body.Notification.Task.Title)
	assert.Equal(t, "2030-05-01T09:00:00Z", body.Notification.Task.DueDate)

	items, total, unread, err := svc.List("u1", false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), unread)

	assert.ErrorIs(t, svc.MarkRead("someone-else", n.ID), domain.ErrNotificationNotFound)
	require.NoError(t, svc.MarkRead("u1", n.ID))
	_, _, unread, err = svc.List("u1", false, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestNotifySurvivesPublishFailure(t *testing.T) {
	db := newDB(t)
	svc := NewService(repository.NewGormNotificationRepository(db), &capturePublisher{err: errors.New("pusher down")})

	require.NoError(t, svc.Notify(context.Background(), &domain.Notification{UserID: "u1", Type: domain.TypeReminder, Title: "t"}, nil))
	_, total, _, err := svc.List("u1", true, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

type fakeWebPush struct {
	gone map[string]bool
	sent []string
}

func (f *fakeWebPush) PublicKey() string { return "vapid-public" }

func (f *fakeWebPush) Send(_ context.Context, sub webpush.Subscription, _ webpush.Payload) error {
	if f.gone[sub.Endpoint] {
		return webpush.ErrSubscriptionGone
	}
	f.sent = append(f.sent, sub.Endpoint)
	return nil
}

type fakeFCM struct {
	failed []string
}

func (f *fakeFCM) SendToDevices(_ context.Context, tokens []string, _ fcm.NotificationData) ([]string, error) {
	return f.failed, nil
}

func TestPushServicePrunesDeadRegistrations(t *testing.T) {
	db := newDB(t)
	subs := authrepo.NewPushSubscriptionRepository(db)
	tokens := authrepo.NewFCMTokenRepository(db)

	wp := &fakeWebPush{gone: map[string]bool{"https://push.example/dead": true}}
	push := NewPushService(subs, tokens, wp, &fakeFCM{failed: []string{"tok-stale"}})

	require.NoError(t, push.Subscribe("u1", "https://push.example/live", "p", "a", "test"))
	require.NoError(t, push.Subscribe("u1", "https://push.example/dead", "p", "a", "test"))
	require.NoError(t, push.RegisterFCMToken("u1", "tok-ok", "pixel"))
	require.NoError(t, push.RegisterFCMToken("u1", "tok-stale", "old phone"))

	result := push.SendToUser(context.Background(), "u1", PushMessage{Title: "Due soon", Body: "Ship it"})
	assert.Equal(t, PushResult{WebPushSent: 1, FCMSent: 1, Pruned: 2}, result)
	assert.Equal(t, []string{"https://push.example/live"}, wp.sent)

	left, err := subs.FindByUserID("u1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "https://push.example/live", left[0].Endpoint)

	leftTokens, err := tokens.GetTokensByUserID("u1")
	require.NoError(t, err)
	require.Len(t, leftTokens, 1)
	assert.Equal(t, "tok-ok", leftTokens[0].Token)
	assert.Equal(t, "vapid-public", push.VAPIDPublicKey())
}

func TestPushServiceWithoutSenders(t *testing.T) {
	db := newDB(t)
	push := NewPushService(authrepo.NewPushSubscriptionRepository(db), authrepo.NewFCMTokenRepository(db), nil, nil)

	assert.False(t, push.WebPushEnabled())
	assert.Equal(t, "", push.VAPIDPublicKey())
	assert.Equal(t, PushResult{}, push.SendToUser(context.Background(), "u1", PushMessage{Title: "x"}))
}
