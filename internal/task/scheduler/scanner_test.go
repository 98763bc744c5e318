package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "codentor-backend/internal/auth/domain"
	authrepo "codentor-backend/internal/auth/repository"
	notifdomain "codentor-backend/internal/notification/domain"
	notifusecase "codentor-backend/internal/notification/usecase"
	"codentor-backend/internal/task/domain"
	"codentor-backend/internal/task/repository"
	"codentor-backend/pkg/database"
	"codentor-backend/pkg/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notifdomain.Notification
	refs []*notifdomain.TaskRef
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n *notifdomain.Notification, task *notifdomain.TaskRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	r.refs = append(r.refs, task)
	return nil
}

type recordingPusher struct{ messages []notifusecase.PushMessage }

func (r *recordingPusher) SendToUser(_ context.Context, _ string, msg notifusecase.PushMessage) notifusecase.PushResult {
	r.messages = append(r.messages, msg)
	return notifusecase.PushResult{WebPushSent: 1}
}

type recordingMailer struct {
	sent []mailer.Message
	err  error
}

func (r *recordingMailer) Configured() bool { return true }

func (r *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type recordingTelegram struct{ chats []int64 }

func (r *recordingTelegram) SendMessage(chatID int64, _ string) error {
	r.chats = append(r.chats, chatID)
	return nil
}

type fixture struct {
	scanner  *Scanner
	tasks    repository.TaskRepository
	users    authrepo.UserRepository
	notifier *recordingNotifier
	pusher   *recordingPusher
	mail     *recordingMailer
	telegram *recordingTelegram
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Task{}, &authdomain.User{}))

	f := &fixture{
		tasks:    repository.NewGormTaskRepository(db),
		users:    authrepo.NewUserRepository(db),
		notifier: &recordingNotifier{},
		pusher:   &recordingPusher{},
		mail:     &recordingMailer{},
		telegram: &recordingTelegram{},
		now:      time.Now().UTC().Truncate(time.Second),
	}
	f.scanner = NewScanner(Deps{
		Tasks:         f.tasks,
		Users:         f.users,
		Notifications: f.notifier,
		Push:          f.pusher,
		Mail:          f.mail,
		Telegram:      f.telegram,
		BaseURL:       "http://localhost:3000",
	})
	f.scanner.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) user(t *testing.T, chatID *int64) *authdomain.User {
	t.Helper()
	u := &authdomain.User{Email: "dev@example.com", Name: "Dev", TelegramChatID: chatID}
	require.NoError(t, f.users.Create(u))
	return u
}

func (f *fixture) task(t *testing.T, userID, title string, dueIn time.Duration) *domain.Task {
	t.Helper()
	due := f.now.Add(dueIn)
	task := &domain.Task{UserID: userID, Title: title, DueDate: &due, Status: domain.TaskStatusPending, Priority: domain.PriorityMedium}
	require.NoError(t, f.tasks.Create(task))
	return task
}

func TestScanClassifiesByTimeToDue(t *testing.T) {
	f := newFixture(t)
	chat := int64(42)
	u := f.user(t, &chat)
	soon := f.task(t, u.ID, "Submit PR", 30*time.Minute)
	later := f.task(t, u.ID, "Mock interview", 23*time.Hour)

	res, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Fired, 2)

	types := map[string]domain.ReminderType{}
	for _, fired := range res.Fired {
		types[fired.TaskID] = fired.Type
	}
	assert.Equal(t, domain.ReminderTypeDueSoon, types[soon.ID])
	assert.Equal(t, domain.ReminderTypeReminder, types[later.ID])

	require.Len(t, f.notifier.sent, 2)
	assert.Equal(t, "Submit PR", f.notifier.refs[0].Title)
	for _, n := range f.notifier.sent {
		require.NotNil(t, n.ActorID)
		assert.Equal(t, notifdomain.ActorSystem, *n.ActorID)
		require.NotNil(t, n.TaskID)
	}
	assert.Len(t, f.mail.sent, 2)
	assert.Equal(t, "dev@example.com", f.mail.sent[0].To)
	assert.Len(t, f.pusher.messages, 2)
	assert.Equal(t, []int64{42, 42}, f.telegram.chats)

	stored, err := f.tasks.FindByID(soon.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageDue1h, stored.ReminderStage)
	assert.True(t, stored.ReminderSent)
	assert.True(t, stored.Reminder24hSent)
	assert.True(t, stored.Reminder1hSent)
	assert.False(t, stored.Reminder5mSent)
}

func TestScanIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, nil)
	f.task(t, u.ID, "Read chapter", 2*time.Hour)

	first, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.Fired, 1)

	second, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Fired)
	assert.Len(t, f.notifier.sent, 1)
	assert.Empty(t, f.telegram.chats)
}

func TestScanEscalatesThroughWindows(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, nil)
	task := f.task(t, u.ID, "Deploy", 3*time.Hour)

	_, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)

	f.now = f.now.Add(2*time.Hour + 10*time.Minute)
	res, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Fired, 1)
	assert.Equal(t, domain.ReminderTypeDueSoon, res.Fired[0].Type)

	f.now = f.now.Add(47 * time.Minute)
	res, err = f.scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Fired, 1)
	assert.Equal(t, domain.StageSent.String(), res.Fired[0].Stage)

	stored, _ := f.tasks.FindByID(task.ID)
	assert.True(t, stored.Reminder5mSent)
}

func TestScanConcurrentScannersSendOnce(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, nil)
	f.task(t, u.ID, "Race", 20*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.scanner.Scan(context.Background())
		}()
	}
	wg.Wait()

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Len(t, f.notifier.sent, 1)
}

func TestScanSkipsMissingOwner(t *testing.T) {
	f := newFixture(t)
	orphan := f.task(t, "ghost", "Orphan", time.Hour/2)

	res, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Fired)
	assert.Equal(t, 1, res.Skipped)

	stored, _ := f.tasks.FindByID(orphan.ID)
	assert.Equal(t, domain.StageNotDue, stored.ReminderStage)
}

func TestScanSurvivesEmailFailure(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errors.New("smtp down")
	u := f.user(t, nil)
	f.task(t, u.ID, "Still notify", 10*time.Hour)

	res, err := f.scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Fired, 1)
	assert.Len(t, f.notifier.sent, 1)
}

func TestSendTestLeavesStateAlone(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, nil)
	task := f.task(t, u.ID, "Try me", 72*time.Hour)

	fired, err := f.scanner.SendTest(context.Background(), u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderType(notifdomain.TypeTest), fired.Type)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notifdomain.TypeTest, f.notifier.sent[0].Type)

	stored, _ := f.tasks.FindByID(task.ID)
	assert.Equal(t, domain.StageNotDue, stored.ReminderStage)
	assert.False(t, stored.ReminderSent)

	_, err = f.scanner.SendTest(context.Background(), "someone-else", task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}
