package scheduler

import (
	"context"
	"fmt"
	"html"
	"time"

	authdomain "codentor-backend/internal/auth/domain"
	authrepo "codentor-backend/internal/auth/repository"
	notifdomain "codentor-backend/internal/notification/domain"
	notifusecase "codentor-backend/internal/notification/usecase"
	"codentor-backend/internal/task/domain"
	"codentor-backend/internal/task/repository"
	"codentor-backend/pkg/logger"
	"codentor-backend/pkg/mailer"
)

// deliveryTimeout bounds each outbound channel call for one reminder.
const deliveryTimeout = 10 * time.Second

type Notifier interface {
	Notify(ctx context.Context, n *notifdomain.Notification, task *notifdomain.TaskRef) error
}

type Pusher interface {
	SendToUser(ctx context.Context, userID string, msg notifusecase.PushMessage) notifusecase.PushResult
}

type Mailer interface {
	Configured() bool
	Send(ctx context.Context, msg mailer.Message) error
}

type TelegramSender interface {
	SendMessage(chatID int64, text string) error
}

// Deps wires the scanner. Push, Mail and Telegram are optional.
type Deps struct {
	Tasks         repository.TaskRepository
	Users         authrepo.UserRepository
	Notifications Notifier
	Push          Pusher
	Mail          Mailer
	Telegram      TelegramSender
	// BaseURL is the frontend origin used for links in reminders.
	BaseURL string
}

// FiredReminder records one reminder a scan delivered.
type FiredReminder struct {
	TaskID string              `json:"taskId"`
	UserID string              `json:"userId"`
	Title  string              `json:"title"`
	Type   domain.ReminderType `json:"type"`
	Stage  string              `json:"stage"`
}

type ScanResult struct {
	Candidates int             `json:"candidates"`
	Fired      []FiredReminder `json:"fired"`
	// Skipped counts candidates with no owner or a claim lost to another scanner.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Scanner finds tasks entering a reminder window and notifies their owners
// over every configured channel.
type Scanner struct {
	deps Deps
	now  func() time.Time
}

func NewScanner(deps Deps) *Scanner {
	return &Scanner{deps: deps, now: time.Now}
}

func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	log := logger.WithComponent("ReminderScanner")
	now := s.now()

	tasks, err := s.deps.Tasks.FindReminderCandidates(now)
	if err != nil {
		return nil, fmt.Errorf("find reminder candidates: %w", err)
	}

	result := &ScanResult{Candidates: len(tasks), Fired: []FiredReminder{}}
	for _, task := range tasks {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		target, due := task.NextReminder(now)
		if !due {
			continue
		}

		user, err := s.deps.Users.FindByID(task.UserID)
		if err != nil {
			log.WithError(err).WithField("task_id", task.ID).Error("[Scan] Failed to load task owner")
			result.Failed++
			continue
		}
		if user == nil {
			log.WithField("task_id", task.ID).Warn("[Scan] Task owner no longer exists, skipping")
			result.Skipped++
			continue
		}

		claimed, err := s.deps.Tasks.ClaimReminder(task.ID, task.ReminderStage, target)
		if err != nil {
			log.WithError(err).WithField("task_id", task.ID).Error("[Scan] Failed to claim reminder")
			result.Failed++
			continue
		}
		if !claimed {
			result.Skipped++
			continue
		}

		kind := domain.TypeFor(target)
		if err := s.deliver(ctx, user, task, string(kind)); err != nil {
			log.WithError(err).WithField("task_id", task.ID).Error("[Scan] Failed to record notification")
			result.Failed++
			continue
		}

		result.Fired = append(result.Fired, FiredReminder{
			TaskID: task.ID,
			UserID: user.ID,
			Title:  task.Title,
			Type:   kind,
			Stage:  target.String(),
		})
	}

	if len(result.Fired) > 0 || result.Failed > 0 {
		log.WithFields(map[string]interface{}{
			"candidates": result.Candidates,
			"fired":      len(result.Fired),
			"skipped":    result.Skipped,
			"failed":     result.Failed,
		}).Info("[Scan] Reminder scan finished")
	}
	return result, nil
}

// SendTest delivers one reminder for a task the user owns without moving its
// reminder state.
func (s *Scanner) SendTest(ctx context.Context, userID, taskID string) (*FiredReminder, error) {
	task, err := s.deps.Tasks.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	user, err := s.deps.Users.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrUserNotFound
	}

	if err := s.deliver(ctx, user, task, notifdomain.TypeTest); err != nil {
		return nil, err
	}
	return &FiredReminder{TaskID: task.ID, UserID: user.ID, Title: task.Title, Type: notifdomain.TypeTest, Stage: task.ReminderStage.String()}, nil
}

// deliver runs every channel. Only the in-app notification is fatal: email,
// push and Telegram failures are logged.
func (s *Scanner) deliver(ctx context.Context, user *authdomain.User, task *domain.Task, kind string) error {
	log := logger.WithContext(ctx).WithFields(map[string]interface{}{"task_id": task.ID, "user_id": user.ID, "type": kind})
	title, body := s.render(task, kind)
	link := s.deps.BaseURL + "/dashboard?task=" + task.ID

	if s.deps.Mail != nil && s.deps.Mail.Configured() {
		mailCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		err := s.deps.Mail.Send(mailCtx, mailer.Message{
			To:      user.Email,
			ToName:  user.Name,
			Subject: title,
			Text:    body + "\n\n" + link,
			HTML: fmt.Sprintf(`<p>%s</p><p><a href="%s">Open task</a></p>`,
				html.EscapeString(body), html.EscapeString(link)),
		})
		cancel()
		if err != nil {
			log.WithError(err).Warn("[Reminder] Email delivery failed")
		}
	}

	taskID, actor := task.ID, notifdomain.ActorSystem
	notifyCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	err := s.deps.Notifications.Notify(notifyCtx, &notifdomain.Notification{
		UserID:  user.ID,
		ActorID: &actor,
		TaskID:  &taskID,
		Type:    kind,
		Title:   title,
		Message: body,
	}, &notifdomain.TaskRef{Title: task.Title, DueDate: task.DueDate})
	cancel()
	if err != nil {
		return err
	}

	if s.deps.Push != nil {
		pushCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		res := s.deps.Push.SendToUser(pushCtx, user.ID, notifusecase.PushMessage{
			Title: title,
			Body:  body,
			URL:   link,
			Tag:   "task-" + task.ID,
			Data:  map[string]string{"type": kind, "taskId": task.ID},
		})
		cancel()
		log.WithFields(map[string]interface{}{"web_push": res.WebPushSent, "fcm": res.FCMSent, "pruned": res.Pruned}).
			Debug("[Reminder] Push fan-out done")
	}

	if s.deps.Telegram != nil && user.TelegramChatID != nil {
		if err := s.deps.Telegram.SendMessage(*user.TelegramChatID, title+"\n"+body+"\n"+link); err != nil {
			log.WithError(err).Warn("[Reminder] Telegram delivery failed")
		}
	}
	return nil
}

func (s *Scanner) render(task *domain.Task, kind string) (string, string) {
	due := "no due date"
	if task.DueDate != nil {
		due = task.DueDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	}

	switch kind {
	case string(domain.ReminderTypeDueSoon):
		left := "now"
		if task.DueDate != nil {
			if d := task.DueDate.Sub(s.now()).Round(time.Minute); d > 0 {
				left = "in " + d.String()
			}
		}
		return "Due soon: " + task.Title, fmt.Sprintf("%q is due %s (%s).", task.Title, left, due)
	case notifdomain.TypeTest:
		return "Test reminder: " + task.Title, fmt.Sprintf("This is how reminders for %q will look. Due: %s.", task.Title, due)
	default:
		return "Reminder: " + task.Title, fmt.Sprintf("%q is due %s.", task.Title, due)
	}
}
