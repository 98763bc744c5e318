package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codentor-backend/internal/task/domain"
	taskusecase "codentor-backend/internal/task/usecase"
	"codentor-backend/pkg/fuzzy"
	"codentor-backend/pkg/logger"
)

type Intent string

const (
	IntentCreateTask   Intent = "create_task"
	IntentListTasks    Intent = "list_tasks"
	IntentDueToday     Intent = "due_today"
	IntentCompleteTask Intent = "complete_task"
	IntentDeleteTask   Intent = "delete_task"
	IntentUnknown      Intent = "unknown"
)

// minTitleSimilarity is how close a spoken title must be to a stored one.
const minTitleSimilarity = 0.6

type Result struct {
	Intent  Intent         `json:"intent"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Task    *domain.Task   `json:"task,omitempty"`
	Tasks   []*domain.Task `json:"tasks,omitempty"`
}

type handlerFunc func(ctx context.Context, userID string, m []string) (*Result, error)

type rule struct {
	intent  Intent
	pattern *regexp.Regexp
	handle  handlerFunc
}

// Agent turns a transcribed voice command into a task operation. Rules are
// tried in order and the first match wins.
type Agent struct {
	tasks taskusecase.TaskUsecase
	rules []rule
	now   func() time.Time
}

var (
	duePhrase      = regexp.MustCompile(`(?i)\s*\b(today|tonight|tomorrow|in (\d+) (hours?|minutes?|mins?|days?))\b`)
	priorityPhrase = regexp.MustCompile(`(?i)\s*\b(?:with )?(high|medium|low) priority\b`)
)

func NewAgent(tasks taskusecase.TaskUsecase) *Agent {
	a := &Agent{tasks: tasks, now: time.Now}
	a.rules = []rule{
		{IntentDueToday, regexp.MustCompile(`(?i)^(?:what(?:'s| is)|anything) (?:due|left) today\??$`), a.dueToday},
		{IntentListTasks, regexp.MustCompile(`(?i)^(?:list|show)(?: me)?(?: all)? (?:my )?(?:tasks|todos|to-dos)$`), a.listTasks},
		{IntentCompleteTask, regexp.MustCompile(`(?i)^(?:complete|finish|mark)(?: task)? (.+?)(?: as (?:done|complete|completed))?$`), a.completeTask},
		{IntentDeleteTask, regexp.MustCompile(`(?i)^(?:delete|remove)(?: the)?(?: task)? (.+)$`), a.deleteTask},
		{IntentCreateTask, regexp.MustCompile(`(?i)^(?:create|add|new)(?: a)?(?: new)? task(?: to| called| named)? (.+)$`), a.createTask},
		{IntentCreateTask, regexp.MustCompile(`(?i)^remind me to (.+)$`), a.createTask},
	}
	return a
}

// Handle runs the first matching rule. An unmatched command is not an error.
func (a *Agent) Handle(ctx context.Context, userID, command string) (*Result, error) {
	command = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(command), "."))
	for _, r := range a.rules {
		m := r.pattern.FindStringSubmatch(command)
		if m == nil {
			continue
		}
		logger.WithContext(ctx).WithFields(map[string]interface{}{"user_id": userID, "intent": r.intent}).
			Debug("[Voice] Command matched")
		res, err := r.handle(ctx, userID, m)
		if err != nil {
			return nil, err
		}
		res.Intent = r.intent
		return res, nil
	}
	return &Result{
		Intent:  IntentUnknown,
		Message: "Sorry, I didn't understand that. Try \"add task review PR tomorrow\" or \"what's due today\".",
	}, nil
}

func (a *Agent) createTask(_ context.Context, userID string, m []string) (*Result, error) {
	text := m[1]
	req := taskusecase.CreateTaskRequest{}

	if pm := priorityPhrase.FindStringSubmatch(text); pm != nil {
		req.Priority = strings.ToLower(pm[1])
		text = priorityPhrase.ReplaceAllString(text, "")
	}
	if dm := duePhrase.FindStringSubmatch(text); dm != nil {
		due := a.resolveDue(dm).Format(time.RFC3339)
		req.DueDate = &due
		text = duePhrase.ReplaceAllString(text, "")
	}

	req.Title = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), ",;"))
	if req.Title == "" {
		return &Result{Message: "What should the task be called?"}, nil
	}

	task, err := a.tasks.CreateTask(userID, req)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Created task %q.", task.Title)
	if task.DueDate != nil {
		msg = fmt.Sprintf("Created task %q due %s.", task.Title, task.DueDate.Format("Mon Jan 2 15:04"))
	}
	return &Result{Success: true, Message: msg, Task: task}, nil
}

// resolveDue maps a due phrase match to a time: today is 18:00, tonight
// 21:00, tomorrow 09:00, relative phrases are added to now.
func (a *Agent) resolveDue(m []string) time.Time {
	now := a.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch strings.ToLower(m[1]) {
	case "today":
		due := day.Add(18 * time.Hour)
		if !due.After(now) {
			due = now.Add(time.Hour)
		}
		return due
	case "tonight":
		return day.Add(21 * time.Hour)
	case "tomorrow":
		return day.AddDate(0, 0, 1).Add(9 * time.Hour)
	}

	n, _ := strconv.Atoi(m[2])
	unit := strings.ToLower(m[3])
	switch {
	case strings.HasPrefix(unit, "min"):
		return now.Add(time.Duration(n) * time.Minute)
	case strings.HasPrefix(unit, "day"):
		return now.AddDate(0, 0, n)
	default:
		return now.Add(time.Duration(n) * time.Hour)
	}
}

func (a *Agent) listTasks(_ context.Context, userID string, _ []string) (*Result, error) {
	tasks, err := a.openTasks(userID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &Result{Success: true, Message: "You have no open tasks.", Tasks: tasks}, nil
	}
	return &Result{Success: true, Message: fmt.Sprintf("You have %d open tasks: %s.", len(tasks), titles(tasks)), Tasks: tasks}, nil
}

func (a *Agent) dueToday(_ context.Context, userID string, _ []string) (*Result, error) {
	now := a.now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	tasks, err := a.tasks.GetTasksDueBetween(userID, now, end)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &Result{Success: true, Message: "Nothing else is due today.", Tasks: []*domain.Task{}}, nil
	}
	return &Result{Success: true, Message: fmt.Sprintf("Due today: %s.", titles(tasks)), Tasks: tasks}, nil
}

func (a *Agent) completeTask(_ context.Context, userID string, m []string) (*Result, error) {
	task, err := a.findByTitle(userID, m[1])
	if err != nil || task == nil {
		return notFound(m[1]), err
	}
	status := string(domain.TaskStatusCompleted)
	updated, err := a.tasks.UpdateTask(userID, task.ID, taskusecase.TaskUpdateRequest{Status: &status})
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Message: fmt.Sprintf("Marked %q as completed.", updated.Title), Task: updated}, nil
}

func (a *Agent) deleteTask(ctx context.Context, userID string, m []string) (*Result, error) {
	task, err := a.findByTitle(userID, m[1])
	if err != nil || task == nil {
		return notFound(m[1]), err
	}
	if err := a.tasks.DeleteTask(ctx, userID, task.ID); err != nil {
		return nil, err
	}
	return &Result{Success: true, Message: fmt.Sprintf("Deleted %q.", task.Title), Task: task}, nil
}

// findByTitle picks the open task whose title best matches the spoken one.
func (a *Agent) findByTitle(userID, spoken string) (*domain.Task, error) {
	spoken = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(spoken), "the "))
	tasks, err := a.openTasks(userID)
	if err != nil {
		return nil, err
	}

	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = t.Title
	}
	if i := fuzzy.BestMatch(spoken, titles, minTitleSimilarity); i >= 0 {
		return tasks[i], nil
	}
	return nil, nil
}

func (a *Agent) openTasks(userID string) ([]*domain.Task, error) {
	tasks, _, err := a.tasks.GetUserTasks(userID, nil, 200, 0)
	if err != nil {
		return nil, err
	}
	open := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != domain.TaskStatusCompleted {
			open = append(open, t)
		}
	}
	return open, nil
}

func notFound(spoken string) *Result {
	return &Result{Message: fmt.Sprintf("I couldn't find a task matching %q.", strings.TrimSpace(spoken))}
}

func titles(tasks []*domain.Task) string {
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.Title)
	}
	return strings.Join(names, ", ")
}
