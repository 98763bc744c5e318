package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	notedomain "codentor-backend/internal/note/domain"
	taskdomain "codentor-backend/internal/task/domain"
	"codentor-backend/pkg/ai"
	"codentor-backend/pkg/apperror"
	"codentor-backend/pkg/logger"
	"codentor-backend/pkg/youtube"

	"golang.org/x/sync/errgroup"
)

const (
	fallbackReply    = "I'm having trouble reaching my AI brain right now. Meanwhile: pick your most urgent task, block 25 minutes for it, and come back to me after."
	fallbackGreeting = "Hi! I'm your coding coach. Tell me what you're working on and I'll help you plan it."
	maxHistory       = 20
	resourcesPerStep = 3
)

// TaskSource and NoteSource give the coach read access to the user's work.
type TaskSource interface {
	GetUserTasks(userID string, status *string, limit, offset int) ([]*taskdomain.Task, int64, error)
}

type NoteSource interface {
	Search(ctx context.Context, userID, query string, limit int) ([]*notedomain.Note, error)
}

type VideoSearcher interface {
	Configured() bool
	Search(ctx context.Context, query string, max int64) ([]youtube.Video, error)
}

type ChatReply struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider,omitempty"`
	Fallback bool   `json:"fallback"`
}

type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

type RoadmapStep struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Duration    string          `json:"duration"`
	SearchQuery string          `json:"searchQuery,omitempty"`
	Resources   []youtube.Video `json:"resources"`
}

type Roadmap struct {
	Goal  string        `json:"goal"`
	Steps []RoadmapStep `json:"steps"`
}

var ErrGoalRequired = apperror.Validation("goal is required")

// Coach answers study questions grounded in the user's open tasks and notes.
type Coach struct {
	chat   ai.ChatProvider
	tasks  TaskSource
	notes  NoteSource
	videos VideoSearcher
	now    func() time.Time
}

// NewCoach builds the coach. notes and videos may be nil.
func NewCoach(chat ai.ChatProvider, tasks TaskSource, notes NoteSource, videos VideoSearcher) *Coach {
	return &Coach{chat: chat, tasks: tasks, notes: notes, videos: videos, now: time.Now}
}

// Initialize greets the user with their current workload in mind.
func (c *Coach) Initialize(ctx context.Context, userID string) (*ChatReply, error) {
	system, err := c.systemPrompt(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	reply, err := c.chat.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: "Greet me in two sentences and point out the one thing I should focus on next."},
	}, ai.ChatOptions{Temperature: 0.6, MaxTokens: 200})
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("[Coach] Greeting failed, using canned reply")
		return &ChatReply{Reply: fallbackGreeting, Fallback: true}, nil
	}
	return &ChatReply{Reply: reply, Provider: c.chat.Name()}, nil
}

// Chat continues a conversation. Provider failures degrade to a canned reply.
func (c *Coach) Chat(ctx context.Context, userID string, history []ai.Message) (*ChatReply, error) {
	turns := make([]ai.Message, 0, len(history))
	lastUser := ""
	for _, m := range history {
		if m.Role != ai.RoleUser && m.Role != ai.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		turns = append(turns, m)
		if m.Role == ai.RoleUser {
			lastUser = m.Content
		}
	}
	if lastUser == "" {
		return nil, apperror.Validation("messages must contain a user message")
	}
	if len(turns) > maxHistory {
		turns = turns[len(turns)-maxHistory:]
	}

	system, err := c.systemPrompt(ctx, userID, lastUser)
	if err != nil {
		return nil, err
	}
	messages := append([]ai.Message{{Role: ai.RoleSystem, Content: system}}, turns...)

	reply, err := c.chat.Chat(ctx, messages, ai.ChatOptions{Temperature: 0.7, MaxTokens: 800})
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Warn("[Coach] Chat failed, using canned reply")
		return &ChatReply{Reply: fallbackReply, Fallback: true}, nil
	}
	return &ChatReply{Reply: reply, Provider: c.chat.Name()}, nil
}

// Suggestions asks the model for next steps based on open tasks. Any
// failure, including unparseable output, yields the canned list.
func (c *Coach) Suggestions(ctx context.Context, userID string) ([]Suggestion, bool, error) {
	open, err := c.openTasks(userID)
	if err != nil {
		return nil, false, err
	}

	prompt := fmt.Sprintf(`Today is %s. These are my open tasks:
%s

Suggest 3 concrete next actions for a software engineering student.
Reply with JSON only: {"suggestions":[{"title":"...","description":"...","category":"study|practice|project|rest","priority":"high|medium|low"}]}`,
		c.now().Format("2006-01-02"), describeTasks(open))

	raw, err := c.chat.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: "You are a concise productivity coach. Answer with valid JSON only."},
		{Role: ai.RoleUser, Content: prompt},
	}, ai.ChatOptions{Temperature: 0.4, MaxTokens: 600, JSON: true})
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("[Coach] Suggestions failed, using canned list")
		return cannedSuggestions(open), true, nil
	}

	suggestions, err := parseSuggestions(raw)
	if err != nil || len(suggestions) == 0 {
		logger.WithContext(ctx).WithError(err).Warn("[Coach] Unparseable suggestions, using canned list")
		return cannedSuggestions(open), true, nil
	}
	return suggestions, false, nil
}

// GenerateRoadmap breaks a learning goal into steps and attaches videos to
// each step. Video lookups are best effort.
func (c *Coach) GenerateRoadmap(ctx context.Context, goal string) (*Roadmap, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrGoalRequired
	}

	prompt := fmt.Sprintf(`Create a learning roadmap for: %q.
Reply with JSON only: {"steps":[{"title":"...","description":"...","duration":"e.g. 1 week","searchQuery":"a YouTube search query for this step"}]}
Use between 4 and 8 steps ordered from fundamentals to advanced.`, goal)

	raw, err := c.chat.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: "You are an expert curriculum designer. Answer with valid JSON only."},
		{Role: ai.RoleUser, Content: prompt},
	}, ai.ChatOptions{Temperature: 0.3, MaxTokens: 1500, JSON: true})
	if err != nil {
		return nil, apperror.Upstream("roadmap generation is unavailable", err)
	}

	var parsed struct {
		Steps []RoadmapStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil || len(parsed.Steps) == 0 {
		return nil, apperror.Upstream("the model returned an invalid roadmap", err)
	}

	roadmap := &Roadmap{Goal: goal, Steps: parsed.Steps}
	for i := range roadmap.Steps {
		roadmap.Steps[i].Resources = []youtube.Video{}
	}
	c.attachVideos(ctx, roadmap)
	return roadmap, nil
}

func (c *Coach) attachVideos(ctx context.Context, roadmap *Roadmap) {
	if c.videos == nil || !c.videos.Configured() {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i := range roadmap.Steps {
		step := &roadmap.Steps[i]
		query := step.SearchQuery
		if query == "" {
			query = roadmap.Goal + " " + step.Title
		}
		g.Go(func() error {
			videos, err := c.videos.Search(gctx, query, resourcesPerStep)
			if err != nil {
				logger.WithContext(ctx).WithError(err).WithField("query", query).Warn("[Coach] Video lookup failed")
				return nil
			}
			step.Resources = videos
			return nil
		})
	}
	_ = g.Wait()
}

// systemPrompt describes the user's open work and, when query is set, the
// notes most related to it.
func (c *Coach) systemPrompt(ctx context.Context, userID, query string) (string, error) {
	open, err := c.openTasks(userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are Codentor, a friendly mentor for software engineering students. ")
	b.WriteString("Be concrete and brief, and prefer actionable advice.\n\n")
	fmt.Fprintf(&b, "Current time: %s\n\n", c.now().UTC().Format(time.RFC1123))
	b.WriteString("The user's open tasks:\n")
	b.WriteString(describeTasks(open))

	if query != "" && c.notes != nil {
		notes, err := c.notes.Search(ctx, userID, query, 3)
		if err != nil {
			logger.WithContext(ctx).WithError(err).Debug("[Coach] Note lookup failed")
		}
		if len(notes) > 0 {
			b.WriteString("\nRelevant notes the user wrote:\n")
			for _, n := range notes {
				content := n.Content
				if len(content) > 500 {
					content = content[:500] + "..."
				}
				fmt.Fprintf(&b, "- %s: %s\n", n.Title, content)
			}
		}
	}
	return b.String(), nil
}

func (c *Coach) openTasks(userID string) ([]*taskdomain.Task, error) {
	tasks, _, err := c.tasks.GetUserTasks(userID, nil, 50, 0)
	if err != nil {
		return nil, err
	}
	open := make([]*taskdomain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != taskdomain.TaskStatusCompleted {
			open = append(open, t)
		}
	}
	return open, nil
}

func describeTasks(tasks []*taskdomain.Task) string {
	if len(tasks) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for i, t := range tasks {
		if i == 15 {
			fmt.Fprintf(&b, "... and %d more\n", len(tasks)-i)
			break
		}
		due := "no due date"
		if t.DueDate != nil {
			due = "due " + t.DueDate.UTC().Format("2006-01-02 15:04 UTC")
		}
		fmt.Fprintf(&b, "- [%s] %s (%s, %s)\n", t.Priority, t.Title, t.Status, due)
	}
	return b.String()
}

func parseSuggestions(raw string) ([]Suggestion, error) {
	clean := extractJSON(raw)

	var wrapped struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(clean), &wrapped); err == nil && len(wrapped.Suggestions) > 0 {
		return wrapped.Suggestions, nil
	}
	var list []Suggestion
	if err := json.Unmarshal([]byte(clean), &list); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	return list, nil
}

// extractJSON strips code fences and any prose around the outermost JSON
// object or array.
func extractJSON(raw string) string {
	clean := ai.StripCodeFence(raw)
	start := strings.IndexAny(clean, "{[")
	if start < 0 {
		return clean
	}
	closing := "}"
	if clean[start] == '[' {
		closing = "]"
	}
	end := strings.LastIndex(clean, closing)
	if end <= start {
		return clean
	}
	return clean[start : end+1]
}

func cannedSuggestions(open []*taskdomain.Task) []Suggestion {
	first := Suggestion{
		Title:       "Plan your week",
		Description: "Add the tasks you want to finish this week with due dates so reminders can keep you on track.",
		Category:    "project",
		Priority:    "medium",
	}
	if len(open) > 0 {
		first = Suggestion{
			Title:       "Finish " + open[0].Title,
			Description: "It is the next item on your list. Block 45 focused minutes for it today.",
			Category:    "project",
			Priority:    "high",
		}
	}
	return []Suggestion{
		first,
		{Title: "Solve one practice problem", Description: "Keep your problem-solving sharp with a medium-difficulty exercise.", Category: "practice", Priority: "medium"},
		{Title: "Review yesterday's notes", Description: "Ten minutes of spaced review beats an hour of cramming.", Category: "study", Priority: "low"},
	}
}
