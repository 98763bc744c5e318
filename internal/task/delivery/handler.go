package delivery

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codentor-backend/internal/task/scheduler"
	"codentor-backend/internal/task/usecase"
	"codentor-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// ReminderRunner is the part of the reminder scanner the HTTP layer drives.
type ReminderRunner interface {
	Scan(ctx context.Context) (*scheduler.ScanResult, error)
	SendTest(ctx context.Context, userID, taskID string) (*scheduler.FiredReminder, error)
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
	syncUsecase usecase.SyncUsecase
	reminders   ReminderRunner
	cronSecret  string
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskUsecase usecase.TaskUsecase, syncUsecase usecase.SyncUsecase, reminders ReminderRunner, cronSecret string) *TaskHandler {
	return &TaskHandler{
		taskUsecase: taskUsecase,
		syncUsecase: syncUsecase,
		reminders:   reminders,
		cronSecret:  cronSecret,
	}
}

// GetTasks returns the authenticated user's tasks
// GET /api/tasks?status=pending&limit=50&offset=0
func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID := c.GetString("userID")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var statusPtr *string
	if status := c.Query("status"); status != "" {
		statusPtr = &status
	}

	tasks, total, err := h.taskUsecase.GetUserTasks(userID, statusPtr, limit, offset)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": total,
	})
}

// GetTaskByID returns a specific task
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	task, err := h.taskUsecase.GetTaskByID(c.GetString("userID"), c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CreateTask creates a new task
// POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req usecase.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	task, err := h.taskUsecase.CreateTask(c.GetString("userID"), req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask applies a partial update
// PATCH /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var updates usecase.TaskUpdateRequest
	if err := c.ShouldBindJSON(&updates); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	task, err := h.taskUsecase.UpdateTask(c.GetString("userID"), c.Param("id"), updates)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask deletes a task and its calendar event
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.taskUsecase.DeleteTask(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// GetUpcoming lists open tasks due in the next ?hours (default 24)
// GET /api/tasks/upcoming
func (h *TaskHandler) GetUpcoming(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 || hours > 24*31 {
		apperror.Respond(c, apperror.Validation("hours must be between 1 and 744"))
		return
	}
	now := time.Now()
	tasks, err := h.taskUsecase.GetTasksDueBetween(c.GetString("userID"), now, now.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// ImportFromCalendar pulls upcoming Google Calendar events into tasks
// GET /api/tasks/sync
func (h *TaskHandler) ImportFromCalendar(c *gin.Context) {
	result, err := h.syncUsecase.ImportFromCalendar(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"importedCount": result.ImportedCount,
		"linkedCount":   result.LinkedCount,
	})
}

type syncActionRequest struct {
	TaskID string `json:"taskId" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// ApplySyncAction exports one task to Google Calendar
// POST /api/tasks/sync {taskId, action}
func (h *TaskHandler) ApplySyncAction(c *gin.Context) {
	var req syncActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	task, err := h.syncUsecase.ApplyAction(c.Request.Context(), c.GetString("userID"), req.TaskID, usecase.SyncAction(req.Action))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

// RunReminderScan runs one reminder scan for an external cron.
// GET /api/tasks/reminders (Authorization: Bearer $CRON_SECRET)
func (h *TaskHandler) RunReminderScan(c *gin.Context) {
	if !h.cronAuthorized(c) {
		apperror.Respond(c, apperror.Unauthenticated("invalid cron secret"))
		return
	}

	result, err := h.reminders.Scan(c.Request.Context())
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": len(result.Fired),
		"result":    result,
	})
}

type testReminderRequest struct {
	TaskID string `json:"taskId" binding:"required"`
}

// SendTestReminder sends a one-off reminder for the user's task
// POST /api/tasks/reminders {taskId}
func (h *TaskHandler) SendTestReminder(c *gin.Context) {
	var req testReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	fired, err := h.reminders.SendTest(c.Request.Context(), c.GetString("userID"), req.TaskID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reminder": fired})
}

// cronAuthorized accepts any caller when no secret is configured.
func (h *TaskHandler) cronAuthorized(c *gin.Context) bool {
	if h.cronSecret == "" {
		return true
	}
	got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if got == "" {
		got = c.Query("secret")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.cronSecret)) == 1
}
