package delivery

import (
	"net/http"

	"codentor-backend/internal/voice/usecase"
	"codentor-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type VoiceHandler struct {
	agent *usecase.Agent
}

func NewVoiceHandler(agent *usecase.Agent) *VoiceHandler {
	return &VoiceHandler{agent: agent}
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// Handle runs a transcribed voice command
// POST /api/voice-agent {command}
func (h *VoiceHandler) Handle(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation("command is required"))
		return
	}

	res, err := h.agent.Handle(c.Request.Context(), c.GetString("userID"), req.Command)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
