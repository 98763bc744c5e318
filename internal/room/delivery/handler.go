package delivery

import (
	"encoding/json"
	"net/http"

	authusecase "codentor-backend/internal/auth/usecase"
	"codentor-backend/internal/room/usecase"
	"codentor-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	hub  *usecase.Hub
	auth authusecase.AuthUsecase
}

func NewRoomHandler(hub *usecase.Hub, auth authusecase.AuthUsecase) *RoomHandler {
	return &RoomHandler{hub: hub, auth: auth}
}

// Join adds the caller to the room
// POST /api/rooms/:code/join
func (h *RoomHandler) Join(c *gin.Context) {
	userID := c.GetString("userID")
	name := ""
	if user, err := h.auth.GetUser(userID); err == nil && user != nil {
		name = user.Name
	}

	list, err := h.hub.Join(c.Request.Context(), c.Param("code"), userID, name)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collaborators": list})
}

// Leave removes the caller from the room
// POST /api/rooms/:code/leave
func (h *RoomHandler) Leave(c *gin.Context) {
	list, err := h.hub.Leave(c.Request.Context(), c.Param("code"), c.GetString("userID"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collaborators": list})
}

type relayRequest struct {
	Event string          `json:"event" binding:"required"`
	Data  json.RawMessage `json:"data"`
}

// Relay broadcasts an editor event to the room
// POST /api/rooms/:code/events {event, data}
func (h *RoomHandler) Relay(c *gin.Context) {
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}
	if err := h.hub.Relay(c.Request.Context(), c.Param("code"), c.GetString("userID"), req.Event, req.Data); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Collaborators lists who is currently in the room
// GET /api/rooms/:code/collaborators
func (h *RoomHandler) Collaborators(c *gin.Context) {
	list, err := h.hub.Collaborators(c.Param("code"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collaborators": list})
}
