package delivery

import (
	"net/http"

	authdto "codentor-backend/internal/auth/dto"
	"codentor-backend/internal/auth/usecase"
	"codentor-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
}

func NewAuthHandler(authUsecase usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	resp, err := h.authUsecase.Register(&req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	resp, err := h.authUsecase.Login(&req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req authdto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	resp, err := h.authUsecase.RefreshToken(req.RefreshToken)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req authdto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.authUsecase.Logout(req.RefreshToken); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LogoutAll signs the caller out on every device.
// POST /api/auth/logout-all
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	if err := h.authUsecase.LogoutAll(c.GetString("userID")); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authUsecase.GetUser(c.GetString("userID"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// PUT /api/auth/telegram
func (h *AuthHandler) LinkTelegram(c *gin.Context) {
	var req authdto.TelegramLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}

	user, err := h.authUsecase.LinkTelegram(c.GetString("userID"), req.ChatID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
