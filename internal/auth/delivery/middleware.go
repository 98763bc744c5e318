package delivery

import (
	"strings"

	authdomain "codentor-backend/internal/auth/domain"
	"codentor-backend/internal/auth/usecase"
	"codentor-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stores the caller as "user"
// and their id as "userID".
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			apperror.Respond(c, apperror.Unauthenticated("authorization header required"))
			c.Abort()
			return
		}

		user, err := authUsecase.ValidateToken(token)
		if err != nil {
			apperror.Respond(c, authdomain.ErrInvalidToken)
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to ?token= for
// EventSource clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return c.Query("token")
}
