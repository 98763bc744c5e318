package delivery

import (
	"net/http"
	"net/http/httptest"
	"testing"

	authdomain "codentor-backend/internal/auth/domain"
	authdto "codentor-backend/internal/auth/dto"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type tokenOnlyUsecase struct{}

func (tokenOnlyUsecase) Login(*authdto.LoginRequest) (*authdto.TokenResponse, error) { return nil, nil }
func (tokenOnlyUsecase) Register(*authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	return nil, nil
}
func (tokenOnlyUsecase) RefreshToken(string) (*authdto.TokenResponse, error) { return nil, nil }
func (tokenOnlyUsecase) Logout(string) error                                 { return nil }
func (tokenOnlyUsecase) LogoutAll(string) error                              { return nil }
func (tokenOnlyUsecase) GetUser(string) (*authdomain.User, error)            { return nil, nil }
func (tokenOnlyUsecase) LinkTelegram(string, *int64) (*authdomain.User, error) {
	return nil, nil
}

func (tokenOnlyUsecase) ValidateToken(token string) (*authdomain.User, error) {
	if token != "good" {
		return nil, authdomain.ErrInvalidToken
	}
	return &authdomain.User{ID: "user-1"}, nil
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(tokenOnlyUsecase{}), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("userID"))
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "bearer", header: "Bearer good", status: http.StatusOK, body: "user-1"},
		{name: "query token", query: "?token=good", status: http.StatusOK, body: "user-1"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "bad scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
