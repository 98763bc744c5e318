package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("title is required"), http.StatusBadRequest},
		{"unauthenticated", Unauthenticated("login required"), http.StatusUnauthorized},
		{"forbidden", Forbidden("not yours"), http.StatusForbidden},
		{"not found", NotFound("task not found"), http.StatusNotFound},
		{"conflict", Conflict("already synced"), http.StatusConflict},
		{"upstream", Upstream("calendar unavailable", errors.New("503")), http.StatusBadGateway},
		{"configuration", Configuration("smtp not configured"), http.StatusServiceUnavailable},
		{"wrapped", fmt.Errorf("load: %w", NotFound("note not found")), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestSentinelMatching(t *testing.T) {
	sentinel := NotFound("task not found")
	wrapped := fmt.Errorf("get task: %w", sentinel)

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestRespondHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"typed", Validation("title is required"), http.StatusBadRequest, "title is required"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)

			Respond(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body["error"])
		})
	}
}
