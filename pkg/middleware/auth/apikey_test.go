package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticKeys(t *testing.T) {
	keys := NewStaticKeys([]string{"alpha", "beta"})

	info, err := keys.Validate(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, "static-2", info.ID)

	_, err = keys.Validate(context.Background(), "gamma")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/write",
		APIKeyMiddleware(NewStaticKeys([]string{"secret"})),
		func(c *gin.Context) {
			assert.Equal(t, "apikey", c.GetString("authMethod"))
			c.Status(http.StatusNoContent)
		},
	)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header key", "X-API-Key", "secret", http.StatusNoContent},
		{"authorization scheme", "Authorization", "ApiKey secret", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/write", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
