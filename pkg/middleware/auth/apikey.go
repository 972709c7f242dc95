package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var ErrInvalidAPIKey = errors.New("invalid API key")

// APIKeyInfo is the minimal API key payload needed by middleware.
type APIKeyInfo struct {
	ID string
}

// APIKeyValidator validates an API key and returns key metadata for request context.
type APIKeyValidator interface {
	Validate(ctx context.Context, rawKey string) (*APIKeyInfo, error)
}

type staticKey struct {
	digest [32]byte
	info   APIKeyInfo
}

// StaticKeys validates against a fixed set of keys loaded from configuration.
type StaticKeys struct {
	keys []staticKey
}

func NewStaticKeys(rawKeys []string) *StaticKeys {
	s := &StaticKeys{}
	for i, raw := range rawKeys {
		s.keys = append(s.keys, staticKey{
			digest: sha256.Sum256([]byte(raw)),
			info:   APIKeyInfo{ID: fmt.Sprintf("static-%d", i+1)},
		})
	}
	return s
}

func (s *StaticKeys) Validate(ctx context.Context, rawKey string) (*APIKeyInfo, error) {
	digest := sha256.Sum256([]byte(rawKey))
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare(digest[:], k.digest[:]) == 1 {
			info := k.info
			return &info, nil
		}
	}
	return nil, ErrInvalidAPIKey
}

// APIKeyMiddleware creates middleware that authenticates requests using API keys
func APIKeyMiddleware(apiKeyValidator APIKeyValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for API key in header
		apiKeyHeader := c.GetHeader("X-API-Key")
		if apiKeyHeader == "" {
			// Also check Authorization header with ApiKey scheme
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "ApiKey ") {
				apiKeyHeader = strings.TrimPrefix(authHeader, "ApiKey ")
			}
		}

		if apiKeyHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		key, err := apiKeyValidator.Validate(c.Request.Context(), apiKeyHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set("apiKeyId", key.ID)
		c.Set("authMethod", "apikey")

		c.Next()
	}
}
