package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dealscout/dealscout/models"
)

// Auth authenticates requests against the configured API keys. The key may
// arrive as an X-API-Key header or an Authorization Bearer token. With no
// keys configured the middleware passes everything through.
//
// On success the key is stored in the context under "api_key" so the rate
// limiter can throttle per key rather than per IP.
func Auth(apiKeys []string) gin.HandlerFunc {
	if len(apiKeys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	valid := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			valid[k] = true
		}
	}

	return func(c *gin.Context) {
		key := requestAPIKey(c)
		switch {
		case key == "":
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
		case !valid[key]:
			unauthorized(c, "invalid API key")
		default:
			c.Set("api_key", key)
			c.Next()
		}
	}
}

// requestAPIKey pulls the key from X-API-Key, then Authorization: Bearer.
func requestAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}
