package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultCSP = "default-src 'none'; frame-ancestors 'none'"
	// uploaded images are served as-is and must never run script
	uploadsCSP = "default-src 'none'; img-src 'self'; sandbox"
)

func SecurityHeaders(uploadsPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("X-XSS-Protection", "0")

		if strings.HasPrefix(c.Request.URL.Path, uploadsPrefix) {
			c.Header("Content-Security-Policy", uploadsCSP)
		} else {
			c.Header("Content-Security-Policy", defaultCSP)
		}

		c.Next()
	}
}
