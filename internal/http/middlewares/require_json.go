package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireJSON rejects non-JSON bodies on writes. Bodyless writes such as logout pass.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength == 0 {
				break
			}

			ct := strings.ToLower(c.GetHeader("Content-Type"))

			if !strings.HasPrefix(ct, "application/json") {
				abortJSON(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
				return
			}
		}

		c.Next()
	}
}
