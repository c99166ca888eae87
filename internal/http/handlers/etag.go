package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondJSONWithETag answers 304 when If-None-Match already holds the payload's digest.
func RespondJSONWithETag(ctx *gin.Context, status int, payload any) {
	body, err := json.Marshal(payload)

	if err != nil {
		ctx.JSON(status, payload)
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", "no-cache")

	if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(status, "application/json; charset=utf-8", body)
}

func etagMatches(header, current string) bool {
	header = strings.TrimSpace(header)

	if header == "" {
		return false
	}

	if header == "*" {
		return true
	}

	for _, part := range strings.Split(header, ",") {
		v := strings.TrimPrefix(strings.TrimSpace(part), "W/")

		if v == current {
			return true
		}
	}

	return false
}
