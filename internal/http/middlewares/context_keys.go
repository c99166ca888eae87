package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/auth"
)

const (
	CtxRequestID = "request_id"
	ctxIdentity  = "auth.identity"
)

// SetIdentity attaches the caller to the request. Handler tests use it directly.
func SetIdentity(c *gin.Context, id auth.Identity) {
	c.Set(ctxIdentity, id)
}

func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxIdentity)

	if !ok {
		return auth.Identity{}, false
	}

	id, ok := v.(auth.Identity)

	return id, ok
}
