package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/auth"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/http/middlewares"
)

type SessionIssuer interface {
	Issue(u user.User) (string, auth.Identity, error)
}

type SessionRevoker interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
}

// Cookies writes the session cookie. Secure is set outside dev.
type Cookies struct {
	Secure bool
}

func (c Cookies) Set(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middlewares.SessionCookie, raw, maxAge, "/", "", c.Secure, true)
}

func (c Cookies) Clear(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middlewares.SessionCookie, "", -1, "/", "", c.Secure, true)
}

// startSession issues a token for u and sets it as the session cookie.
func startSession(ctx *gin.Context, sessions SessionIssuer, cookies Cookies, u user.User) (auth.Identity, bool) {
	raw, id, err := sessions.Issue(u)

	if err != nil {
		RespondInternal(ctx, "Could not create session", err)
		return auth.Identity{}, false
	}

	cookies.Set(ctx, raw, id.ExpiresAt)

	return id, true
}

func mustIdentity(ctx *gin.Context) (auth.Identity, bool) {
	id, ok := middlewares.IdentityFrom(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return auth.Identity{}, false
	}

	return id, true
}

func redirectFor(role user.Role) string {
	switch role {
	case user.RoleAdmin:
		return "/admin"
	case user.RoleArtisan:
		return "/artisan"
	default:
		return "/"
	}
}
