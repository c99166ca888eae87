package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/auth"
	"github.com/tnm3allim/marketplace/internal/domain/user"
)

const SessionCookie = "session"

// Keep this small interface so tests can fake it easily.
type SessionParser interface {
	Parse(token string) (auth.Identity, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type AuthMiddleware struct {
	sessions SessionParser
	revoked  RevocationChecker
	log      *slog.Logger
}

func NewAuthMiddleware(sessions SessionParser, revoked RevocationChecker, log *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, revoked: revoked, log: log}
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

// SessionToken reads the session cookie, falling back to a bearer token.
func SessionToken(c *gin.Context) string {
	if raw, err := c.Cookie(SessionCookie); err == nil && raw != "" {
		return raw
	}

	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}

	return ""
}

// Authenticate resolves the caller when a valid session is present and never aborts.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := m.resolve(c); err == nil {
			SetIdentity(c, id)
		}

		c.Next()
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); ok {
			c.Next()
			return
		}

		id, err := m.resolve(c)

		switch {
		case errors.Is(err, errNoSession):
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		case errors.Is(err, auth.ErrRevoked):
			abortJSON(c, http.StatusUnauthorized, "session_revoked", "Session has ended, please log in again")
			return
		case errors.Is(err, auth.ErrInvalidSession):
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired session")
			return
		case err != nil:
			m.log.ErrorContext(c.Request.Context(), "session revocation check failed", "err", err)
			abortJSON(c, http.StatusServiceUnavailable, "session_check_failed", "Could not verify session")
			return
		}

		SetIdentity(c, id)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)

		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		if !slices.Contains(roles, id.Role) {
			abortJSON(c, http.StatusForbidden, "forbidden", "Insufficient role for this resource")
			return
		}

		c.Next()
	}
}

var errNoSession = errors.New("no session")

func (m *AuthMiddleware) resolve(c *gin.Context) (auth.Identity, error) {
	raw := SessionToken(c)

	if raw == "" {
		return auth.Identity{}, errNoSession
	}

	id, err := m.sessions.Parse(raw)

	if err != nil {
		return auth.Identity{}, auth.ErrInvalidSession
	}

	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(c.Request.Context(), id.SessionID)

		if err != nil {
			return auth.Identity{}, err
		}

		if revoked {
			return auth.Identity{}, auth.ErrRevoked
		}
	}

	return id, nil
}
