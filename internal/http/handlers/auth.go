package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/config"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/http/middlewares"
	"github.com/tnm3allim/marketplace/internal/notifications"
)

type AuthUsers interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type ResetStore interface {
	Put(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (int64, error)
	Consume(ctx context.Context, tokenHash, passwordHash string) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type TokenHasher interface {
	HashToken(raw string) string
}

type AuthDeps struct {
	Users    AuthUsers
	Resets   ResetStore
	Hasher   PasswordHasher
	Tokens   TokenHasher
	Sessions SessionIssuer
	Revoker  SessionRevoker
	Notifier notifications.Notifier
	Cookies  Cookies
	Log      *slog.Logger

	ResetTTL      time.Duration
	PublicBaseURL string
}

type AuthHandler struct {
	deps AuthDeps
}

func NewAuthHandler(deps AuthDeps) *AuthHandler {
	if deps.ResetTTL <= 0 {
		deps.ResetTTL = time.Hour
	}

	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}

	deps.PublicBaseURL = strings.TrimRight(deps.PublicBaseURL, "/")

	return &AuthHandler{deps: deps}
}

type SignUpRequest struct {
	Name     string    `json:"name" binding:"required,max=120"`
	Email    string    `json:"email" binding:"required,email"`
	Password string    `json:"password" binding:"required"`
	Role     user.Role `json:"role" binding:"required,oneof=client artisan"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := h.deps.Hasher.Hash(req.Password)

	if err != nil {
		RespondBadRequest(ctx, "Password cannot be used", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.deps.Users.Create(cctx, user.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Role:         req.Role,
		PasswordHash: hash,
	})

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": u})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	h.login(ctx, nil)
}

// AdminLogin only accepts admin accounts.
func (h *AuthHandler) AdminLogin(ctx *gin.Context) {
	admin := user.RoleAdmin
	h.login(ctx, &admin)
}

func (h *AuthHandler) login(ctx *gin.Context, only *user.Role) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	found, err := h.deps.Users.GetByEmail(cctx, strings.TrimSpace(req.Email))

	if err != nil && !errors.Is(err, user.ErrNotFound) {
		RespondInternal(ctx, "Could not log in", err)
		return
	}

	if err != nil || !h.deps.Hasher.Verify(req.Password, found.PasswordHash) || (only != nil && found.Role != *only) {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if _, ok := startSession(ctx, h.deps.Sessions, h.deps.Cookies, found); !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"redirect": redirectFor(found.Role),
		"user":     found,
	})
}

// Logout revokes the current session, if any, and always clears the cookie.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	if id, ok := middlewares.IdentityFrom(ctx); ok && h.deps.Revoker != nil {
		if err := h.deps.Revoker.Revoke(ctx.Request.Context(), id.SessionID, id.ExpiresAt); err != nil {
			h.deps.Log.WarnContext(ctx.Request.Context(), "session revoke failed", "user_id", id.UserID, "err", err)
		}
	}

	h.deps.Cookies.Clear(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.deps.Users.GetByEmail(cctx, strings.TrimSpace(req.Email))

	if errors.Is(err, user.ErrNotFound) {
		RespondNotFound(ctx, "No account uses this email")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not start password reset", err)
		return
	}

	raw, err := newResetToken()

	if err != nil {
		RespondInternal(ctx, "Could not start password reset", err)
		return
	}

	err = h.deps.Resets.Put(cctx, u.ID, h.deps.Tokens.HashToken(raw), time.Now().UTC().Add(h.deps.ResetTTL))

	if err != nil {
		RespondInternal(ctx, "Could not start password reset", err)
		return
	}

	err = h.deps.Notifier.SendPasswordReset(ctx.Request.Context(), notifications.PasswordResetInput{
		Email:     u.Email,
		Name:      u.Name,
		ResetLink: h.deps.PublicBaseURL + "/auth/reset-password/" + raw,
	})

	if err != nil {
		h.deps.Log.ErrorContext(ctx.Request.Context(), "password reset notification failed", "user_id", u.ID, "err", err)
		RespondError(ctx, http.StatusServiceUnavailable, "notification_failed", "Could not send the reset link", nil)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Reset link sent"})
}

func (h *AuthHandler) CheckResetToken(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	_, err := h.deps.Resets.Lookup(cctx, h.deps.Tokens.HashToken(ctx.Param("token")))

	if errors.Is(err, user.ErrInvalidResetToken) {
		RespondError(ctx, http.StatusBadRequest, "invalid_token", "Reset link is invalid or has expired", nil)
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not check reset link", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := h.deps.Hasher.Hash(req.Password)

	if err != nil {
		RespondBadRequest(ctx, "Password cannot be used", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err = h.deps.Resets.Consume(cctx, h.deps.Tokens.HashToken(ctx.Param("token")), hash)

	if errors.Is(err, user.ErrInvalidResetToken) {
		RespondError(ctx, http.StatusBadRequest, "invalid_token", "Reset link is invalid or has expired", nil)
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not reset password", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func newResetToken() (string, error) {
	b := make([]byte, 32)

	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
