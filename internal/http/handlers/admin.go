package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/tnm3allim/marketplace/internal/config"
	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/contact"
	"github.com/tnm3allim/marketplace/internal/domain/user"
)

type AdminUsers interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
	GetClient(ctx context.Context, id int64) (user.User, error)
	ListByRole(ctx context.Context, role user.Role) ([]user.Summary, error)
	DeleteClient(ctx context.Context, id int64) error
	CountByRole(ctx context.Context, role user.Role) (int, error)
	UpdateAccount(ctx context.Context, id int64, name, email string) error
	GetPasswordHash(ctx context.Context, id int64) (string, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

type ArtisanStats interface {
	Stats(ctx context.Context) (artisan.Stats, error)
}

type ContactInbox interface {
	List(ctx context.Context) ([]contact.Message, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

type BookingCounter interface {
	Count(ctx context.Context) (int, error)
}

type AdminHandler struct {
	users    AdminUsers
	artisans ArtisanStats
	inbox    ContactInbox
	bookings BookingCounter
	hasher   PasswordHasher
	listings Invalidator
}

func NewAdminHandler(users AdminUsers, artisans ArtisanStats, inbox ContactInbox, bookings BookingCounter, hasher PasswordHasher, listings Invalidator) *AdminHandler {
	return &AdminHandler{
		users:    users,
		artisans: artisans,
		inbox:    inbox,
		bookings: bookings,
		hasher:   hasher,
		listings: listings,
	}
}

func (h *AdminHandler) Users(ctx *gin.Context) {
	role := user.Role(ctx.DefaultQuery("role", string(user.RoleClient)))

	if role != user.RoleClient && role != user.RoleArtisan {
		RespondBadRequest(ctx, "role must be client or artisan", gin.H{"query": "role"})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rows, err := h.users.ListByRole(cctx, role)

	if err != nil {
		RespondInternal(ctx, "Could not list users", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"role": role, "users": rows, "total": len(rows)})
}

func (h *AdminHandler) Client(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetClient(cctx, id)

	if errors.Is(err, user.ErrNotFound) {
		RespondNotFound(ctx, "Client not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not load client", err)
		return
	}

	ctx.JSON(http.StatusOK, profileView{User: u, Photo: photoURL(u.Photo)})
}

func (h *AdminHandler) DeleteClient(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.users.DeleteClient(cctx, id)

	if errors.Is(err, user.ErrNotFound) {
		RespondNotFound(ctx, "Client not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not delete client", err)
		return
	}

	// their reviews are gone, so cached ratings are stale
	if h.listings != nil {
		h.listings.Clear()
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": id})
}

type StatsResponse struct {
	TotalClients  int     `json:"totalClients"`
	TotalArtisans int     `json:"totalArtisans"`
	AvgRating     float64 `json:"avgRating"`
	TotalMessages int     `json:"totalMessages"`
	TotalBookings int     `json:"totalBookings"`
}

func (h *AdminHandler) Stats(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	var out StatsResponse

	g, gctx := errgroup.WithContext(cctx)

	g.Go(func() (err error) {
		out.TotalClients, err = h.users.CountByRole(gctx, user.RoleClient)
		return
	})

	g.Go(func() error {
		s, err := h.artisans.Stats(gctx)
		out.TotalArtisans, out.AvgRating = s.Total, s.AvgRating
		return err
	})

	g.Go(func() (err error) {
		out.TotalMessages, err = h.inbox.Count(gctx)
		return
	})

	g.Go(func() (err error) {
		out.TotalBookings, err = h.bookings.Count(gctx)
		return
	})

	if err := g.Wait(); err != nil {
		RespondInternal(ctx, "Could not load stats", err)
		return
	}

	ctx.JSON(http.StatusOK, out)
}

func (h *AdminHandler) Settings(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, id.UserID)

	if errors.Is(err, user.ErrNotFound) {
		RespondNotFound(ctx, "Admin not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not load settings", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"id": u.ID, "name": u.Name, "email": u.Email})
}

type AdminAccountRequest struct {
	Name  string `json:"name" binding:"required,max=120"`
	Email string `json:"email" binding:"required,email"`
}

func (h *AdminHandler) UpdateAccount(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	var req AdminAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.users.UpdateAccount(cctx, id.UserID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Email))

	switch {
	case errors.Is(err, user.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
		return
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "Admin not found")
		return
	case err != nil:
		RespondInternal(ctx, "Could not update settings", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"name": req.Name, "email": req.Email})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func (h *AdminHandler) ChangePassword(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	current, err := h.users.GetPasswordHash(cctx, id.UserID)

	if errors.Is(err, user.ErrNotFound) {
		RespondNotFound(ctx, "Admin not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not change password", err)
		return
	}

	if !h.hasher.Verify(req.CurrentPassword, current) {
		RespondError(ctx, http.StatusBadRequest, "wrong_password", "Current password is incorrect", nil)
		return
	}

	hash, err := h.hasher.Hash(req.NewPassword)

	if err != nil {
		RespondBadRequest(ctx, "Password cannot be used", nil)
		return
	}

	if err := h.users.UpdatePasswordHash(cctx, id.UserID, hash); err != nil {
		RespondInternal(ctx, "Could not change password", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *AdminHandler) Messages(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rows, err := h.inbox.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list messages", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": rows, "total": len(rows)})
}

func (h *AdminHandler) DeleteMessage(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.inbox.Delete(cctx, id)

	if errors.Is(err, contact.ErrNotFound) {
		RespondNotFound(ctx, "Message not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not delete message", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
