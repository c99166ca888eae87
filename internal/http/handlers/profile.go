package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/config"
	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/lock"
	"github.com/tnm3allim/marketplace/internal/profile"
	"github.com/tnm3allim/marketplace/internal/storage"
)

type ProfileRunner interface {
	Run(ctx context.Context, req profile.Request) profile.Result
}

type UserByID interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type ArtisanByUser interface {
	GetByUserID(ctx context.Context, userID int64) (artisan.Profile, error)
}

type GalleryLister interface {
	ListByArtisan(ctx context.Context, artisanID int64) ([]artisan.GalleryAsset, error)
}

// Invalidator drops cached data derived from profiles.
type Invalidator interface {
	Clear()
}

type Counter interface {
	Inc()
}

type ProfileDeps struct {
	Workflow ProfileRunner
	Users    UserByID
	Artisans ArtisanByUser
	Gallery  GalleryLister
	Locks    lock.Locker
	Sessions SessionIssuer
	Revoker  SessionRevoker
	Cookies  Cookies
	Listings Invalidator
	LockBusy Counter
	Log      *slog.Logger

	LockTTL   time.Duration
	MaxPhotos int
}

type ProfileHandler struct {
	deps ProfileDeps
}

func NewProfileHandler(deps ProfileDeps) *ProfileHandler {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 2 * time.Minute
	}

	if deps.MaxPhotos <= 0 {
		deps.MaxPhotos = 1
	}

	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}

	return &ProfileHandler{deps: deps}
}

// UpdateProfileForm mirrors the multipart fields of the profile page.
// Artisan fields left empty keep their stored value, so numeric ones stay strings
// to tell "not submitted" from "zero".
type UpdateProfileForm struct {
	FullName        string `form:"fullname" binding:"max=120"`
	Phone           string `form:"phone" binding:"max=40"`
	Address         string `form:"address" binding:"max=255"`
	Governorate     string `form:"governorate" binding:"max=80"`
	City            string `form:"city" binding:"max=80"`
	PostalCode      string `form:"postalCode" binding:"max=20"`
	CurrentPassword string `form:"currentPassword"`
	NewPassword     string `form:"newPassword"`

	Profession  string `form:"profession" binding:"max=120"`
	Experience  string `form:"experience" binding:"omitempty,numeric"`
	HourlyRate  string `form:"hourlyRate" binding:"omitempty,numeric"`
	Description string `form:"description" binding:"max=5000"`
}

func (f UpdateProfileForm) artisanFields() (*artisan.Fields, error) {
	if f.Profession == "" && f.Experience == "" && f.HourlyRate == "" && f.Description == "" {
		return nil, nil
	}

	out := &artisan.Fields{
		Specialization: trimmedOrNil(f.Profession),
		Description:    trimmedOrNil(f.Description),
	}

	if f.Experience != "" {
		n, err := strconv.Atoi(f.Experience)

		if err != nil {
			return nil, errors.New("experience must be a whole number of years")
		}

		out.Experience = &n
	}

	if f.HourlyRate != "" {
		rate, err := strconv.ParseFloat(f.HourlyRate, 64)

		if err != nil {
			return nil, errors.New("hourlyRate must be a number")
		}

		out.HourlyRate = &rate
	}

	return out, nil
}

func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)

	if s == "" {
		return nil
	}

	return &s
}

func (f UpdateProfileForm) secret() *profile.SecretChange {
	if f.CurrentPassword == "" && f.NewPassword == "" {
		return nil
	}

	return &profile.SecretChange{Current: f.CurrentPassword, New: f.NewPassword}
}

type profileView struct {
	user.User
	Photo *string `json:"photo,omitempty"`
}

func (h *ProfileHandler) Data(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.deps.Users.GetByID(cctx, id.UserID)

	if errors.Is(err, user.ErrNotFound) {
		RespondNotFound(ctx, "User not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not load profile", err)
		return
	}

	var art *artisan.Profile

	if u.Role == user.RoleArtisan {
		p, err := h.deps.Artisans.GetByUserID(cctx, u.ID)

		switch {
		case err == nil:
			art = &p
		case !errors.Is(err, artisan.ErrNotFound):
			RespondInternal(ctx, "Could not load profile", err)
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":    profileView{User: u, Photo: photoURL(u.Photo)},
		"artisan": art,
	})
}

type galleryItem struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Preview  string `json:"preview"`
}

func galleryItems(assets []artisan.GalleryAsset) []galleryItem {
	out := make([]galleryItem, 0, len(assets))

	for _, a := range assets {
		out = append(out, galleryItem{ID: a.ID, Filename: a.Path, Preview: assetURL(storage.AreaGallery, a.Path)})
	}

	return out
}

func (h *ProfileHandler) Gallery(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.deps.Artisans.GetByUserID(cctx, id.UserID)

	if errors.Is(err, artisan.ErrNotFound) {
		ctx.JSON(http.StatusOK, []galleryItem{})
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not load gallery", err)
		return
	}

	assets, err := h.deps.Gallery.ListByArtisan(cctx, p.ID)

	if err != nil {
		RespondInternal(ctx, "Could not load gallery", err)
		return
	}

	ctx.JSON(http.StatusOK, galleryItems(assets))
}

func (h *ProfileHandler) Update(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	var form UpdateProfileForm

	if !BindForm(ctx, &form) {
		return
	}

	fields, err := form.artisanFields()

	if err != nil {
		RespondBadRequest(ctx, err.Error(), nil)
		return
	}

	photo, gallery, err := h.readUploads(ctx)

	if err != nil {
		RespondBadRequest(ctx, err.Error(), nil)
		return
	}

	req := profile.Request{
		Caller: profile.Caller{ID: id.UserID, Role: id.Role},
		Core: user.CoreFields{
			Name:        strings.TrimSpace(form.FullName),
			Phone:       strings.TrimSpace(form.Phone),
			Address:     strings.TrimSpace(form.Address),
			Governorate: strings.TrimSpace(form.Governorate),
			City:        strings.TrimSpace(form.City),
			PostalCode:  strings.TrimSpace(form.PostalCode),
		},
		Secret:  form.secret(),
		Photo:   photo,
		Artisan: fields,
		Gallery: gallery,
	}

	rctx := ctx.Request.Context()
	release, err := h.deps.Locks.Acquire(rctx, "profile:"+strconv.FormatInt(id.UserID, 10), h.deps.LockTTL)

	switch {
	case errors.Is(err, lock.ErrHeld):
		if h.deps.LockBusy != nil {
			h.deps.LockBusy.Inc()
		}

		RespondConflict(ctx, "update_in_progress", "Another profile update is still running")
		return
	case err != nil:
		h.deps.Log.WarnContext(rctx, "profile lock unavailable, continuing unlocked", "user_id", id.UserID, "err", err)
	default:
		defer release()
	}

	res := h.deps.Workflow.Run(rctx, req)

	if len(res.Applied) > 0 && h.deps.Listings != nil {
		h.deps.Listings.Clear()
	}

	if res.Succeeded(profile.StepCoreFields) {
		h.refreshSession(ctx, id.UserID, id.SessionID, id.ExpiresAt, req.Core.Name, id.Role)
	}

	ctx.JSON(statusFor(res), res)
}

// refreshSession reissues the cookie so the new display name shows up, then retires the old session.
func (h *ProfileHandler) refreshSession(ctx *gin.Context, userID int64, oldSession string, oldExp time.Time, name string, role user.Role) {
	if h.deps.Sessions == nil {
		return
	}

	raw, fresh, err := h.deps.Sessions.Issue(user.User{ID: userID, Name: name, Role: role})

	if err != nil {
		h.deps.Log.WarnContext(ctx.Request.Context(), "session reissue failed", "user_id", userID, "err", err)
		return
	}

	h.deps.Cookies.Set(ctx, raw, fresh.ExpiresAt)

	if h.deps.Revoker != nil && oldSession != "" {
		if err := h.deps.Revoker.Revoke(ctx.Request.Context(), oldSession, oldExp); err != nil {
			h.deps.Log.WarnContext(ctx.Request.Context(), "old session revoke failed", "user_id", userID, "err", err)
		}
	}
}

func statusFor(res profile.Result) int {
	switch res.Status {
	case profile.StatusSuccess:
		return http.StatusOK
	case profile.StatusPartialFailure:
		return http.StatusMultiStatus
	}

	switch res.TerminalKind() {
	case profile.KindValidation, profile.KindAuthentication:
		return http.StatusBadRequest
	case profile.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *ProfileHandler) readUploads(ctx *gin.Context) (*profile.Upload, []profile.Upload, error) {
	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		return nil, nil, nil
	}

	mf, err := ctx.MultipartForm()

	if err != nil {
		return nil, nil, errors.New("invalid multipart form")
	}

	photos := mf.File["profilePhoto"]

	if len(photos) > h.deps.MaxPhotos {
		return nil, nil, fmt.Errorf("at most %d profile photo may be uploaded", h.deps.MaxPhotos)
	}

	var photo *profile.Upload

	if len(photos) == 1 {
		up, err := readUpload(photos[0])

		if err != nil {
			return nil, nil, err
		}

		photo = &up
	}

	gallery := make([]profile.Upload, 0, len(mf.File["galleryImages"]))

	for _, fh := range mf.File["galleryImages"] {
		up, err := readUpload(fh)

		if err != nil {
			return nil, nil, err
		}

		gallery = append(gallery, up)
	}

	return photo, gallery, nil
}

func readUpload(fh *multipart.FileHeader) (profile.Upload, error) {
	f, err := fh.Open()

	if err != nil {
		return profile.Upload{}, fmt.Errorf("could not read upload %q", fh.Filename)
	}

	defer f.Close()

	data, err := io.ReadAll(f)

	if err != nil {
		return profile.Upload{}, fmt.Errorf("could not read upload %q", fh.Filename)
	}

	return profile.Upload{Filename: fh.Filename, Data: data}, nil
}
