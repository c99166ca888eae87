package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/cache"
	"github.com/tnm3allim/marketplace/internal/config"
	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/booking"
	"github.com/tnm3allim/marketplace/internal/domain/review"
)

type ArtisanCatalog interface {
	List(ctx context.Context) ([]artisan.Listing, error)
	GetListing(ctx context.Context, id int64) (artisan.Listing, error)
	GetByUserID(ctx context.Context, userID int64) (artisan.Profile, error)
}

type ReviewStore interface {
	Create(ctx context.Context, userID int64, req review.CreateReviewRequest) (review.Review, error)
	ListByArtisan(ctx context.Context, artisanID int64) ([]review.Review, error)
}

type BookingCreator interface {
	Create(ctx context.Context, userID int64, req booking.CreateBookingRequest) (booking.Booking, error)
}

type ReportCreator interface {
	Create(ctx context.Context, rep artisan.Report) (artisan.Report, error)
}

const listingsKey = "all"

type ArtisanHandler struct {
	artisans ArtisanCatalog
	reviews  ReviewStore
	bookings BookingCreator
	reports  ReportCreator
	gallery  GalleryLister
	listings *cache.Cache[[]artisan.Listing]
}

func NewArtisanHandler(
	artisans ArtisanCatalog,
	reviews ReviewStore,
	bookings BookingCreator,
	reports ReportCreator,
	gallery GalleryLister,
	listings *cache.Cache[[]artisan.Listing],
) *ArtisanHandler {
	return &ArtisanHandler{
		artisans: artisans,
		reviews:  reviews,
		bookings: bookings,
		reports:  reports,
		gallery:  gallery,
		listings: listings,
	}
}

func listingView(l artisan.Listing) artisan.Listing {
	l.Photo = photoURL(l.Photo)
	return l
}

func (h *ArtisanHandler) List(ctx *gin.Context) {
	if cached, ok := h.listings.Get(listingsKey); ok {
		ctx.Header("X-Cache", "HIT")
		ctx.JSON(http.StatusOK, cached)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rows, err := h.artisans.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list artisans", err)
		return
	}

	out := make([]artisan.Listing, 0, len(rows))
	for _, l := range rows {
		out = append(out, listingView(l))
	}

	h.listings.Set(listingsKey, out)

	ctx.Header("X-Cache", "MISS")
	ctx.JSON(http.StatusOK, out)
}

func (h *ArtisanHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	l, err := h.artisans.GetListing(cctx, id)

	if errors.Is(err, artisan.ErrNotFound) {
		RespondNotFound(ctx, "Artisan not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not load artisan", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, listingView(l))
}

func reviewView(rv review.Review) review.Review {
	rv.ReviewerPhoto = photoURL(rv.ReviewerPhoto)
	return rv
}

func (h *ArtisanHandler) Reviews(ctx *gin.Context) {
	id, ok := pathID(ctx, "artisanId")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rows, err := h.reviews.ListByArtisan(cctx, id)

	if err != nil {
		RespondInternal(ctx, "Could not list reviews", err)
		return
	}

	out := make([]review.Review, 0, len(rows))
	for _, rv := range rows {
		out = append(out, reviewView(rv))
	}

	ctx.JSON(http.StatusOK, out)
}

func (h *ArtisanHandler) SubmitReview(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	var req review.CreateReviewRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	rv, err := h.reviews.Create(cctx, id.UserID, req)

	if errors.Is(err, artisan.ErrNotFound) {
		RespondNotFound(ctx, "Artisan not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not save review", err)
		return
	}

	h.listings.Clear()

	ctx.JSON(http.StatusCreated, rv)
}

func (h *ArtisanHandler) Book(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	var req booking.CreateBookingRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	b, err := h.bookings.Create(cctx, id.UserID, req)

	if errors.Is(err, artisan.ErrNotFound) {
		RespondNotFound(ctx, "Artisan not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not create booking", err)
		return
	}

	ctx.JSON(http.StatusCreated, b)
}

type ReportRequest struct {
	Navigation string `json:"navigation" binding:"max=2000"`
	Design     string `json:"design" binding:"max=2000"`
	Comments   string `json:"comments" binding:"max=5000"`
}

func (h *ArtisanHandler) ReportProblem(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	var req ReportRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.artisans.GetByUserID(cctx, id.UserID)

	if errors.Is(err, artisan.ErrNotFound) {
		RespondNotFound(ctx, "Artisan profile not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not save report", err)
		return
	}

	rep, err := h.reports.Create(cctx, artisan.Report{
		ArtisanID:  p.ID,
		Navigation: req.Navigation,
		Design:     req.Design,
		Comments:   req.Comments,
	})

	if errors.Is(err, artisan.ErrNotFound) {
		RespondNotFound(ctx, "Artisan profile not found")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not save report", err)
		return
	}

	ctx.JSON(http.StatusCreated, rep)
}

type ownReview struct {
	ID          int64     `json:"id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	ClientName  string    `json:"clientName"`
	ClientPhoto *string   `json:"clientPhoto,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// OwnReviews lists the reviews left on the calling artisan.
func (h *ArtisanHandler) OwnReviews(ctx *gin.Context) {
	id, ok := mustIdentity(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	out := make([]ownReview, 0)

	p, err := h.artisans.GetByUserID(cctx, id.UserID)

	if errors.Is(err, artisan.ErrNotFound) {
		ctx.JSON(http.StatusOK, gin.H{"reviews": out})
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not list reviews", err)
		return
	}

	rows, err := h.reviews.ListByArtisan(cctx, p.ID)

	if err != nil {
		RespondInternal(ctx, "Could not list reviews", err)
		return
	}

	for _, rv := range rows {
		out = append(out, ownReview{
			ID:          rv.ID,
			Rating:      rv.Rating,
			Comment:     rv.Comment,
			ClientName:  rv.ReviewerName,
			ClientPhoto: photoURL(rv.ReviewerPhoto),
			CreatedAt:   rv.CreatedAt,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{"reviews": out})
}

// PublicGallery lists an artisan's gallery by artisan id.
func (h *ArtisanHandler) PublicGallery(ctx *gin.Context) {
	id, ok := pathID(ctx, "artisanId")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	assets, err := h.gallery.ListByArtisan(cctx, id)

	if err != nil {
		RespondInternal(ctx, "Could not load gallery", err)
		return
	}

	ctx.JSON(http.StatusOK, galleryItems(assets))
}
