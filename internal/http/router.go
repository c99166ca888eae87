package http

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tnm3allim/marketplace/internal/auth"
	"github.com/tnm3allim/marketplace/internal/cache"
	"github.com/tnm3allim/marketplace/internal/config"
	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/http/handlers"
	"github.com/tnm3allim/marketplace/internal/http/middlewares"
	"github.com/tnm3allim/marketplace/internal/janitor"
	"github.com/tnm3allim/marketplace/internal/lock"
	"github.com/tnm3allim/marketplace/internal/notifications"
	"github.com/tnm3allim/marketplace/internal/observability"
	"github.com/tnm3allim/marketplace/internal/profile"
	"github.com/tnm3allim/marketplace/internal/redisclient"
	"github.com/tnm3allim/marketplace/internal/repo/postgres"
	"github.com/tnm3allim/marketplace/internal/security"
	"github.com/tnm3allim/marketplace/internal/storage"
)

type Deps struct {
	Log      *slog.Logger
	Cfg      config.Config
	Pool     *pgxpool.Pool
	Registry *prometheus.Registry
	Prom     *observability.Prom
	// Redis is nil when no REDIS_ADDR is configured.
	Redis    *redisclient.Client
	Notifier notifications.Notifier
	// Janitor, when set, receives the housekeeping tasks for the stores built here.
	Janitor  *janitor.Janitor

	// ShuttingDown flips readyz to 503 while the server drains.
	ShuttingDown func() bool
}

func NewRouter(d Deps) (*gin.Engine, error) {
	cfg := d.Cfg

	hasher, err := security.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	assets, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}

	// repositories
	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	artisansRepo := postgres.NewArtisansRepo(d.Pool, d.Prom)
	galleryRepo := postgres.NewGalleryRepo(d.Pool, d.Prom)
	reviewsRepo := postgres.NewReviewsRepo(d.Pool, d.Prom)
	bookingsRepo := postgres.NewBookingsRepo(d.Pool, d.Prom)
	reportsRepo := postgres.NewReportsRepo(d.Pool, d.Prom)
	contactsRepo := postgres.NewContactsRepo(d.Pool, d.Prom)
	resetsRepo := postgres.NewPasswordResetsRepo(d.Pool, d.Prom)

	sessions := auth.NewManager(cfg.SessionSecret, cfg.SessionTTL)

	listings := cache.New[[]artisan.Listing](cfg.ListingCacheTTL)

	var (
		revocations auth.Revocations
		locker      lock.Locker
	)

	if d.Redis != nil {
		revocations = auth.NewRedisRevocations(d.Redis.Raw())
		locker = lock.NewRedisLocker(d.Redis.Raw())
	} else {
		memRevocations := auth.NewMemoryRevocations()
		localLocks := lock.NewLocalLocker()
		revocations, locker = memRevocations, localLocks

		if d.Janitor != nil {
			d.Janitor.Add(janitor.Task{Name: "revocations.sweep", Run: sweeper(memRevocations.Sweep)})
			d.Janitor.Add(janitor.Task{Name: "locks.sweep", Run: sweeper(localLocks.Sweep)})
		}
	}

	if d.Janitor != nil {
		d.Janitor.Add(janitor.Task{Name: "password_resets.purge_expired", Run: resetsRepo.PurgeExpired})
		d.Janitor.Add(janitor.Task{Name: "listings.sweep", Run: sweeper(listings.Sweep)})
	}

	notifier := d.Notifier
	if notifier == nil {
		notifier = notifications.NewProtectedNotifier(notifications.NewLogNotifier(d.Log), notifications.ProtectedNotifierConfig{})
	}

	cookies := handlers.Cookies{Secure: cfg.IsProd()}

	workflow := profile.NewWorkflow(profile.Config{
		StepTimeout:    cfg.ProfileStepTimeout,
		PruneOldAvatar: cfg.ProfilePruneOldAvatar,
	}, profile.Deps{
		Users:    usersRepo,
		Artisans: artisansRepo,
		Gallery:  galleryRepo,
		Hasher:   hasher,
		Assets:   assets,
		Log:      d.Log,
		Observer: d.Prom,
	})

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(d.Prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders(handlers.UploadsPrefix))
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxUploadBytes))

	authMW := middlewares.NewAuthMiddleware(sessions, revocations, d.Log)
	jsonOnly := middlewares.RequireJSON()
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)
	limitByIP := loginLimiter.Middleware(middlewares.KeyByIP)
	writeLimiter := middlewares.NewRateLimiter(30, time.Minute)
	limitWrites := writeLimiter.Middleware(middlewares.KeyByUserOrIP)

	// health
	checks := map[string]handlers.Check{
		"db": func(ctx context.Context) error { return d.Pool.Ping(ctx) },
	}

	if d.Redis != nil {
		checks["redis"] = d.Redis.Ping
	}

	if d.ShuttingDown != nil {
		checks["shutdown"] = handlers.Draining(d.ShuttingDown)
	}

	health := handlers.NewHealthHandler(checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	r.Static(handlers.UploadsPrefix+"/"+string(storage.AreaProfiles), filepath.Join(assets.Root(), string(storage.AreaProfiles)))
	r.Static(handlers.UploadsPrefix+"/"+string(storage.AreaGallery), filepath.Join(assets.Root(), string(storage.AreaGallery)))

	authHandler := handlers.NewAuthHandler(handlers.AuthDeps{
		Users:         usersRepo,
		Resets:        resetsRepo,
		Hasher:        hasher,
		Tokens:        sessions,
		Sessions:      sessions,
		Revoker:       revocations,
		Notifier:      notifier,
		Cookies:       cookies,
		Log:           d.Log,
		ResetTTL:      cfg.ResetTokenTTL,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	profileHandler := handlers.NewProfileHandler(handlers.ProfileDeps{
		Workflow: workflow,
		Users:    usersRepo,
		Artisans: artisansRepo,
		Gallery:  galleryRepo,
		Locks:    locker,
		Sessions: sessions,
		Revoker:  revocations,
		Cookies:  cookies,
		Listings: listings,
		LockBusy: d.Prom.ProfileLockBusy,
		Log:      d.Log,
		LockTTL:  cfg.ProfileLockTTL,
	})

	artisanHandler := handlers.NewArtisanHandler(artisansRepo, reviewsRepo, bookingsRepo, reportsRepo, galleryRepo, listings)
	contactHandler := handlers.NewContactHandler(contactsRepo)
	adminHandler := handlers.NewAdminHandler(usersRepo, artisansRepo, contactsRepo, bookingsRepo, hasher, listings)

	authGroup := r.Group("/auth", jsonOnly)
	{
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/login", limitByIP, authHandler.Login)
		authGroup.POST("/logout", authMW.Authenticate(), authHandler.Logout)
		authGroup.POST("/forgot-password", limitByIP, authHandler.ForgotPassword)
		authGroup.GET("/reset-password/:token", authHandler.CheckResetToken)
		authGroup.POST("/reset-password/:token", authHandler.ResetPassword)
	}

	profileGroup := r.Group("/profile", authMW.RequireAuth())
	{
		profileGroup.GET("/data", profileHandler.Data)
		profileGroup.POST("/update-profile", profileHandler.Update)
		profileGroup.GET("/gallery", profileHandler.Gallery)
	}

	artisanGroup := r.Group("/artisan", jsonOnly)
	{
		artisanGroup.GET("/get-artisans", artisanHandler.List)
		artisanGroup.GET("/get-artisan/:id", artisanHandler.Get)
		artisanGroup.GET("/get-reviews/:artisanId", artisanHandler.Reviews)

		artisanGroup.POST("/submit-review", authMW.RequireAuth(), limitWrites, artisanHandler.SubmitReview)
		artisanGroup.POST("/book-artisan", authMW.RequireAuth(), limitWrites, artisanHandler.Book)

		own := artisanGroup.Group("", authMW.RequireAuth(), authMW.RequireRole(user.RoleArtisan))
		own.POST("/report-problem", artisanHandler.ReportProblem)
		own.GET("/reviews/data", artisanHandler.OwnReviews)
	}

	clientGroup := r.Group("/client")
	{
		clientGroup.GET("/artisans", authMW.RequireAuth(), authMW.RequireRole(user.RoleClient), artisanHandler.List)
		clientGroup.GET("/get-gallery/:artisanId", artisanHandler.PublicGallery)
	}

	r.POST("/contact", jsonOnly, limitWrites, contactHandler.Create)

	r.POST("/admin/login", jsonOnly, limitByIP, authHandler.AdminLogin)

	adminGroup := r.Group("/admin", jsonOnly, authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	{
		adminGroup.GET("/users-data", adminHandler.Users)
		adminGroup.GET("/client/:id", adminHandler.Client)
		adminGroup.POST("/client/:id/delete", adminHandler.DeleteClient)
		adminGroup.DELETE("/client/:id", adminHandler.DeleteClient)
		adminGroup.GET("/stats", adminHandler.Stats)
		adminGroup.GET("/settings", adminHandler.Settings)
		adminGroup.POST("/settings/update-profile", adminHandler.UpdateAccount)
		adminGroup.POST("/settings/change-password", adminHandler.ChangePassword)
		adminGroup.GET("/user-messages", adminHandler.Messages)
		adminGroup.DELETE("/user-messages/:id", adminHandler.DeleteMessage)
	}

	return r, nil
}

func sweeper(sweep func() int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		return sweep(), nil
	}
}
