// Package profile applies a user's profile update as an ordered set of steps
// and reports exactly which of them took effect.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/storage"
)

type UserStore interface {
	UpdateCoreFields(ctx context.Context, id int64, f user.CoreFields) error
	GetPasswordHash(ctx context.Context, id int64) (string, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	// UpdatePhoto returns the reference it replaced, nil when there was none.
	UpdatePhoto(ctx context.Context, id int64, ref string) (*string, error)
}

type ArtisanStore interface {
	UpsertForUser(ctx context.Context, userID int64, f artisan.Fields) (int64, error)
	EnsureForUser(ctx context.Context, userID int64) (int64, error)
}

type GalleryStore interface {
	Add(ctx context.Context, artisanID int64, ref string) (artisan.GalleryAsset, error)
}

type SecretHasher interface {
	Verify(plain, hash string) bool
	Hash(plain string) (string, error)
}

type AssetStore interface {
	Store(ctx context.Context, area storage.Area, name string, payload []byte) (string, error)
	Remove(ctx context.Context, area storage.Area, ref string) error
}

// StepObserver receives one observation per executed step.
type StepObserver interface {
	ObserveStep(step, outcome string, d time.Duration)
}

type Config struct {
	StepTimeout      time.Duration
	MaxGalleryImages int
	PruneOldAvatar   bool
}

type Deps struct {
	Users    UserStore
	Artisans ArtisanStore
	Gallery  GalleryStore
	Hasher   SecretHasher
	Assets   AssetStore

	// Inspect checks an upload's bytes; defaults to storage.InspectImage.
	Inspect  func(payload []byte) error
	Log      *slog.Logger
	Observer StepObserver
	Tracer   trace.Tracer
}

type Workflow struct {
	cfg  Config
	deps Deps
}

func NewWorkflow(cfg Config, deps Deps) *Workflow {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 5 * time.Second
	}

	if cfg.MaxGalleryImages <= 0 {
		cfg.MaxGalleryImages = 10
	}

	if deps.Inspect == nil {
		deps.Inspect = storage.InspectImage
	}

	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}

	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/tnm3allim/marketplace/internal/profile")
	}

	return &Workflow{cfg: cfg, deps: deps}
}

// Run applies req and never returns an error: every outcome is in the Result.
func (w *Workflow) Run(ctx context.Context, req Request) Result {
	res := newResult()
	log := w.deps.Log.With("user_id", req.Caller.ID)

	if se := req.validate(w.cfg.MaxGalleryImages); se != nil {
		log.WarnContext(ctx, "profile update rejected", "step", se.Step, "error_kind", se.Kind, "err", se.Err)
		return res.terminate(se)
	}

	ctx, span := w.deps.Tracer.Start(ctx, "profile.update",
		trace.WithAttributes(attribute.Int64("user.id", req.Caller.ID), attribute.String("user.role", string(req.Caller.Role))))
	defer span.End()

	if se := w.runStep(ctx, StepCoreFields, 0, KindPersistence, func(ctx context.Context) error {
		return w.deps.Users.UpdateCoreFields(ctx, req.Caller.ID, req.Core)
	}); se != nil {
		span.SetStatus(codes.Error, se.Error())
		return res.terminate(se)
	}

	res.apply(StepCoreFields, 0, "")

	switch {
	case req.Secret.requested():
		w.record(&res, StepSecretRotation, w.runStep(ctx, StepSecretRotation, 0, KindPersistence, func(ctx context.Context) error {
			return w.rotateSecret(ctx, req.Caller.ID, *req.Secret)
		}), "")
	case req.Secret != nil:
		res.skip(StepSecretRotation, "both current and new password are required")
	}

	if req.Photo != nil {
		var ref string

		se := w.runStep(ctx, StepAvatar, 0, KindStorage, func(ctx context.Context) error {
			var err error
			ref, err = w.replaceAvatar(ctx, log, req.Caller.ID, *req.Photo)
			return err
		})

		w.record(&res, StepAvatar, se, ref)

		if se == nil {
			res.Photo = ref
		}
	}

	if req.Caller.Role != user.RoleArtisan {
		if req.Artisan != nil {
			res.skip(StepArtisanUpsert, "caller is not an artisan")
		}

		if len(req.Gallery) > 0 {
			res.skip(StepGalleryImage, "caller is not an artisan")
		}

		return w.finish(span, &res)
	}

	var artisanID int64

	se := w.runStep(ctx, StepArtisanUpsert, 0, KindPersistence, func(ctx context.Context) error {
		var err error
		artisanID, err = w.upsertArtisan(ctx, req)
		return err
	})

	w.record(&res, StepArtisanUpsert, se, "")

	if se != nil {
		if len(req.Gallery) > 0 {
			res.skip(StepGalleryImage, "artisan profile could not be resolved")
		}

		return w.finish(span, &res)
	}

	res.ArtisanID = artisanID

	if len(req.Gallery) > 0 {
		w.ingestGallery(ctx, log, &res, req.Caller.ID, artisanID, req.Gallery)
	}

	return w.finish(span, &res)
}

func (w *Workflow) finish(span trace.Span, res *Result) Result {
	out := res.finish()

	span.SetAttributes(attribute.String("profile.status", string(out.Status)), attribute.Int("profile.failures", len(out.Failures)))

	if out.Status != StatusSuccess {
		span.SetStatus(codes.Error, string(out.Status))
	}

	return out
}

func (w *Workflow) record(res *Result, step Step, se *StepError, ref string) {
	if se != nil {
		res.fail(se)
		return
	}

	res.apply(step, 0, ref)
}

// runStep bounds fn by the step timeout and converts its error into a *StepError
// classified against boundary.
func (w *Workflow) runStep(ctx context.Context, step Step, index int, boundary Kind, fn func(ctx context.Context) error) *StepError {
	sctx, cancel := context.WithTimeout(ctx, w.cfg.StepTimeout)
	defer cancel()

	sctx, span := w.deps.Tracer.Start(sctx, "profile."+string(step))
	defer span.End()

	if index > 0 {
		span.SetAttributes(attribute.Int("profile.index", index))
	}

	start := time.Now()
	err := fn(sctx)

	outcome := "ok"
	var se *StepError

	if err != nil {
		outcome = "error"
		se = &StepError{Step: step, Index: index, Kind: classify(err, boundary), Err: err}

		span.RecordError(err)
		span.SetStatus(codes.Error, string(se.Kind))

		w.deps.Log.WarnContext(ctx, "profile step failed",
			"step", step,
			"index", index,
			"error_kind", se.Kind,
			"err", err,
		)
	}

	if w.deps.Observer != nil {
		w.deps.Observer.ObserveStep(string(step), outcome, time.Since(start))
	}

	return se
}

func (w *Workflow) rotateSecret(ctx context.Context, userID int64, sc SecretChange) error {
	stored, err := w.deps.Users.GetPasswordHash(ctx, userID)

	if err != nil {
		return err
	}

	ok, err := bounded(ctx, func() (bool, error) {
		return w.deps.Hasher.Verify(sc.Current, stored), nil
	})

	if err != nil {
		return err
	}

	if !ok {
		return withKind(KindAuthentication, ErrWrongSecret)
	}

	hash, err := bounded(ctx, func() (string, error) {
		return w.deps.Hasher.Hash(sc.New)
	})

	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return withKind(KindValidation, err)
		}

		return fmt.Errorf("hash new password: %w", err)
	}

	return w.deps.Users.UpdatePasswordHash(ctx, userID, hash)
}

func (w *Workflow) replaceAvatar(ctx context.Context, log *slog.Logger, userID int64, up Upload) (string, error) {
	ref, err := w.storeUpload(ctx, storage.AreaProfiles, userID, up)

	if err != nil {
		return "", err
	}

	prev, err := w.deps.Users.UpdatePhoto(ctx, userID, ref)

	if err != nil {
		w.discard(log, storage.AreaProfiles, ref)
		return "", withKind(classify(err, KindPersistence), err)
	}

	if w.cfg.PruneOldAvatar && prev != nil && *prev != "" && *prev != ref {
		rmErr := w.deps.Assets.Remove(ctx, storage.AreaProfiles, *prev)

		if rmErr != nil && !errors.Is(rmErr, storage.ErrNotFound) {
			log.WarnContext(ctx, "old avatar not removed", "ref", *prev, "err", rmErr)
		}
	}

	return ref, nil
}

func (w *Workflow) upsertArtisan(ctx context.Context, req Request) (int64, error) {
	if req.Artisan == nil {
		return w.deps.Artisans.EnsureForUser(ctx, req.Caller.ID)
	}

	f := *req.Artisan

	if f.Locality == nil && req.Core.Address != "" {
		f.Locality = &req.Core.Address
	}

	return w.deps.Artisans.UpsertForUser(ctx, req.Caller.ID, f)
}

type galleryOutcome struct {
	ref string
	err *StepError
}

func (w *Workflow) ingestGallery(ctx context.Context, log *slog.Logger, res *Result, userID, artisanID int64, uploads []Upload) {
	outcomes := make([]galleryOutcome, len(uploads))

	// images never cancel each other, so the group carries no shared context
	var g errgroup.Group
	g.SetLimit(w.cfg.MaxGalleryImages)

	for i, up := range uploads {
		g.Go(func() error {
			var ref string

			se := w.runStep(ctx, StepGalleryImage, i+1, KindStorage, func(ctx context.Context) error {
				var err error
				ref, err = w.ingestImage(ctx, log, userID, artisanID, up)
				return err
			})

			outcomes[i] = galleryOutcome{ref: ref, err: se}
			return nil
		})
	}

	_ = g.Wait()

	for i, o := range outcomes {
		if o.err != nil {
			res.fail(o.err)
			continue
		}

		res.apply(StepGalleryImage, i+1, o.ref)
	}
}

func (w *Workflow) ingestImage(ctx context.Context, log *slog.Logger, userID, artisanID int64, up Upload) (string, error) {
	ref, err := w.storeUpload(ctx, storage.AreaGallery, userID, up)

	if err != nil {
		return "", err
	}

	_, err = w.deps.Gallery.Add(ctx, artisanID, ref)

	if err != nil {
		w.discard(log, storage.AreaGallery, ref)
		return "", withKind(classify(err, KindPersistence), err)
	}

	return ref, nil
}

// storeUpload checks the upload and writes it under <userID>_<uuidv7><ext>.
func (w *Workflow) storeUpload(ctx context.Context, area storage.Area, userID int64, up Upload) (string, error) {
	ext, err := storage.ImageExt(up.Filename)

	if err != nil {
		return "", withKind(KindValidation, err)
	}

	if err := w.deps.Inspect(up.Data); err != nil {
		return "", withKind(KindValidation, err)
	}

	id, err := uuid.NewV7()

	if err != nil {
		return "", fmt.Errorf("file suffix: %w", err)
	}

	return w.deps.Assets.Store(ctx, area, fmt.Sprintf("%d_%s%s", userID, id, ext), up.Data)
}

// discard removes a stored file whose row was never written. It runs on a fresh
// context because the step's own deadline may be what failed the write.
func (w *Workflow) discard(log *slog.Logger, area storage.Area, ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.StepTimeout)
	defer cancel()

	if err := w.deps.Assets.Remove(ctx, area, ref); err != nil {
		log.Warn("orphan upload not removed", "area", area, "ref", ref, "err", err)
	}
}

// bounded waits for fn or ctx, whichever finishes first.
func bounded[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type out struct {
		v   T
		err error
	}

	done := make(chan out, 1)

	go func() {
		v, err := fn()
		done <- out{v, err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
