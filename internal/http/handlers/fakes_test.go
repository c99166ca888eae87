package handlers_test

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tnm3allim/marketplace/internal/auth"
	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/booking"
	"github.com/tnm3allim/marketplace/internal/domain/contact"
	"github.com/tnm3allim/marketplace/internal/domain/review"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/http/middlewares"
	"github.com/tnm3allim/marketplace/internal/notifications"
	"github.com/tnm3allim/marketplace/internal/profile"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asCaller stands in for RequireAuth in handler tests.
func asCaller(id auth.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		middlewares.SetIdentity(c, id)
		c.Next()
	}
}

type fakeUsers struct {
	createFn     func(ctx context.Context, u user.User) (user.User, error)
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	getByIDFn    func(ctx context.Context, id int64) (user.User, error)
}

func (f *fakeUsers) Create(ctx context.Context, u user.User) (user.User, error) {
	return f.createFn(ctx, u)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return f.getByEmailFn(ctx, email)
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (user.User, error) {
	return f.getByIDFn(ctx, id)
}

type memResets struct {
	mu     sync.Mutex
	tokens map[string]int64
	hashes map[int64]string
}

func newMemResets() *memResets {
	return &memResets{tokens: map[string]int64{}, hashes: map[int64]string{}}
}

func (m *memResets) Put(_ context.Context, userID int64, tokenHash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[tokenHash] = userID
	return nil
}

func (m *memResets) Lookup(_ context.Context, tokenHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.tokens[tokenHash]
	if !ok {
		return 0, user.ErrInvalidResetToken
	}
	return id, nil
}

func (m *memResets) Consume(_ context.Context, tokenHash, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.tokens[tokenHash]
	if !ok {
		return user.ErrInvalidResetToken
	}

	delete(m.tokens, tokenHash)
	m.hashes[id] = passwordHash
	return nil
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notifications.PasswordResetInput
	err  error
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, in notifications.PasswordResetInput) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, in)
	return n.err
}

type runnerFunc func(ctx context.Context, req profile.Request) profile.Result

func (f runnerFunc) Run(ctx context.Context, req profile.Request) profile.Result {
	return f(ctx, req)
}

type fakeCatalog struct {
	listFn      func(ctx context.Context) ([]artisan.Listing, error)
	getFn       func(ctx context.Context, id int64) (artisan.Listing, error)
	byUserFn    func(ctx context.Context, userID int64) (artisan.Profile, error)
	listCalls   int
	listCallsMu sync.Mutex
}

func (f *fakeCatalog) List(ctx context.Context) ([]artisan.Listing, error) {
	f.listCallsMu.Lock()
	f.listCalls++
	f.listCallsMu.Unlock()

	return f.listFn(ctx)
}

func (f *fakeCatalog) GetListing(ctx context.Context, id int64) (artisan.Listing, error) {
	return f.getFn(ctx, id)
}

func (f *fakeCatalog) GetByUserID(ctx context.Context, userID int64) (artisan.Profile, error) {
	return f.byUserFn(ctx, userID)
}

type fakeReviews struct {
	createFn func(ctx context.Context, userID int64, req review.CreateReviewRequest) (review.Review, error)
	listFn   func(ctx context.Context, artisanID int64) ([]review.Review, error)
}

func (f *fakeReviews) Create(ctx context.Context, userID int64, req review.CreateReviewRequest) (review.Review, error) {
	return f.createFn(ctx, userID, req)
}

func (f *fakeReviews) ListByArtisan(ctx context.Context, artisanID int64) ([]review.Review, error) {
	return f.listFn(ctx, artisanID)
}

type fakeBookings struct {
	createFn func(ctx context.Context, userID int64, req booking.CreateBookingRequest) (booking.Booking, error)
	count    int
}

func (f *fakeBookings) Create(ctx context.Context, userID int64, req booking.CreateBookingRequest) (booking.Booking, error) {
	return f.createFn(ctx, userID, req)
}

func (f *fakeBookings) Count(context.Context) (int, error) {
	return f.count, nil
}

type fakeReports struct {
	got []artisan.Report
}

func (f *fakeReports) Create(_ context.Context, rep artisan.Report) (artisan.Report, error) {
	rep.ID = int64(len(f.got) + 1)
	f.got = append(f.got, rep)
	return rep, nil
}

type fakeGallery struct {
	rows map[int64][]artisan.GalleryAsset
}

func (f *fakeGallery) ListByArtisan(_ context.Context, artisanID int64) ([]artisan.GalleryAsset, error) {
	return f.rows[artisanID], nil
}

type fakeAdminUsers struct {
	hashes  map[int64]string
	clients map[int64]user.User
	counts  map[user.Role]int
	updated string
}

func (f *fakeAdminUsers) GetByID(_ context.Context, id int64) (user.User, error) {
	return user.User{ID: id, Name: "Admin", Email: "admin@tnm3allim.tn", Role: user.RoleAdmin}, nil
}

func (f *fakeAdminUsers) GetClient(_ context.Context, id int64) (user.User, error) {
	u, ok := f.clients[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeAdminUsers) ListByRole(_ context.Context, role user.Role) ([]user.Summary, error) {
	out := []user.Summary{}
	for _, u := range f.clients {
		if u.Role == role {
			out = append(out, user.Summary{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}
	return out, nil
}

func (f *fakeAdminUsers) DeleteClient(_ context.Context, id int64) error {
	if _, ok := f.clients[id]; !ok {
		return user.ErrNotFound
	}
	delete(f.clients, id)
	return nil
}

func (f *fakeAdminUsers) CountByRole(_ context.Context, role user.Role) (int, error) {
	return f.counts[role], nil
}

func (f *fakeAdminUsers) UpdateAccount(_ context.Context, _ int64, _, email string) error {
	if email == "taken@tnm3allim.tn" {
		return user.ErrEmailTaken
	}
	f.updated = email
	return nil
}

func (f *fakeAdminUsers) GetPasswordHash(_ context.Context, id int64) (string, error) {
	h, ok := f.hashes[id]
	if !ok {
		return "", user.ErrNotFound
	}
	return h, nil
}

func (f *fakeAdminUsers) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	f.hashes[id] = hash
	return nil
}

type fakeStats struct {
	stats artisan.Stats
}

func (f fakeStats) Stats(context.Context) (artisan.Stats, error) {
	return f.stats, nil
}

type fakeInbox struct {
	msgs []contact.Message
}

func (f *fakeInbox) List(context.Context) ([]contact.Message, error) {
	return f.msgs, nil
}

func (f *fakeInbox) Delete(_ context.Context, id int64) error {
	for i, m := range f.msgs {
		if m.ID == id {
			f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
			return nil
		}
	}
	return contact.ErrNotFound
}

func (f *fakeInbox) Count(context.Context) (int, error) {
	return len(f.msgs), nil
}

func (f *fakeInbox) Create(_ context.Context, req contact.CreateMessageRequest) (contact.Message, error) {
	m := contact.Message{ID: int64(len(f.msgs) + 1), Name: req.Name, Email: req.Email, Subject: req.Subject, Body: req.Body}
	f.msgs = append(f.msgs, m)
	return m, nil
}

type countingInvalidator struct {
	n int
}

func (c *countingInvalidator) Clear() { c.n++ }

type counter struct {
	n int
}

func (c *counter) Inc() { c.n++ }
