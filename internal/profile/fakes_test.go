package profile

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/storage"
)

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*user.User

	updateCoreFn func(ctx context.Context, id int64, f user.CoreFields) error
	updateHashFn func(ctx context.Context, id int64, hash string) error
	coreWrites   int
}

func newMemUsers(us ...user.User) *memUsers {
	m := &memUsers{users: map[int64]*user.User{}}

	for i := range us {
		u := us[i]
		m.users[u.ID] = &u
	}

	return m
}

func (m *memUsers) get(id int64) user.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	return *m.users[id]
}

func (m *memUsers) UpdateCoreFields(ctx context.Context, id int64, f user.CoreFields) error {
	if m.updateCoreFn != nil {
		return m.updateCoreFn(ctx, id, f)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]

	if !ok {
		return user.ErrNotFound
	}

	m.coreWrites++
	u.Name, u.Phone, u.Address = f.Name, f.Phone, f.Address
	u.Governorate, u.City, u.PostalCode = f.Governorate, f.City, f.PostalCode

	return nil
}

func (m *memUsers) GetPasswordHash(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]

	if !ok {
		return "", user.ErrNotFound
	}

	return u.PasswordHash, nil
}

func (m *memUsers) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	if m.updateHashFn != nil {
		return m.updateHashFn(ctx, id, hash)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]

	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = hash

	return nil
}

func (m *memUsers) UpdatePhoto(_ context.Context, id int64, ref string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]

	if !ok {
		return nil, user.ErrNotFound
	}

	prev := u.Photo
	u.Photo = &ref

	return prev, nil
}

type memArtisans struct {
	mu       sync.Mutex
	nextID   int64
	byUser   map[int64]*artisan.Profile
	upsertFn func(ctx context.Context, userID int64, f artisan.Fields) (int64, error)
}

func newMemArtisans() *memArtisans {
	return &memArtisans{nextID: 100, byUser: map[int64]*artisan.Profile{}}
}

func (m *memArtisans) UpsertForUser(ctx context.Context, userID int64, f artisan.Fields) (int64, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, userID, f)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byUser[userID]

	if !ok {
		m.nextID++
		p = &artisan.Profile{ID: m.nextID, UserID: userID}
		m.byUser[userID] = p
	}

	if f.Specialization != nil {
		p.Specialization = *f.Specialization
	}
	if f.Experience != nil {
		p.Experience = *f.Experience
	}
	if f.Locality != nil {
		p.Locality = *f.Locality
	}
	if f.HourlyRate != nil {
		p.HourlyRate = *f.HourlyRate
	}
	if f.Description != nil {
		p.Description = *f.Description
	}

	return p.ID, nil
}

func (m *memArtisans) EnsureForUser(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.byUser[userID]; ok {
		return p.ID, nil
	}

	m.nextID++
	m.byUser[userID] = &artisan.Profile{ID: m.nextID, UserID: userID}

	return m.nextID, nil
}

func (m *memArtisans) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.byUser)
}

type memGallery struct {
	mu    sync.Mutex
	rows  []artisan.GalleryAsset
	addFn func(artisanID int64, ref string) error
}

func (m *memGallery) Add(_ context.Context, artisanID int64, ref string) (artisan.GalleryAsset, error) {
	if m.addFn != nil {
		if err := m.addFn(artisanID, ref); err != nil {
			return artisan.GalleryAsset{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a := artisan.GalleryAsset{ID: int64(len(m.rows) + 1), ArtisanID: artisanID, Path: ref, CreatedAt: time.Now()}
	m.rows = append(m.rows, a)

	return a, nil
}

func (m *memGallery) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rows)
}

// flakyAssets wraps a real store and fails writes of the listed payloads.
type flakyAssets struct {
	*storage.LocalStore

	failPayloads [][]byte
	storeDelay   time.Duration

	mu      sync.Mutex
	removed []string
}

var errDiskFull = errors.New("no space left on device")

func (f *flakyAssets) Store(ctx context.Context, area storage.Area, name string, payload []byte) (string, error) {
	if f.storeDelay > 0 {
		select {
		case <-time.After(f.storeDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	for _, p := range f.failPayloads {
		if bytes.Equal(payload, p) {
			return "", errDiskFull
		}
	}

	return f.LocalStore.Store(ctx, area, name, payload)
}

func (f *flakyAssets) Remove(ctx context.Context, area storage.Area, ref string) error {
	f.mu.Lock()
	f.removed = append(f.removed, ref)
	f.mu.Unlock()

	return f.LocalStore.Remove(ctx, area, ref)
}

type stepCounter struct {
	mu   sync.Mutex
	seen map[string]int
}

func (c *stepCounter) ObserveStep(step, outcome string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen == nil {
		c.seen = map[string]int{}
	}

	c.seen[step+"/"+outcome]++
}
