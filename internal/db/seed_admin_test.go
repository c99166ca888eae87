package db

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/tnm3allim/marketplace/internal/domain/user"
)

type fakeAdminStore struct {
	getFn    func(email string) (user.User, error)
	created  []user.User
	createFn func(u user.User) error
}

func (f *fakeAdminStore) GetByEmail(_ context.Context, email string) (user.User, error) {
	return f.getFn(email)
}

func (f *fakeAdminStore) Create(_ context.Context, u user.User) (user.User, error) {
	if f.createFn != nil {
		if err := f.createFn(u); err != nil {
			return user.User{}, err
		}
	}

	f.created = append(f.created, u)

	return u, nil
}

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestEnsureAdminUser(t *testing.T) {
	seed := AdminSeed{Email: "admin@tnm3allim.tn", Password: "pw", Name: "Admin"}
	missing := func(string) (user.User, error) { return user.User{}, user.ErrNotFound }

	tests := []struct {
		name        string
		seed        AdminSeed
		store       *fakeAdminStore
		wantCreated int
		wantErr     bool
	}{
		{name: "disabled without password", seed: AdminSeed{Email: "a@b.c"}, store: &fakeAdminStore{getFn: missing}},
		{name: "creates when missing", seed: seed, store: &fakeAdminStore{getFn: missing}, wantCreated: 1},
		{
			name:  "keeps existing",
			seed:  seed,
			store: &fakeAdminStore{getFn: func(string) (user.User, error) { return user.User{ID: 1, Role: user.RoleAdmin}, nil }},
		},
		{
			name:    "lookup failure",
			seed:    seed,
			store:   &fakeAdminStore{getFn: func(string) (user.User, error) { return user.User{}, errors.New("db down") }},
			wantErr: true,
		},
		{
			name:  "lost creation race",
			seed:  seed,
			store: &fakeAdminStore{getFn: missing, createFn: func(user.User) error { return user.ErrEmailTaken }},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnsureAdminUser(context.Background(), tt.store, plainHasher{}, tt.seed, discard)

			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}

			if len(tt.store.created) != tt.wantCreated {
				t.Fatalf("created %d users, want %d", len(tt.store.created), tt.wantCreated)
			}

			if tt.wantCreated == 1 {
				u := tt.store.created[0]
				if u.Role != user.RoleAdmin || u.PasswordHash != "hashed:pw" || u.Email != seed.Email {
					t.Fatalf("unexpected admin %+v", u)
				}
			}
		})
	}
}
