package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// LocalStore keeps assets on the local filesystem, one directory per Area.
type LocalStore struct {
	root  string
	write func(p string, payload []byte) error
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)

	if err != nil {
		return nil, err
	}

	for _, area := range []Area{AreaProfiles, AreaGallery} {
		err := os.MkdirAll(filepath.Join(abs, string(area)), 0o755)

		if err != nil {
			return nil, fmt.Errorf("create %s dir: %w", area, err)
		}
	}

	return &LocalStore{root: abs, write: writeExclusive}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(area Area, name string) (string, error) {
	if !area.IsValid() {
		return "", ErrInvalidArea
	}

	if err := ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}

	return filepath.Join(s.root, string(area), name), nil
}

// Store writes payload under area/name and returns the stored reference.
// An existing file is never overwritten.
func (s *LocalStore) Store(ctx context.Context, area Area, name string, payload []byte) (string, error) {
	p, err := s.path(area, name)

	if err != nil {
		return "", err
	}

	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}

	if err := s.writeBounded(ctx, p, payload); err != nil {
		return "", err
	}

	return name, nil
}

// writeBounded is runBounded for writes. A file that lands after the caller gave up
// is removed again.
func (s *LocalStore) writeBounded(ctx context.Context, p string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		mu        sync.Mutex
		finished  bool
		abandoned bool
	)

	done := make(chan error, 1)

	go func() {
		err := s.write(p, payload)

		mu.Lock()
		defer mu.Unlock()

		finished = true

		if abandoned && err == nil {
			_ = os.Remove(p)
		}

		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		mu.Lock()
		defer mu.Unlock()

		if finished {
			return <-done
		}

		abandoned = true

		return ctx.Err()
	}
}

func (s *LocalStore) Retrieve(ctx context.Context, area Area, ref string) ([]byte, error) {
	p, err := s.path(area, ref)

	if err != nil {
		return nil, err
	}

	var out []byte

	err = runBounded(ctx, func() error {
		b, err := os.ReadFile(p)

		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}

		out = b
		return err
	})

	return out, err
}

func (s *LocalStore) Remove(ctx context.Context, area Area, ref string) error {
	p, err := s.path(area, ref)

	if err != nil {
		return err
	}

	return runBounded(ctx, func() error {
		err := os.Remove(p)

		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}

		return err
	})
}

func writeExclusive(p string, payload []byte) (err error) {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)

	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}

		return err
	}

	defer func() {
		closeErr := f.Close()

		if err == nil {
			err = closeErr
		}

		// a half-written file must not become a valid reference
		if err != nil {
			_ = os.Remove(p)
		}
	}()

	_, err = f.Write(payload)

	if err != nil {
		return err
	}

	return f.Sync()
}

// runBounded gives up waiting on fn once ctx is done. Filesystem calls cannot be
// interrupted, so fn may still finish in the background.
func runBounded(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
